package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// exportLayout keeps full timestamp precision so export/re-ingest round
// trips are lossless.
const exportLayout = time.RFC3339Nano

// WriteCSV writes the table in the ingestion CSV format.
func WriteCSV(w io.Writer, t *table.Table) error {
	return write(w, t, ',')
}

// WriteTSV writes the table tab-separated.
func WriteTSV(w io.Writer, t *table.Table) error {
	return write(w, t, '\t')
}

func write(w io.Writer, t *table.Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	names := t.ColumnNames()
	header := append([]string{"timestamp"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(header))
	for i := 0; i < t.Rows(); i++ {
		row[0] = t.Timestamp(i).Format(exportLayout)
		for j, name := range names {
			v, err := t.Value(i, name)
			if err != nil {
				return err
			}
			if math.IsNaN(v) {
				row[j+1] = ""
			} else {
				// Shortest representation that parses back exactly.
				row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
