// Package ingest sits at the ingestion and export boundary: it turns
// uploaded CSV (optionally gzip- or zip-wrapped) into validated tables and
// writes the active table back out in a lossless round-trip format. The
// history core never sees raw file bytes.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// Options configures CSV parsing.
type Options struct {
	// Delimiter defaults to ','.
	Delimiter rune
}

// timestampLayouts are tried in order against the first index cell; the
// matching layout then applies to the whole column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// Parse reads a CSV stream into a table. The first column is the timestamp
// index; remaining columns are coerced to float64 with NaN for missing or
// non-numeric cells. Rows are sorted by timestamp. Malformed structure is
// rejected with table.ErrInvalidFormat.
func Parse(r io.Reader, opts Options) (*table.Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrInvalidFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", table.ErrInvalidFormat)
	}

	width := len(records[0])
	if width < 2 {
		return nil, fmt.Errorf("%w: need a timestamp column and at least one value column", table.ErrInvalidFormat)
	}
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d",
				table.ErrInvalidFormat, i+1, len(rec), width)
		}
	}

	header := analyzeHeader(records[0])
	dataRows := records
	if !header.firstRowIsData {
		dataRows = records[1:]
	}
	if len(dataRows) == 0 {
		return nil, fmt.Errorf("%w: header only, no data rows", table.ErrInvalidFormat)
	}

	parseTS, err := timestampParser(dataRows[0][0])
	if err != nil {
		return nil, err
	}

	names := header.names[1:]
	index := make([]time.Time, 0, len(dataRows))
	columns := make(map[string][]float64, len(names))
	for _, name := range names {
		columns[name] = make([]float64, 0, len(dataRows))
	}

	numericSeen := false
	for i, rec := range dataRows {
		ts, err := parseTS(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: unparseable timestamp %q",
				table.ErrInvalidFormat, i+1, rec[0])
		}
		index = append(index, ts)
		for j, name := range names {
			v := parseCell(rec[j+1])
			if !math.IsNaN(v) {
				numericSeen = true
			}
			columns[name] = append(columns[name], v)
		}
	}
	if !numericSeen {
		return nil, fmt.Errorf("%w: no numeric values in any column", table.ErrInvalidFormat)
	}

	sortByIndex(index, names, columns)
	return table.New(index, names, columns)
}

// timestampParser picks the layout matching a sample cell. Integer cells are
// read as unix seconds.
func timestampParser(sample string) (func(string) (time.Time, error), error) {
	sample = strings.TrimSpace(sample)
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, sample); err == nil {
			l := layout
			return func(cell string) (time.Time, error) {
				return time.Parse(l, strings.TrimSpace(cell))
			}, nil
		}
	}
	if _, err := strconv.ParseInt(sample, 10, 64); err == nil {
		return func(cell string) (time.Time, error) {
			sec, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
			if err != nil {
				return time.Time{}, err
			}
			return time.Unix(sec, 0).UTC(), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: no parseable timestamp index (first cell %q)",
		table.ErrInvalidFormat, sample)
}

func parseCell(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// sortByIndex stably sorts all rows by timestamp ascending.
func sortByIndex(index []time.Time, names []string, columns map[string][]float64) {
	order := make([]int, len(index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return index[order[a]].Before(index[order[b]])
	})

	sortedIndex := make([]time.Time, len(index))
	for i, src := range order {
		sortedIndex[i] = index[src]
	}
	copy(index, sortedIndex)

	buf := make([]float64, len(index))
	for _, name := range names {
		col := columns[name]
		for i, src := range order {
			buf[i] = col[src]
		}
		copy(col, buf)
	}
}
