package ingest_test

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okabe/seriescrub/internal/domain/table"
	"github.com/okabe/seriescrub/internal/ingest"
)

const sampleCSV = `timestamp,temperature,pressure
2024-01-01 00:00:00,20.5,1013
2024-01-01 01:00:00,21.0,1012
2024-01-01 02:00:00,,1011
2024-01-01 03:00:00,22.5,1010
`

func TestParse_WithHeader(t *testing.T) {
	tbl, err := ingest.Parse(strings.NewReader(sampleCSV), ingest.Options{})
	require.NoError(t, err)

	require.Equal(t, 4, tbl.Rows())
	require.Equal(t, []string{"temperature", "pressure"}, tbl.ColumnNames())

	v, err := tbl.Value(1, "temperature")
	require.NoError(t, err)
	require.Equal(t, 21.0, v)

	v, err = tbl.Value(2, "temperature")
	require.NoError(t, err)
	require.True(t, math.IsNaN(v))

	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tbl.Timestamp(0))
}

func TestParse_WithoutHeader(t *testing.T) {
	in := "2024-01-01,1.5,2.5\n2024-01-02,3.5,4.5\n"
	tbl, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Rows())
	require.Equal(t, []string{"column_2", "column_3"}, tbl.ColumnNames())
}

func TestParse_UnixSecondsIndex(t *testing.T) {
	in := "ts,value\n1704067200,1\n1704070800,2\n"
	tbl, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tbl.Timestamp(0))
	require.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), tbl.Timestamp(1))
}

func TestParse_SortsRowsByTimestamp(t *testing.T) {
	in := "ts,value\n2024-01-03,3\n2024-01-01,1\n2024-01-02,2\n"
	tbl, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
	require.NoError(t, err)

	col, err := tbl.Column("value")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, col)
}

func TestParse_TextColumnBecomesNaN(t *testing.T) {
	in := "ts,label,value\n2024-01-01,north,1\n2024-01-02,south,2\n"
	tbl, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
	require.NoError(t, err)

	col, err := tbl.Column("label")
	require.NoError(t, err)
	for _, v := range col {
		require.True(t, math.IsNaN(v))
	}
}

func TestParse_DuplicateHeadersDeduped(t *testing.T) {
	in := "ts,value,value\n2024-01-01,1,2\n"
	tbl, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"value", "value_1"}, tbl.ColumnNames())
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"empty input":       "",
		"header only":       "ts,value\n",
		"single column":     "ts\n2024-01-01\n",
		"ragged rows":       "ts,value\n2024-01-01,1,extra\n",
		"bad timestamps":    "ts,value\nnot-a-date,1\n",
		"no numeric values": "ts,value\n2024-01-01,abc\n2024-01-02,def\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ingest.Parse(strings.NewReader(in), ingest.Options{})
			require.ErrorIs(t, err, table.ErrInvalidFormat)
		})
	}
}

func TestParseFile_TSV(t *testing.T) {
	in := "ts\tvalue\n2024-01-01\t1\n2024-01-02\t2\n"
	tbl, err := ingest.ParseFile("data.tsv", strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Rows())
}

func TestParseFile_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	tbl, err := ingest.ParseFile("data.csv.gz", &buf)
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Rows())
}

func TestParseFile_ZipPicksLargestEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	readme, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = readme.Write([]byte("notes"))
	require.NoError(t, err)

	data, err := zw.Create("data.csv")
	require.NoError(t, err)
	_, err = data.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tbl, err := ingest.ParseFile("upload.zip", &buf)
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Rows())
}

func TestParseFile_BadGzip(t *testing.T) {
	_, err := ingest.ParseFile("data.csv.gz", strings.NewReader("plain text"))
	require.ErrorIs(t, err, table.ErrInvalidFormat)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tbl, err := ingest.Parse(strings.NewReader(sampleCSV), ingest.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ingest.WriteCSV(&buf, tbl))

	again, err := ingest.Parse(&buf, ingest.Options{})
	require.NoError(t, err)
	require.True(t, tbl.Equal(again))
}

func TestWriteTSV_RoundTrip(t *testing.T) {
	tbl, err := ingest.Parse(strings.NewReader(sampleCSV), ingest.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ingest.WriteTSV(&buf, tbl))

	again, err := ingest.Parse(&buf, ingest.Options{Delimiter: '\t'})
	require.NoError(t, err)
	require.True(t, tbl.Equal(again))
}
