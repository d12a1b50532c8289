package outlier_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

func testTable(t *testing.T, values []float64) *table.Table {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, len(values))
	for i := range idx {
		idx[i] = base.Add(time.Duration(i) * time.Hour)
	}
	tbl, err := table.New(idx, []string{"x"}, map[string][]float64{"x": values})
	require.NoError(t, err)
	return tbl
}

func TestSelect_ValueRange(t *testing.T) {
	tbl := testTable(t, []float64{5, 10, 15, 20, 25})

	sel, err := outlier.Select(tbl, "x", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 8, Upper: 18},
	})
	require.NoError(t, err)

	require.Equal(t, 2, sel.Removed)
	require.Equal(t, []bool{false, true, true, false, false}, sel.Mask)

	col, err := sel.Table.Column("x")
	require.NoError(t, err)
	require.Equal(t, []float64{5, 20, 25}, col)
}

func TestSelect_TimeRange(t *testing.T) {
	tbl := testTable(t, []float64{5, 10, 15, 20, 25})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sel, err := outlier.Select(tbl, "x", outlier.Criteria{
		Time: &outlier.TimeRange{
			Start: base.Add(1 * time.Hour),
			End:   base.Add(2 * time.Hour),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, sel.Removed)

	col, err := sel.Table.Column("x")
	require.NoError(t, err)
	require.Equal(t, []float64{5, 20, 25}, col)
}

func TestSelect_BothRangesCombineAsAND(t *testing.T) {
	tbl := testTable(t, []float64{5, 10, 15, 20, 25})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Value range alone matches rows 1,2; time range alone matches rows 2,3.
	// Combined, only row 2 satisfies both.
	sel, err := outlier.Select(tbl, "x", outlier.Criteria{
		Time: &outlier.TimeRange{
			Start: base.Add(2 * time.Hour),
			End:   base.Add(3 * time.Hour),
		},
		Value: &outlier.ValueRange{Lower: 8, Upper: 18},
	})
	require.NoError(t, err)
	require.Equal(t, 1, sel.Removed)
	require.Equal(t, []bool{false, false, true, false, false}, sel.Mask)
}

func TestSelect_MissingValuesNeverMatchValueRange(t *testing.T) {
	tbl := testTable(t, []float64{5, math.NaN(), 15, 20, 25})

	// NaN at row 1 sits inside no value range.
	sel, err := outlier.Select(tbl, "x", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 0, Upper: 16},
	})
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true, false, false}, sel.Mask)

	// A time range still removes the NaN row.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sel, err = outlier.Select(tbl, "x", outlier.Criteria{
		Time: &outlier.TimeRange{Start: base.Add(time.Hour), End: base.Add(time.Hour)},
	})
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, false, false, false}, sel.Mask)
}

func TestSelect_Errors(t *testing.T) {
	tbl := testTable(t, []float64{5, 10, 15})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := outlier.Select(tbl, "nope", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 0, Upper: 1},
	})
	require.ErrorIs(t, err, outlier.ErrColumnNotFound)

	_, err = outlier.Select(tbl, "x", outlier.Criteria{})
	require.ErrorIs(t, err, outlier.ErrInvalidRange)

	_, err = outlier.Select(tbl, "x", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 10, Upper: 5},
	})
	require.ErrorIs(t, err, outlier.ErrInvalidRange)

	_, err = outlier.Select(tbl, "x", outlier.Criteria{
		Time: &outlier.TimeRange{Start: base.Add(time.Hour), End: base},
	})
	require.ErrorIs(t, err, outlier.ErrInvalidRange)

	// Matching zero rows is the recoverable no-op case.
	_, err = outlier.Select(tbl, "x", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 100, Upper: 200},
	})
	require.ErrorIs(t, err, outlier.ErrEmptySelection)

	// Removing every row would leave nothing to work with.
	_, err = outlier.Select(tbl, "x", outlier.Criteria{
		Value: &outlier.ValueRange{Lower: 0, Upper: 100},
	})
	require.ErrorIs(t, err, outlier.ErrInvalidRange)
}

func TestSelectStatistical_IQR(t *testing.T) {
	// One extreme value among a tight cluster.
	tbl := testTable(t, []float64{10, 11, 12, 11, 10, 12, 11, 10, 500})

	sel, err := outlier.SelectStatistical(tbl, "x", outlier.MethodIQR, 1.5)
	require.NoError(t, err)
	require.Equal(t, 1, sel.Removed)
	require.True(t, sel.Mask[8])

	require.Equal(t, outlier.MethodIQR, sel.Criteria.Method)
	require.NotNil(t, sel.Criteria.Value)
	require.Less(t, sel.Criteria.Value.Upper, 500.0)
}

func TestSelectStatistical_ZScore(t *testing.T) {
	values := make([]float64, 0, 101)
	for i := 0; i < 100; i++ {
		values = append(values, 50+float64(i%5))
	}
	values = append(values, 10000)
	tbl := testTable(t, values)

	sel, err := outlier.SelectStatistical(tbl, "x", outlier.MethodZScore, 3)
	require.NoError(t, err)
	require.Equal(t, 1, sel.Removed)
	require.True(t, sel.Mask[100])
}

func TestSelectStatistical_Errors(t *testing.T) {
	tbl := testTable(t, []float64{1, 2, 3, 4})

	_, err := outlier.SelectStatistical(tbl, "x", "median", 1.5)
	require.ErrorIs(t, err, outlier.ErrUnknownMethod)

	_, err = outlier.SelectStatistical(tbl, "x", outlier.MethodIQR, -1)
	require.ErrorIs(t, err, outlier.ErrInvalidRange)

	// Uniform data has no outliers.
	uniform := testTable(t, []float64{5, 5, 5, 5, 5})
	_, err = outlier.SelectStatistical(uniform, "x", outlier.MethodIQR, 1.5)
	require.ErrorIs(t, err, outlier.ErrEmptySelection)
}

func TestCriteria_Describe(t *testing.T) {
	c := outlier.Criteria{
		Method:     outlier.MethodIQR,
		Value:      &outlier.ValueRange{Lower: 1, Upper: 9},
		Multiplier: 1.5,
	}
	require.Contains(t, c.Describe(), "IQR")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c = outlier.Criteria{
		Method: outlier.MethodRange,
		Time:   &outlier.TimeRange{Start: base, End: base.Add(time.Hour)},
	}
	require.Contains(t, c.Describe(), "time")
}
