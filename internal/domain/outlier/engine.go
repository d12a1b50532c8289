// Package outlier computes which rows of a table an outlier-removal
// operation excludes. The engine is stateless: it never touches the ledger
// or the session, it only produces candidates for the caller to commit.
package outlier

import (
	"fmt"
	"math"
	"sort"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// Select computes the rows to exclude for an explicit range criteria. When
// both a time range and a value range are given, a row must fall inside both
// to be removed. Rows with a missing value in the target column are never
// matched by a value range but may still be removed by a time range.
func Select(t *table.Table, column string, crit Criteria) (*Selection, error) {
	if !t.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if crit.Time == nil && crit.Value == nil {
		return nil, fmt.Errorf("%w: no time or value bounds given", ErrInvalidRange)
	}
	if crit.Time != nil && crit.Time.End.Before(crit.Time.Start) {
		return nil, fmt.Errorf("%w: time start %s after end %s",
			ErrInvalidRange, crit.Time.Start.Format("2006-01-02 15:04:05"), crit.Time.End.Format("2006-01-02 15:04:05"))
	}
	if crit.Value != nil && crit.Value.Lower > crit.Value.Upper {
		return nil, fmt.Errorf("%w: value lower %g above upper %g",
			ErrInvalidRange, crit.Value.Lower, crit.Value.Upper)
	}

	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, t.Rows())
	for i := range mask {
		remove := true
		if crit.Time != nil {
			ts := t.Timestamp(i)
			remove = remove && !ts.Before(crit.Time.Start) && !ts.After(crit.Time.End)
		}
		if crit.Value != nil {
			v := values[i]
			remove = remove && !math.IsNaN(v) && v >= crit.Value.Lower && v <= crit.Value.Upper
		}
		mask[i] = remove
	}

	crit.Method = MethodRange
	return buildSelection(t, column, mask, crit)
}

// SelectStatistical computes removal bounds from the column's own
// distribution: IQR fences or a z-score band. Rows outside the bounds are
// selected for removal; the computed band is recorded in the criteria.
func SelectStatistical(t *table.Table, column string, method Method, multiplier float64) (*Selection, error) {
	if !t.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("%w: multiplier %g must be positive", ErrInvalidRange, multiplier)
	}

	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	clean := dropNaN(values)
	if len(clean) < 2 {
		return nil, fmt.Errorf("%w: column %q has %d usable values", ErrEmptySelection, column, len(clean))
	}

	var lower, upper float64
	switch method {
	case MethodIQR:
		q1 := quantile(clean, 0.25)
		q3 := quantile(clean, 0.75)
		iqr := q3 - q1
		lower = q1 - multiplier*iqr
		upper = q3 + multiplier*iqr
	case MethodZScore:
		m := mean(clean)
		s := stddev(clean, m)
		lower = m - multiplier*s
		upper = m + multiplier*s
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	mask := make([]bool, t.Rows())
	for i, v := range values {
		mask[i] = !math.IsNaN(v) && (v < lower || v > upper)
	}

	crit := Criteria{
		Method:     method,
		Value:      &ValueRange{Lower: lower, Upper: upper},
		Multiplier: multiplier,
	}
	return buildSelection(t, column, mask, crit)
}

// Candidates returns only the removal mask for preview highlighting.
func Candidates(t *table.Table, column string, method Method, multiplier float64) ([]bool, error) {
	sel, err := SelectStatistical(t, column, method, multiplier)
	if err != nil {
		return nil, err
	}
	return sel.Mask, nil
}

func buildSelection(t *table.Table, column string, mask []bool, crit Criteria) (*Selection, error) {
	removed := 0
	keep := make([]bool, len(mask))
	for i, m := range mask {
		keep[i] = !m
		if m {
			removed++
		}
	}
	if removed == 0 {
		return nil, fmt.Errorf("%w: column %q, %s", ErrEmptySelection, column, crit.Describe())
	}
	if removed == t.Rows() {
		return nil, fmt.Errorf("%w: column %q, %s would remove every row",
			ErrInvalidRange, column, crit.Describe())
	}

	candidate, err := t.FilterRows(keep)
	if err != nil {
		return nil, fmt.Errorf("building candidate table: %w", err)
	}
	return &Selection{
		Table:    candidate,
		Removed:  removed,
		Mask:     mask,
		Criteria: crit,
	}, nil
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// quantile interpolates linearly between the two nearest order statistics.
func quantile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
