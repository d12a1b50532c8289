// Package stats computes read-only descriptive statistics and hypothesis
// tests over the session's active table. Nothing here mutates table or
// ledger state.
package stats

import (
	"math"
	"sort"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// ColumnSummary holds descriptive statistics for one numeric column.
type ColumnSummary struct {
	Column         string  `json:"column"`
	Count          int     `json:"count"`
	Mean           float64 `json:"mean"`
	Std            float64 `json:"std"`
	Min            float64 `json:"min"`
	Q25            float64 `json:"q25"`
	Median         float64 `json:"median"`
	Q75            float64 `json:"q75"`
	Max            float64 `json:"max"`
	Skewness       float64 `json:"skewness"`
	Kurtosis       float64 `json:"kurtosis"`
	Missing        int     `json:"missing"`
	MissingPercent float64 `json:"missing_percent"`
}

// Describe summarizes the given columns, or every column when cols is nil.
// Columns with no usable values are skipped.
func Describe(t *table.Table, cols []string) []ColumnSummary {
	if cols == nil {
		cols = t.ColumnNames()
	}

	out := make([]ColumnSummary, 0, len(cols))
	for _, name := range cols {
		values, err := t.Column(name)
		if err != nil {
			continue
		}
		clean := dropNaN(values)
		if len(clean) == 0 {
			continue
		}

		sorted := make([]float64, len(clean))
		copy(sorted, clean)
		sort.Float64s(sorted)

		m := mean(clean)
		s := stddev(clean, m)
		missing := len(values) - len(clean)

		out = append(out, ColumnSummary{
			Column:         name,
			Count:          len(clean),
			Mean:           m,
			Std:            s,
			Min:            sorted[0],
			Q25:            quantileSorted(sorted, 0.25),
			Median:         quantileSorted(sorted, 0.5),
			Q75:            quantileSorted(sorted, 0.75),
			Max:            sorted[len(sorted)-1],
			Skewness:       skewness(clean, m, s),
			Kurtosis:       kurtosis(clean, m, s),
			Missing:        missing,
			MissingPercent: 100 * float64(missing) / float64(len(values)),
		})
	}
	return out
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
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
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

// skewness is the adjusted Fisher-Pearson sample skewness, matching the
// usual spreadsheet/statistics-package definition.
func skewness(values []float64, m, s float64) float64 {
	n := float64(len(values))
	if n < 3 || s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := (v - m) / s
		sum += d * d * d
	}
	return n / ((n - 1) * (n - 2)) * sum
}

// kurtosis is the sample excess kurtosis.
func kurtosis(values []float64, m, s float64) float64 {
	n := float64(len(values))
	if n < 4 || s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := (v - m) / s
		sum += d * d * d * d
	}
	g := n * (n + 1) / ((n - 1) * (n - 2) * (n - 3)) * sum
	return g - 3*(n-1)*(n-1)/((n-2)*(n-3))
}

// quantileSorted interpolates linearly on a sorted slice.
func quantileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
