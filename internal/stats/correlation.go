package stats

import (
	"math"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// CorrelationMatrix holds pairwise Pearson correlations in column order.
type CorrelationMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// CorrelationPair is one off-diagonal correlation with its significance.
type CorrelationPair struct {
	ColumnA     string  `json:"column_a"`
	ColumnB     string  `json:"column_b"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
	SampleSize  int     `json:"sample_size"`
	Significant bool    `json:"significant_at_005"`
}

// Correlations computes the Pearson matrix over the given columns (all
// columns when nil), pairing only rows where both cells are present.
func Correlations(t *table.Table, cols []string) CorrelationMatrix {
	if cols == nil {
		cols = t.ColumnNames()
	}
	m := CorrelationMatrix{
		Columns: cols,
		Values:  make([][]float64, len(cols)),
	}
	for i := range cols {
		m.Values[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			r, _ := pearson(t, cols[i], cols[j])
			m.Values[i][j] = r
		}
	}
	return m
}

// CorrelationTests computes the upper-triangle pairs with two-sided
// t-test p-values. Pairs with fewer than 3 complete rows are skipped.
func CorrelationTests(t *table.Table, cols []string) []CorrelationPair {
	if cols == nil {
		cols = t.ColumnNames()
	}
	var out []CorrelationPair
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r, n := pearson(t, cols[i], cols[j])
			if n < 3 || math.IsNaN(r) {
				continue
			}
			p := 1.0
			if math.Abs(r) < 1 {
				tStat := r * math.Sqrt(float64(n-2)/(1-r*r))
				p = studentTPValue(tStat, n-2)
			} else {
				p = 0
			}
			out = append(out, CorrelationPair{
				ColumnA:     cols[i],
				ColumnB:     cols[j],
				Correlation: r,
				PValue:      p,
				SampleSize:  n,
				Significant: p < 0.05,
			})
		}
	}
	return out
}

// pearson returns the correlation and the number of complete pairs.
func pearson(t *table.Table, colA, colB string) (float64, int) {
	a, errA := t.Column(colA)
	b, errB := t.Column(colB)
	if errA != nil || errB != nil {
		return math.NaN(), 0
	}

	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	n := len(xs)
	if n < 2 {
		return math.NaN(), n
	}

	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), n
	}
	return sxy / math.Sqrt(sxx*syy), n
}
