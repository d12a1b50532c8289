package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// PeriodSummary describes one compared time window.
type PeriodSummary struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
	Mean  float64   `json:"mean"`
	Std   float64   `json:"std"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
}

// TestOutcome is one hypothesis test result at the 0.05 level.
type TestOutcome struct {
	Statistic   float64 `json:"statistic"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant_at_005"`
}

// PeriodComparison compares one column across two time windows: a pooled
// two-sample t-test on the means, an F-test on the variances and a
// Mann-Whitney U test as the nonparametric check.
type PeriodComparison struct {
	Column      string        `json:"column"`
	PeriodA     PeriodSummary `json:"period_a"`
	PeriodB     PeriodSummary `json:"period_b"`
	TTest       TestOutcome   `json:"t_test"`
	FTest       TestOutcome   `json:"f_test"`
	MannWhitney TestOutcome   `json:"mann_whitney"`
}

// ComparePeriods runs the period comparison for one column. Window bounds
// are inclusive; each window needs at least 2 usable values.
func ComparePeriods(t *table.Table, col string, a, b outlier.TimeRange) (PeriodComparison, error) {
	if a.End.Before(a.Start) || b.End.Before(b.Start) {
		return PeriodComparison{}, fmt.Errorf("%w: period start after end", outlier.ErrInvalidRange)
	}
	values, err := t.Column(col)
	if err != nil {
		return PeriodComparison{}, err
	}

	xa := windowValues(t, values, a)
	xb := windowValues(t, values, b)
	if len(xa) < 2 || len(xb) < 2 {
		return PeriodComparison{}, fmt.Errorf("periods have %d and %d usable values in %q, need at least 2 each",
			len(xa), len(xb), col)
	}

	out := PeriodComparison{
		Column:  col,
		PeriodA: summarizePeriod(xa, a),
		PeriodB: summarizePeriod(xb, b),
	}
	out.TTest = pooledTTest(xa, xb)
	out.FTest = varianceFTest(xa, xb)
	out.MannWhitney = mannWhitneyU(xa, xb)
	return out, nil
}

func windowValues(t *table.Table, values []float64, win outlier.TimeRange) []float64 {
	var out []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ts := t.Timestamp(i)
		if !ts.Before(win.Start) && !ts.After(win.End) {
			out = append(out, v)
		}
	}
	return out
}

func summarizePeriod(values []float64, win outlier.TimeRange) PeriodSummary {
	m := mean(values)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return PeriodSummary{
		Start: win.Start,
		End:   win.End,
		Count: len(values),
		Mean:  m,
		Std:   stddev(values, m),
		Min:   lo,
		Max:   hi,
	}
}

// pooledTTest is the equal-variance two-sample t-test on the means.
func pooledTTest(xa, xb []float64) TestOutcome {
	na, nb := float64(len(xa)), float64(len(xb))
	ma, mb := mean(xa), mean(xb)
	va := stddev(xa, ma)
	vb := stddev(xb, mb)
	va, vb = va*va, vb*vb

	df := int(na + nb - 2)
	pooled := ((na-1)*va + (nb-1)*vb) / float64(df)
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		if ma == mb {
			return TestOutcome{Statistic: 0, PValue: 1}
		}
		return TestOutcome{Statistic: math.Inf(sign(ma - mb)), PValue: 0, Significant: true}
	}

	stat := (ma - mb) / se
	p := studentTPValue(stat, df)
	return TestOutcome{Statistic: stat, PValue: p, Significant: p < 0.05}
}

// varianceFTest is the two-sided variance-ratio F-test.
func varianceFTest(xa, xb []float64) TestOutcome {
	sa := stddev(xa, mean(xa))
	sb := stddev(xb, mean(xb))
	va, vb := sa*sa, sb*sb
	if vb == 0 {
		if va == 0 {
			return TestOutcome{Statistic: math.NaN(), PValue: math.NaN()}
		}
		return TestOutcome{Statistic: math.Inf(1), PValue: 0, Significant: true}
	}

	stat := va / vb
	cdf := fDistCDF(stat, len(xa)-1, len(xb)-1)
	p := 2 * math.Min(cdf, 1-cdf)
	return TestOutcome{Statistic: stat, PValue: p, Significant: p < 0.05}
}

// mannWhitneyU is the two-sided Mann-Whitney U test with tie-corrected
// normal approximation and continuity correction. The statistic is U for
// the first sample.
func mannWhitneyU(xa, xb []float64) TestOutcome {
	na, nb := len(xa), len(xb)
	n := na + nb

	type ranked struct {
		value float64
		first bool
	}
	all := make([]ranked, 0, n)
	for _, v := range xa {
		all = append(all, ranked{value: v, first: true})
	}
	for _, v := range xb {
		all = append(all, ranked{value: v})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Average ranks across ties; accumulate the tie correction term.
	ranks := make([]float64, n)
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		if size := float64(j - i); size > 1 {
			tieTerm += size*size*size - size
		}
		i = j
	}

	r1 := 0.0
	for i, entry := range all {
		if entry.first {
			r1 += ranks[i]
		}
	}
	u1 := r1 - float64(na*(na+1))/2

	fn, fa, fb := float64(n), float64(na), float64(nb)
	mu := fa * fb / 2
	variance := fa * fb / 12 * ((fn + 1) - tieTerm/(fn*(fn-1)))
	if variance == 0 {
		return TestOutcome{Statistic: u1, PValue: 1}
	}

	z := (math.Abs(u1-mu) - 0.5) / math.Sqrt(variance)
	if z < 0 {
		z = 0
	}
	p := 2 * (1 - normalCDF(z))
	if p > 1 {
		p = 1
	}
	return TestOutcome{Statistic: u1, PValue: p, Significant: p < 0.05}
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
