package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/table"
)

// TrendResult is an ordinary least squares fit of a column against its row
// position.
type TrendResult struct {
	Column    string  `json:"column"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	PValue    float64 `json:"p_value"`
	Direction string  `json:"direction"`
}

// Trend fits a linear trend over the column's non-missing values in row
// order.
func Trend(t *table.Table, col string) (TrendResult, error) {
	values, err := t.Column(col)
	if err != nil {
		return TrendResult{}, err
	}

	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	n := len(xs)
	if n < 3 {
		return TrendResult{}, fmt.Errorf("column %q has %d usable values, need at least 3", col, n)
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
	slope := sxy / sxx
	intercept := my - slope*mx

	// Residual variance for the slope t-test.
	var ssRes float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		ssRes += r * r
	}
	r2 := 0.0
	if syy > 0 {
		r2 = 1 - ssRes/syy
	}

	p := math.NaN()
	if n > 2 && ssRes > 0 {
		se := math.Sqrt(ssRes / float64(n-2) / sxx)
		p = studentTPValue(slope/se, n-2)
	} else if ssRes == 0 {
		p = 0
	}

	direction := "stable"
	switch {
	case slope > 0:
		direction = "increasing"
	case slope < 0:
		direction = "decreasing"
	}

	return TrendResult{
		Column:    col,
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		PValue:    p,
		Direction: direction,
	}, nil
}

// OutlierBounds summarizes how many values a statistical criterion would
// flag, without removing anything.
type OutlierBounds struct {
	Column     string         `json:"column"`
	Method     outlier.Method `json:"method"`
	Multiplier float64        `json:"multiplier"`
	Lower      float64        `json:"lower"`
	Upper      float64        `json:"upper"`
	Total      int            `json:"total"`
	Flagged    int            `json:"flagged"`
	Percent    float64        `json:"percent"`
}

// Bounds computes IQR or z-score fences for a column and counts values
// outside them.
func Bounds(t *table.Table, col string, method outlier.Method, multiplier float64) (OutlierBounds, error) {
	values, err := t.Column(col)
	if err != nil {
		return OutlierBounds{}, err
	}
	clean := dropNaN(values)
	if len(clean) < 2 {
		return OutlierBounds{}, fmt.Errorf("column %q has %d usable values, need at least 2", col, len(clean))
	}

	var lower, upper float64
	switch method {
	case outlier.MethodIQR:
		sorted := make([]float64, len(clean))
		copy(sorted, clean)
		sort.Float64s(sorted)
		q1 := quantileSorted(sorted, 0.25)
		q3 := quantileSorted(sorted, 0.75)
		iqr := q3 - q1
		lower = q1 - multiplier*iqr
		upper = q3 + multiplier*iqr
	case outlier.MethodZScore:
		m := mean(clean)
		s := stddev(clean, m)
		lower = m - multiplier*s
		upper = m + multiplier*s
	default:
		return OutlierBounds{}, fmt.Errorf("%w: %q", outlier.ErrUnknownMethod, method)
	}

	flagged := 0
	for _, v := range clean {
		if v < lower || v > upper {
			flagged++
		}
	}
	return OutlierBounds{
		Column:     col,
		Method:     method,
		Multiplier: multiplier,
		Lower:      lower,
		Upper:      upper,
		Total:      len(clean),
		Flagged:    flagged,
		Percent:    100 * float64(flagged) / float64(len(clean)),
	}, nil
}
