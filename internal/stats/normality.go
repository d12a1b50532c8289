package stats

import (
	"math"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// NormalityResult is a Jarque-Bera test outcome for one column. The null
// hypothesis is that the data is normally distributed; p < 0.05 rejects it.
type NormalityResult struct {
	Column     string  `json:"column"`
	SampleSize int     `json:"sample_size"`
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"p_value"`
	Normal     bool    `json:"normal_at_005"`
}

// NormalityTests runs Jarque-Bera on each requested column (all columns
// when nil). Columns with fewer than 8 usable values are skipped.
func NormalityTests(t *table.Table, cols []string) []NormalityResult {
	if cols == nil {
		cols = t.ColumnNames()
	}
	var out []NormalityResult
	for _, name := range cols {
		values, err := t.Column(name)
		if err != nil {
			continue
		}
		clean := dropNaN(values)
		if len(clean) < 8 {
			continue
		}

		n := float64(len(clean))
		m := mean(clean)
		s := stddev(clean, m)
		if s == 0 {
			continue
		}

		// Population moments for the JB statistic.
		var m3, m4 float64
		for _, v := range clean {
			d := v - m
			m3 += d * d * d
			m4 += d * d * d * d
		}
		variance := 0.0
		for _, v := range clean {
			d := v - m
			variance += d * d
		}
		variance /= n
		skew := (m3 / n) / math.Pow(variance, 1.5)
		kurt := (m4/n)/(variance*variance) - 3

		jb := n / 6 * (skew*skew + kurt*kurt/4)
		p := 1 - chiSquaredCDF(jb, 2)

		out = append(out, NormalityResult{
			Column:     name,
			SampleSize: len(clean),
			Statistic:  jb,
			PValue:     p,
			Normal:     p >= 0.05,
		})
	}
	return out
}
