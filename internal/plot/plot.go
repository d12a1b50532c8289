// Package plot renders the active table for the analyst: PNG charts for
// reports and an interactive HTML line chart for range selection. Removal
// masks from the selection engine are drawn as highlighted points so the
// analyst can see what a pending operation would drop.
package plot

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// TimeSeriesPNG renders one column as a line chart. When mask is non-nil,
// rows flagged for removal are overlaid as red dots.
func TimeSeriesPNG(t *table.Table, column string, mask []bool) ([]byte, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	if mask != nil && len(mask) != t.Rows() {
		return nil, fmt.Errorf("mask has %d entries for %d rows", len(mask), t.Rows())
	}

	var xs []time.Time
	var ys []float64
	var hx []time.Time
	var hy []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ts := t.Timestamp(i)
		xs = append(xs, ts)
		ys = append(ys, v)
		if mask != nil && mask[i] {
			hx = append(hx, ts)
			hy = append(hy, v)
		}
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("column %q has %d plottable values, need at least 2", column, len(xs))
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    column,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: drawing.ColorBlue,
				StrokeWidth: 1.5,
			},
		},
	}
	if len(hx) > 0 {
		series = append(series, chart.TimeSeries{
			Name:    "flagged",
			XValues: hx,
			YValues: hy,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    drawing.ColorRed,
			},
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Time series: %s", column),
		Width:  1280,
		Height: 640,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 40},
			FillColor: drawing.ColorWhite,
		},
		XAxis: chart.XAxis{
			Name: "time",
		},
		YAxis: chart.YAxis{
			Name: column,
		},
		Series: series,
	}

	buf := &bytes.Buffer{}
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("rendering time series chart: %w", err)
	}
	return buf.Bytes(), nil
}

// HistogramPNG renders the value distribution of one column.
func HistogramPNG(t *table.Table, column string, bins int) ([]byte, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = 20
	}

	var clean []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return nil, fmt.Errorf("column %q has %d plottable values, need at least 2", column, len(clean))
	}

	lo, hi := clean[0], clean[0]
	for _, v := range clean[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, v := range clean {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}

	bars := make([]chart.Value, bins)
	for i, c := range counts {
		bars[i] = chart.Value{
			Value: float64(c),
			Label: fmt.Sprintf("%.3g", lo+(float64(i)+0.5)*width),
			Style: chart.Style{
				FillColor:   drawing.ColorBlue.WithAlpha(160),
				StrokeColor: drawing.ColorBlue,
			},
		}
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("Distribution: %s", column),
		Width:  1280,
		Height: 640,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 60},
			FillColor: drawing.ColorWhite,
		},
		BarWidth: max(8, 1100/bins),
		Bars:     bars,
	}

	buf := &bytes.Buffer{}
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("rendering histogram: %w", err)
	}
	return buf.Bytes(), nil
}
