package plot

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/okabe/seriescrub/internal/domain/table"
)

// TimeSeriesHTML renders an interactive line chart for one or more columns.
// Missing cells become gaps in the series.
func TimeSeriesHTML(w io.Writer, t *table.Table, columns []string) error {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Working dataset",
			Subtitle: fmt.Sprintf("%d rows", t.Rows()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
	)

	xAxis := make([]string, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		xAxis[i] = t.Timestamp(i).Format(time.RFC3339)
	}
	line.SetXAxis(xAxis)

	for _, name := range columns {
		values, err := t.Column(name)
		if err != nil {
			return err
		}
		points := make([]opts.LineData, len(values))
		for i, v := range values {
			if math.IsNaN(v) {
				points[i] = opts.LineData{Value: nil}
			} else {
				points[i] = opts.LineData{Value: v}
			}
		}
		line.AddSeries(name, points)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("rendering interactive chart: %w", err)
	}
	return nil
}

// CorrelationHeatmapHTML renders a pairwise correlation matrix as an
// interactive heatmap. The matrix rows and columns follow the given names.
func CorrelationHeatmapHTML(w io.Writer, names []string, values [][]float64) error {
	if len(names) < 2 {
		return fmt.Errorf("need at least 2 columns for a correlation heatmap, have %d", len(names))
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Correlation heatmap"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: names}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min:        -1,
			Max:        1,
			Calculable: opts.Bool(true),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#313695", "#ffffff", "#a50026"},
			},
		}),
	)

	var points []opts.HeatMapData
	for i := range names {
		for j := range names {
			v := values[i][j]
			if math.IsNaN(v) {
				continue
			}
			points = append(points, opts.HeatMapData{
				Value: [3]interface{}{j, i, math.Round(v*1000) / 1000},
			})
		}
	}
	hm.SetXAxis(names).AddSeries("correlation", points)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("rendering correlation heatmap: %w", err)
	}
	return nil
}

// ScatterHTML renders one column against another, pairing only rows where
// both cells are present.
func ScatterHTML(w io.Writer, t *table.Table, xCol, yCol string) error {
	xs, err := t.Column(xCol)
	if err != nil {
		return err
	}
	ys, err := t.Column(yCol)
	if err != nil {
		return err
	}

	var points []opts.ScatterData
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		points = append(points, opts.ScatterData{
			Value:      []interface{}{xs[i], ys[i]},
			SymbolSize: 6,
		})
	}
	if len(points) < 2 {
		return fmt.Errorf("columns %q and %q have %d complete pairs, need at least 2", xCol, yCol, len(points))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s vs %s", yCol, xCol),
			Subtitle: fmt.Sprintf("%d pairs", len(points)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xCol}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yCol}),
	)
	scatter.AddSeries(fmt.Sprintf("%s vs %s", yCol, xCol), points)

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("rendering scatter chart: %w", err)
	}
	return nil
}
