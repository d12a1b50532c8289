// Package report assembles a plain-text analysis report over the session's
// active table: dataset overview, cleaning history and per-column
// statistics.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okabe/seriescrub/internal/domain/ledger"
	dtable "github.com/okabe/seriescrub/internal/domain/table"
	"github.com/okabe/seriescrub/internal/stats"
)

// Input bundles everything the report renders. History and Normality may be
// empty.
type Input struct {
	Title     string
	Table     *dtable.Table
	History   []ledger.Meta
	Summaries []stats.ColumnSummary
	Normality []stats.NormalityResult
}

// Build writes the report to w.
func Build(w io.Writer, in Input) error {
	title := in.Title
	if title == "" {
		title = "Data analysis report"
	}
	if _, err := fmt.Fprintf(w, "%s\nGenerated: %s\n\n", title, time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return err
	}

	if err := writeOverview(w, in.Table); err != nil {
		return err
	}
	if len(in.History) > 0 {
		if err := writeHistory(w, in.History); err != nil {
			return err
		}
	}
	if len(in.Summaries) > 0 {
		if err := writeSummaries(w, in.Summaries); err != nil {
			return err
		}
	}
	if len(in.Normality) > 0 {
		if err := writeNormality(w, in.Normality); err != nil {
			return err
		}
	}
	return nil
}

func writeOverview(w io.Writer, t *dtable.Table) error {
	start, end := t.TimeRange()
	_, err := fmt.Fprintf(w, "== Dataset overview ==\nRows: %d\nColumns: %d\nPeriod: %s .. %s\n\n",
		t.Rows(), len(t.ColumnNames()),
		start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05"))
	return err
}

func writeHistory(w io.Writer, history []ledger.Meta) error {
	if _, err := fmt.Fprintln(w, "== Cleaning history =="); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Seq", "At", "Column", "Criteria", "Removed", "Rows", "Active"})
	for _, m := range history {
		active := ""
		if m.Active {
			active = "*"
		}
		tw.AppendRow(table.Row{
			m.Seq,
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.TargetColumn,
			m.Criteria,
			m.RemovedRows,
			m.Rows,
			active,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	_, err := fmt.Fprintln(w)
	return err
}

func writeSummaries(w io.Writer, summaries []stats.ColumnSummary) error {
	if _, err := fmt.Fprintln(w, "== Column statistics =="); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Column", "Count", "Mean", "Std", "Min", "Median", "Max", "Skew", "Kurtosis", "Missing %"})
	for _, s := range summaries {
		tw.AppendRow(table.Row{
			s.Column,
			s.Count,
			fmt.Sprintf("%.4g", s.Mean),
			fmt.Sprintf("%.4g", s.Std),
			fmt.Sprintf("%.4g", s.Min),
			fmt.Sprintf("%.4g", s.Median),
			fmt.Sprintf("%.4g", s.Max),
			fmt.Sprintf("%.3f", s.Skewness),
			fmt.Sprintf("%.3f", s.Kurtosis),
			fmt.Sprintf("%.1f", s.MissingPercent),
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	_, err := fmt.Fprintln(w)
	return err
}

func writeNormality(w io.Writer, results []stats.NormalityResult) error {
	if _, err := fmt.Fprintln(w, "== Normality (Jarque-Bera) =="); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Column", "N", "Statistic", "p-value", "Normal"})
	for _, r := range results {
		normal := "no"
		if r.Normal {
			normal = "yes"
		}
		tw.AppendRow(table.Row{
			r.Column,
			r.SampleSize,
			fmt.Sprintf("%.4g", r.Statistic),
			fmt.Sprintf("%.4g", r.PValue),
			normal,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	_, err := fmt.Fprintln(w)
	return err
}
