package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// WriteTable renders a console report: a summary, the matches, the
// unmatched periods and the timeline findings.
func WriteTable(w io.Writer, r *model.ComparisonResult) error {
	sections := []string{summaryTable(r.Summary), matchesTable(r.Matches)}
	if len(r.UnmatchedA)+len(r.UnmatchedB) > 0 {
		sections = append(sections, unmatchedTable(r))
	}
	if n := len(r.OverlapsA) + len(r.OverlapsB) + len(r.GapsA) + len(r.GapsB); n > 0 {
		sections = append(sections, timelineTable(r))
	}

	for i, s := range sections {
		if i > 0 {
			s = "\n" + s
		}
		if _, err := io.WriteString(w, s+"\n"); err != nil {
			return eris.Wrap(err, "report: write table")
		}
	}
	return nil
}

func newTable(title string, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("%s", title)
	tw.AppendHeader(header)
	return tw
}

func rightAlign(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{
			Number:      c,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	return cfgs
}

func summaryTable(s model.SummaryMetrics) string {
	tw := newTable("Summary", table.Row{"Metric", "A", "B"})
	tw.AppendRows([]table.Row{
		{"Periods", s.TotalA, s.TotalB},
		{"Matched", s.Matched, s.Matched},
		{"Unmatched", s.UnmatchedA, s.UnmatchedB},
		{"Total days", s.TotalDaysA, s.TotalDaysB},
		{"Overlaps", s.OverlapsA, s.OverlapsB},
		{"Gaps", s.GapsA, s.GapsB},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Match rate", pct(s.MatchRate), ""},
		{"Coverage of B", "", pct(s.CoverageB)},
		{"Exact matches", fmt.Sprintf("%d (%s)", s.ExactMatches, pct(s.ExactMatchRate)), ""},
		{"Partial matches", s.PartialMatches, ""},
		{"Average score", score(s.AverageScore), ""},
		{"Quality score", pct(s.QualityScore), ""},
		{"Confidence", pct(s.Confidence), ""},
		{"Data completeness", pct(s.DataCompleteness), ""},
		{"Days difference", s.TotalDaysDifference, ""},
		{"Conflicts", s.Conflicts, ""},
	})
	tw.SetColumnConfigs(rightAlign(2, 3))
	return tw.Render()
}

func matchesTable(matches []model.Match) string {
	tw := newTable("Matches", table.Row{"A", "B", "Company A", "Company B", "Period A", "Period B", "Score", "Tier", "Differences"})
	for _, m := range matches {
		tier := string(m.Tier)
		if m.Partial {
			tier += " (partial)"
		}
		tw.AppendRow(table.Row{
			m.PeriodAIndex, m.PeriodBIndex,
			m.PeriodA.Company, m.PeriodB.Company,
			span(m.PeriodA), span(m.PeriodB),
			score(m.CompositeScore), tier,
			differenceSummary(m.Differences),
		})
	}
	if len(matches) == 0 {
		tw.AppendRow(table.Row{"-", "-", "no matches", "", "", "", "", "", ""})
	}
	tw.SetColumnConfigs(rightAlign(1, 2, 7))
	return tw.Render()
}

func unmatchedTable(r *model.ComparisonResult) string {
	tw := newTable("Unmatched", table.Row{"Source", "Index", "Company", "Period", "Reason"})
	for _, list := range [][]model.DisplayPeriod{r.UnmatchedA, r.UnmatchedB} {
		for _, p := range list {
			tw.AppendRow(table.Row{string(p.Source), p.Index, p.Company, span(p), p.Reason})
		}
	}
	tw.SetColumnConfigs(rightAlign(2))
	return tw.Render()
}

func timelineTable(r *model.ComparisonResult) string {
	tw := newTable("Timeline", table.Row{"Source", "Kind", "Indices", "From", "To", "Days", "Detail"})
	for _, list := range [][]model.OverlapFinding{r.OverlapsA, r.OverlapsB} {
		for _, o := range list {
			tw.AppendRow(table.Row{
				string(o.Source), "overlap", indices(o.IndexA, o.IndexB),
				o.Start, o.End, o.Days, o.CompanyA + " / " + o.CompanyB,
			})
		}
	}
	for _, list := range [][]model.GapFinding{r.GapsA, r.GapsB} {
		for _, g := range list {
			tw.AppendRow(table.Row{
				string(g.Source), "gap", indices(g.BeforeIndex, g.AfterIndex),
				g.Start, g.End, g.Days, "",
			})
		}
	}
	tw.SetColumnConfigs(rightAlign(6))
	return tw.Render()
}

func span(p model.DisplayPeriod) string {
	start := p.StartDate
	if start == "" {
		start = "?"
	}
	end := endDate(p)
	if end == "" {
		end = "?"
	}
	return start + " → " + end
}

func indices(a, b int) string {
	return strconv.Itoa(a) + ", " + strconv.Itoa(b)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
