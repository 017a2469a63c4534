package report

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// WriteXLSX saves r as a workbook with Summary, Matches, Unmatched and
// Timeline sheets.
func WriteXLSX(path string, r *model.ComparisonResult) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}

// WriteXLSXTo streams the workbook to w.
func WriteXLSXTo(w io.Writer, r *model.ComparisonResult) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func buildWorkbook(r *model.ComparisonResult) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	s := r.Summary
	for _, kv := range []struct {
		label string
		value float64
	}{
		{"Periods A", float64(s.TotalA)},
		{"Periods B", float64(s.TotalB)},
		{"Matched", float64(s.Matched)},
		{"Partial matches", float64(s.PartialMatches)},
		{"Exact matches", float64(s.ExactMatches)},
		{"Unmatched A", float64(s.UnmatchedA)},
		{"Unmatched B", float64(s.UnmatchedB)},
		{"Match rate %", s.MatchRate},
		{"Coverage B %", s.CoverageB},
		{"Exact match rate %", s.ExactMatchRate},
		{"Average score", s.AverageScore},
		{"Quality score", s.QualityScore},
		{"Confidence %", s.Confidence},
		{"Data completeness %", s.DataCompleteness},
		{"Total days A", float64(s.TotalDaysA)},
		{"Total days B", float64(s.TotalDaysB)},
		{"Days difference", float64(s.TotalDaysDifference)},
		{"Conflicts", float64(s.Conflicts)},
		{"Overlaps A", float64(s.OverlapsA)},
		{"Overlaps B", float64(s.OverlapsB)},
		{"Gaps A", float64(s.GapsA)},
		{"Gaps B", float64(s.GapsB)},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.label)
		row.AddCell().SetFloat(kv.value)
	}
	for _, field := range model.Fields {
		row := summary.AddRow()
		row.AddCell().SetString("Differences: " + string(field))
		row.AddCell().SetInt(s.DifferencesByField[field])
	}

	rows := flatRows(r)
	matched := rows[:len(r.Matches)]
	unmatched := rows[len(r.Matches):]
	if err := addTableSheet(f, "Matches", csvHeader, matched); err != nil {
		return nil, err
	}
	if err := addTableSheet(f, "Unmatched", csvHeader, unmatched); err != nil {
		return nil, err
	}

	var timeline [][]string
	for _, list := range [][]model.OverlapFinding{r.OverlapsA, r.OverlapsB} {
		for _, o := range list {
			timeline = append(timeline, []string{
				string(o.Source), "overlap", strconv.Itoa(o.IndexA), strconv.Itoa(o.IndexB),
				o.Start, o.End, strconv.Itoa(o.Days), o.CompanyA + " / " + o.CompanyB,
			})
		}
	}
	for _, list := range [][]model.GapFinding{r.GapsA, r.GapsB} {
		for _, g := range list {
			timeline = append(timeline, []string{
				string(g.Source), "gap", strconv.Itoa(g.BeforeIndex), strconv.Itoa(g.AfterIndex),
				g.Start, g.End, strconv.Itoa(g.Days), "",
			})
		}
	}
	header := []string{"source", "kind", "index_1", "index_2", "start", "end", "days", "detail"}
	if err := addTableSheet(f, "Timeline", header, timeline); err != nil {
		return nil, err
	}

	return f, nil
}

func addTableSheet(f *xlsx.File, name string, header []string, rows [][]string) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add %s sheet", name)
	}
	for _, cells := range append([][]string{header}, rows...) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	return nil
}
