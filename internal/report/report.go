// Package report renders a model.ComparisonResult for people and for
// downstream tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Format is an output format.
type Format string

// Supported formats. FormatXLSX writes to a file, see WriteXLSX.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("report: unknown format %q (table, json, yaml, csv, xlsx)", s)
	}
}

// Write renders r to w. FormatXLSX is not a stream format and is rejected.
func Write(w io.Writer, r *model.ComparisonResult, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatTable:
		return WriteTable(w, r)
	default:
		return eris.Errorf("report: format %q cannot be written to a stream", format)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *model.ComparisonResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// WriteYAML writes r as YAML.
func WriteYAML(w io.Writer, r *model.ComparisonResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: close yaml encoder")
	}
	return nil
}

// csvHeader is shared by the CSV report and the xlsx Matches/Unmatched
// sheets.
var csvHeader = []string{
	"status", "index_a", "index_b",
	"company_a", "company_b",
	"start_a", "start_b", "end_a", "end_b",
	"days_a", "days_b",
	"score", "tier", "differences", "conflicts", "reason",
}

// WriteCSV writes one row per match and per unmatched period.
func WriteCSV(w io.Writer, r *model.ComparisonResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, row := range flatRows(r) {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}
	return nil
}

// flatRows lays matches and unmatched periods out in csvHeader order.
func flatRows(r *model.ComparisonResult) [][]string {
	rows := make([][]string, 0, len(r.Matches)+len(r.UnmatchedA)+len(r.UnmatchedB))
	for _, m := range r.Matches {
		rows = append(rows, []string{
			matchStatus(m),
			strconv.Itoa(m.PeriodAIndex), strconv.Itoa(m.PeriodBIndex),
			m.PeriodA.Company, m.PeriodB.Company,
			m.PeriodA.StartDate, m.PeriodB.StartDate,
			endDate(m.PeriodA), endDate(m.PeriodB),
			days(m.PeriodA.DurationDays), days(m.PeriodB.DurationDays),
			score(m.CompositeScore), string(m.Tier),
			differenceSummary(m.Differences), strconv.Itoa(len(m.Conflicts)), "",
		})
	}
	for _, p := range r.UnmatchedA {
		rows = append(rows, []string{
			"unmatched_a", strconv.Itoa(p.Index), "",
			p.Company, "", p.StartDate, "", endDate(p), "",
			days(p.DurationDays), "", "", "", "", "", p.Reason,
		})
	}
	for _, p := range r.UnmatchedB {
		rows = append(rows, []string{
			"unmatched_b", "", strconv.Itoa(p.Index),
			"", p.Company, "", p.StartDate, "", endDate(p),
			"", days(p.DurationDays), "", "", "", "", p.Reason,
		})
	}
	return rows
}

func matchStatus(m model.Match) string {
	switch {
	case m.IsExactMatch:
		return "exact"
	case m.Partial:
		return "partial"
	default:
		return "match"
	}
}

func differenceSummary(diffs []model.Difference) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, fmt.Sprintf("%s:%s", d.Field, d.Severity))
	}
	return strings.Join(parts, ";")
}

func endDate(p model.DisplayPeriod) string {
	if p.EndDate == "" && p.Ongoing {
		return "ongoing"
	}
	return p.EndDate
}

func days(d *int) string {
	if d == nil {
		return ""
	}
	return strconv.Itoa(*d)
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
