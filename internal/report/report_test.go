package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/compare"
	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
)

func sampleResult(t *testing.T) *model.ComparisonResult {
	t.Helper()
	e, err := compare.New(config.DefaultCompareConfig(), compare.Options{ReferenceYear: 2024})
	require.NoError(t, err)
	res, err := e.Compare(
		[]model.RawPeriod{
			{Company: "ACME LTDA", StartDate: "2020-01-01", EndDate: "2020-12-31"},
			{Company: "Globex", StartDate: "2021-03-01", EndDate: ""},
			{Company: "", StartDate: "2019-01-01", EndDate: "2019-06-30"},
		},
		[]model.RawPeriod{
			{Company: "ACME SA", StartDate: "2020-01-01", EndDate: "2020-07-31"},
			{Company: "Initech", StartDate: "2010-01-01", EndDate: "2010-02-01"},
		},
	)
	require.NoError(t, err)
	return res
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"table": FormatTable, "JSON": FormatJSON, "yml": FormatYAML,
		" yaml ": FormatYAML, "csv": FormatCSV, "xlsx": FormatXLSX,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "pdf"`)
}

func TestWrite_RejectsXLSXStream(t *testing.T) {
	err := Write(&bytes.Buffer{}, sampleResult(t), FormatXLSX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be written to a stream")
}

func TestWriteJSON(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, FormatJSON))

	var decoded model.ComparisonResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.Summary.Matched, decoded.Summary.Matched)
	require.Len(t, decoded.Matches, 1)
	assert.Equal(t, res.Matches[0].Tier, decoded.Matches[0].Tier)
	assert.Contains(t, buf.String(), `"match_tier": "low"`)
	assert.Contains(t, buf.String(), `"unmatched_a": [`)
}

func TestWriteYAML(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, FormatYAML))

	out := buf.String()
	assert.Contains(t, out, "match_tier: low")
	assert.Contains(t, out, "composite_score:")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "gaps_b")
}

func TestWriteCSV(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+len(res.Matches)+len(res.UnmatchedA)+len(res.UnmatchedB))
	assert.Equal(t, csvHeader, records[0])

	match := records[1]
	assert.Equal(t, "match", match[0])
	assert.Equal(t, "ACME LTDA", match[3])
	assert.Equal(t, "ACME SA", match[4])
	assert.Equal(t, "366", match[9])
	assert.Equal(t, "213", match[10])
	assert.Equal(t, "company:medium;end_date:high;duration:high", match[13])
	assert.Equal(t, "2", match[14])

	var statuses []string
	for _, rec := range records[2:] {
		statuses = append(statuses, rec[0])
		assert.NotEmpty(t, rec[15])
	}
	assert.Equal(t, []string{"unmatched_a", "unmatched_a", "unmatched_b"}, statuses)
	assert.Equal(t, "ongoing", records[2][7])
}

func TestWriteTable(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, FormatTable))

	out := buf.String()
	for _, want := range []string{"Summary", "Matches", "Unmatched", "Timeline", "ACME SA", "Initech", "2020-01-01 → 2020-12-31", "gap", "missing company name"} {
		assert.Contains(t, out, want)
	}
}

func TestWriteTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, &model.ComparisonResult{}))

	out := buf.String()
	assert.Contains(t, out, "no matches")
	assert.NotContains(t, out, "Unmatched")
	assert.NotContains(t, out, "Timeline")
}

func TestWriteXLSX(t *testing.T) {
	res := sampleResult(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, res))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)
	names := make([]string, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Summary", "Matches", "Unmatched", "Timeline"}, names)

	matches := f.Sheet["Matches"]
	require.Len(t, matches.Rows, 2)
	assert.Equal(t, "status", matches.Rows[0].Cells[0].String())
	assert.Equal(t, "ACME SA", matches.Rows[1].Cells[4].String())

	unmatched := f.Sheet["Unmatched"]
	assert.Len(t, unmatched.Rows, 4)

	summary := f.Sheet["Summary"]
	assert.Equal(t, "Periods A", summary.Rows[0].Cells[0].String())
	v, err := summary.Rows[0].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 3, v, 1e-9)
}

func TestWriteXLSXTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSXTo(&buf, sampleResult(t)))
	assert.True(t, strings.HasPrefix(buf.String(), "PK"))
}
