// Package model defines the employment-period records and comparison results
// shared by the reconciliation engine, its loaders, reports and stores.
package model

import (
	"slices"
	"time"
)

// Source identifies which document a period was extracted from.
type Source string

const (
	// SourceA is the structured spreadsheet.
	SourceA Source = "A"
	// SourceB is the OCR'd benefits document.
	SourceB Source = "B"
)

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	return s == SourceA || s == SourceB
}

// Other returns the opposite source.
func (s Source) Other() Source {
	if s == SourceA {
		return SourceB
	}
	return SourceA
}

// RawPeriod is an employment period as produced by an extractor. Dates are
// free-form strings; an empty EndDate means the period is ongoing.
type RawPeriod struct {
	Company   string `json:"company" yaml:"company"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Source    Source `json:"source,omitempty" yaml:"source,omitempty"`
}

// QualityFlag marks a data-quality problem found while normalizing a period.
type QualityFlag string

const (
	FlagMissingCompany  QualityFlag = "missing_company"
	FlagMissingDates    QualityFlag = "missing_dates"
	FlagInvalidDuration QualityFlag = "invalid_duration"
)

// NormalizedPeriod is the comparable form of a RawPeriod. Start and End are
// nil when the corresponding date is absent or could not be parsed.
type NormalizedPeriod struct {
	Raw              RawPeriod     `json:"raw"`
	OriginalIndex    int           `json:"original_index"`
	CanonicalCompany string        `json:"canonical_company"`
	CoreCompany      string        `json:"core_company"`
	Start            *time.Time    `json:"start,omitempty"`
	End              *time.Time    `json:"end,omitempty"`
	Ongoing          bool          `json:"ongoing"`
	DurationDays     *int          `json:"duration_days,omitempty"`
	Flags            []QualityFlag `json:"quality_flags,omitempty"`
}

// HasFlag reports whether the period carries the given quality flag.
func (p NormalizedPeriod) HasFlag(f QualityFlag) bool {
	return slices.Contains(p.Flags, f)
}

// HasCompany reports whether the period has a usable employer name.
func (p NormalizedPeriod) HasCompany() bool {
	return p.CanonicalCompany != ""
}

// Dated reports whether both ends of the interval are known.
func (p NormalizedPeriod) Dated() bool {
	return p.Start != nil && p.End != nil
}

// Duration returns the duration in days and whether it is known.
func (p NormalizedPeriod) Duration() (int, bool) {
	if p.DurationDays == nil {
		return 0, false
	}
	return *p.DurationDays, true
}

// SimilarityResult holds the sub-scores computed for one A×B pair.
type SimilarityResult struct {
	Company   float64 `json:"company_score" yaml:"company_score"`
	Temporal  float64 `json:"temporal_score" yaml:"temporal_score"`
	Duration  float64 `json:"duration_score" yaml:"duration_score"`
	Composite float64 `json:"composite_score" yaml:"composite_score"`
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// InclusiveDays returns the number of calendar days in [start, end].
func InclusiveDays(start, end time.Time) int {
	return DaysBetween(start, end) + 1
}

// Intersect returns the common span of two closed day intervals and its
// length in days. days is 0 when the intervals are disjoint.
func Intersect(aStart, aEnd, bStart, bEnd time.Time) (start, end time.Time, days int) {
	start = aStart
	if bStart.After(start) {
		start = bStart
	}
	end = aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return start, end, 0
	}
	return start, end, InclusiveDays(start, end)
}

// DateLayout is the display format for dates in results and reports.
const DateLayout = "2006-01-02"

// FormatDate renders t with DateLayout, or "" when t is nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
