package normalize

import (
	"strconv"
	"strings"
	"time"
)

// MinYear is the earliest plausible year for an employment date.
const MinYear = 1950

// futureYears is how far past the reference year a date may fall.
const futureYears = 5

// dateLayout is one accepted input format. Month-only layouts resolve to the
// first day of the month for start dates and the last day for end dates.
type dateLayout struct {
	layout    string
	monthOnly bool
}

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []dateLayout{
	{layout: "2006-01-02"},
	{layout: "2006-1-2"},
	{layout: time.RFC3339},
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02 15:04:05"},
	{layout: "2/1/2006"},
	{layout: "2-1-2006"},
	{layout: "2.1.2006"},
	{layout: "2/1/06"},
	{layout: "2-1-06"},
	{layout: "2.1.06"},
	{layout: "2006/1/2"},
	{layout: "1/2006", monthOnly: true},
	{layout: "1-2006", monthOnly: true},
	{layout: "1.2006", monthOnly: true},
}

// excelEpoch is day zero of spreadsheet serial dates (1900 date system).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ongoingMarkers are end-date placeholders meaning the period has not ended.
var ongoingMarkers = map[string]bool{
	"atual":      true,
	"atualmente": true,
	"em aberto":  true,
	"presente":   true,
	"present":    true,
	"current":    true,
	"ongoing":    true,
	"-":          true,
	"--":         true,
}

// ParsedDate is the cached outcome of parsing one raw date string.
type ParsedDate struct {
	Time      time.Time
	MonthOnly bool
	OK        bool
}

// ParseDate parses a free-form date without applying the plausibility window.
func ParseDate(s string) ParsedDate {
	s = strings.TrimSpace(s)
	if s == "" {
		return ParsedDate{}
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err == nil {
			y, m, d := t.Date()
			return ParsedDate{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), MonthOnly: l.monthOnly, OK: true}
		}
	}

	if t, ok := parseExcelSerial(s); ok {
		return ParsedDate{Time: t, OK: true}
	}
	return ParsedDate{}
}

// parseExcelSerial accepts five-digit spreadsheet day numbers.
func parseExcelSerial(s string) (time.Time, bool) {
	if len(s) != 5 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, n), true
}

// Resolve returns the calendar day the parse denotes. For month-only input,
// end dates resolve to the last day of the month.
func (p ParsedDate) Resolve(isEnd bool) time.Time {
	if p.MonthOnly && isEnd {
		return p.Time.AddDate(0, 1, -1)
	}
	return p.Time
}

// IsOngoingMarker reports whether an end-date string means "still employed".
func IsOngoingMarker(s string) bool {
	return ongoingMarkers[strings.ToLower(strings.TrimSpace(s))]
}

// Plausible reports whether t falls inside [MinYear, referenceYear+5].
func Plausible(t time.Time, referenceYear int) bool {
	y := t.Year()
	return y >= MinYear && y <= referenceYear+futureYears
}
