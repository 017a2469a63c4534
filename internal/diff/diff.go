// Package diff explains how two matched periods disagree.
package diff

import (
	"fmt"
	"strconv"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Severity bands (days for dates and durations, ratio for names) and tier
// cut-offs.
const (
	dateLowDays      = 30
	dateMediumDays   = 90
	durationLowDays  = 7
	durationMedDays  = 30
	companyLowScore  = 0.8
	companyMedScore  = 0.6
	tierExactScore   = 0.95
	tierHighScore    = 0.85
	tierMediumScore  = 0.70
	confidencePerHit = 0.1
)

// Analysis is the per-field comparison of a matched pair.
type Analysis struct {
	Differences []model.Difference
	Conflicts   []model.Conflict
	Tier        model.Tier
	IsExact     bool
}

// Analyzer classifies differences between matched periods. The zero value is
// ready to use.
type Analyzer struct{}

// New returns an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze compares a (source A) with b (source B) given their scores.
// Differences are reported in field order: company, start_date, end_date,
// duration.
func (an *Analyzer) Analyze(a, b model.NormalizedPeriod, sim model.SimilarityResult) Analysis {
	var out Analysis

	if d, ok := companyDiff(a, b, sim.Company); ok {
		out.add(d, model.ConflictCompany, "employer names disagree")
	}
	if d, ok := dateDiff(model.FieldStartDate, a, b, false); ok {
		out.add(d, model.ConflictDate, "start dates are more than 90 days apart")
	}
	if d, ok := dateDiff(model.FieldEndDate, a, b, true); ok {
		out.add(d, model.ConflictDate, "end dates are more than 90 days apart")
	}
	if d, ok := durationDiff(a, b); ok {
		out.add(d, model.ConflictDuration, "durations differ by more than 30 days")
	}

	out.Tier = TierFor(sim.Composite)
	out.IsExact = len(out.Differences) == 0 && out.Tier == model.TierExact
	return out
}

// add records d and raises a conflict when it is high severity. Differences
// caused by a missing value never raise conflicts.
func (an *Analysis) add(d model.Difference, kind model.ConflictKind, desc string) {
	an.Differences = append(an.Differences, d)
	if d.Severity != model.SeverityHigh || d.ValueA == "" || d.ValueB == "" {
		return
	}
	an.Conflicts = append(an.Conflicts, model.Conflict{
		Kind:        kind,
		Field:       d.Field,
		Severity:    d.Severity,
		Description: desc,
	})
}

// TierFor buckets a composite score.
func TierFor(composite float64) model.Tier {
	switch {
	case composite >= tierExactScore:
		return model.TierExact
	case composite >= tierHighScore:
		return model.TierHigh
	case composite >= tierMediumScore:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// Confidence discounts a composite score by 10% per conflict, floored at 0.
func Confidence(composite float64, conflicts int) float64 {
	return max(0, composite*(1-confidencePerHit*float64(conflicts)))
}

func companyDiff(a, b model.NormalizedPeriod, score float64) (model.Difference, bool) {
	if a.CanonicalCompany == b.CanonicalCompany {
		return model.Difference{}, false
	}
	d := model.Difference{
		Field:  model.FieldCompany,
		ValueA: a.Raw.Company,
		ValueB: b.Raw.Company,
		Delta:  score,
	}
	if reason, missing := missingReason(a.HasCompany(), b.HasCompany(), false, false); missing {
		d.ValueA, d.ValueB = a.CanonicalCompany, b.CanonicalCompany
		d.Severity = model.SeverityHigh
		d.Reason = reason
		return d, true
	}
	switch {
	case score > companyLowScore:
		d.Severity = model.SeverityLow
	case score > companyMedScore:
		d.Severity = model.SeverityMedium
	default:
		d.Severity = model.SeverityHigh
	}
	d.Reason = fmt.Sprintf("names differ (similarity %.2f)", score)
	return d, true
}

func dateDiff(field model.Field, a, b model.NormalizedPeriod, isEnd bool) (model.Difference, bool) {
	ta, tb := a.Start, b.Start
	if isEnd {
		ta, tb = a.End, b.End
	}
	if ta == nil && tb == nil {
		return model.Difference{}, false
	}

	d := model.Difference{
		Field:  field,
		ValueA: model.FormatDate(ta),
		ValueB: model.FormatDate(tb),
	}
	if ta == nil || tb == nil {
		ongoingA := isEnd && a.Ongoing
		ongoingB := isEnd && b.Ongoing
		d.Reason, _ = missingReason(ta != nil, tb != nil, ongoingA, ongoingB)
		d.Severity = model.SeverityHigh
		return d, true
	}

	delta := abs(model.DaysBetween(*ta, *tb))
	if delta == 0 {
		return model.Difference{}, false
	}
	d.Delta = float64(delta)
	d.Severity = dateSeverity(delta)
	d.Reason = fmt.Sprintf("%d days apart", delta)
	return d, true
}

func durationDiff(a, b model.NormalizedPeriod) (model.Difference, bool) {
	durA, okA := a.Duration()
	durB, okB := b.Duration()
	if !okA && !okB {
		return model.Difference{}, false
	}

	d := model.Difference{Field: model.FieldDuration}
	if okA {
		d.ValueA = strconv.Itoa(durA)
	}
	if okB {
		d.ValueB = strconv.Itoa(durB)
	}
	if !okA || !okB {
		d.Reason, _ = missingReason(okA, okB, a.Ongoing && !okA, b.Ongoing && !okB)
		d.Severity = model.SeverityHigh
		return d, true
	}

	delta := abs(durA - durB)
	if delta == 0 {
		return model.Difference{}, false
	}
	d.Delta = float64(delta)
	d.Severity = durationSeverity(delta)
	d.Reason = fmt.Sprintf("durations differ by %d days", delta)
	return d, true
}

// missingReason explains a value present on only one side.
func missingReason(hasA, hasB, ongoingA, ongoingB bool) (string, bool) {
	switch {
	case hasA && hasB:
		return "", false
	case !hasA && ongoingA:
		return "ongoing in source A", true
	case !hasB && ongoingB:
		return "ongoing in source B", true
	case !hasA && !hasB:
		return "missing in both sources", true
	case !hasA:
		return "missing in source A", true
	default:
		return "missing in source B", true
	}
}

func dateSeverity(days int) model.Severity {
	switch {
	case days <= dateLowDays:
		return model.SeverityLow
	case days <= dateMediumDays:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

func durationSeverity(days int) model.Severity {
	switch {
	case days <= durationLowDays:
		return model.SeverityLow
	case days <= durationMedDays:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
