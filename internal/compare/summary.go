package compare

import (
	"math"

	"github.com/sells-group/reconcile-cli/internal/model"
)

const (
	qualityScoreWeight = 0.7
	qualityMatchWeight = 0.3
	keyFieldsPerPeriod = 4
)

// display projects a normalized period into its report form.
func display(p model.NormalizedPeriod, source model.Source, reason string) model.DisplayPeriod {
	d := model.DisplayPeriod{
		Index:            p.OriginalIndex,
		Source:           source,
		Company:          p.Raw.Company,
		CanonicalCompany: p.CanonicalCompany,
		Role:             p.Raw.Role,
		StartDate:        model.FormatDate(p.Start),
		EndDate:          model.FormatDate(p.End),
		Ongoing:          p.Ongoing,
		QualityFlags:     p.Flags,
		Reason:           reason,
	}
	if days, ok := p.Duration(); ok {
		d.DurationDays = &days
	}
	return d
}

// summarize aggregates a finished result. Every ratio returns 0 on a zero
// denominator.
func summarize(normA, normB []model.NormalizedPeriod, r *model.ComparisonResult) model.SummaryMetrics {
	s := model.SummaryMetrics{
		TotalA:             len(normA),
		TotalB:             len(normB),
		Matched:            len(r.Matches),
		UnmatchedA:         len(r.UnmatchedA),
		UnmatchedB:         len(r.UnmatchedB),
		DifferencesByField: make(map[model.Field]int, len(model.Fields)),
		OverlapsA:          len(r.OverlapsA),
		OverlapsB:          len(r.OverlapsB),
		GapsA:              len(r.GapsA),
		GapsB:              len(r.GapsB),
	}
	for _, f := range model.Fields {
		s.DifferencesByField[f] = 0
	}

	var scoreSum, confidenceSum float64
	for _, m := range r.Matches {
		scoreSum += m.CompositeScore
		confidenceSum += m.Confidence
		if m.Partial {
			s.PartialMatches++
		}
		if m.IsExactMatch {
			s.ExactMatches++
		}
		for _, d := range m.Differences {
			s.DifferencesByField[d.Field]++
		}
		s.Conflicts += len(m.Conflicts)
	}

	s.MatchRate = percent(s.Matched, s.TotalA)
	s.CoverageB = percent(s.Matched, s.TotalB)
	s.ExactMatchRate = percent(s.ExactMatches, s.TotalA)

	avgScore := ratio(scoreSum, s.Matched)
	s.AverageScore = round(avgScore, 4)
	matchRatio := ratio(float64(s.Matched), max(s.TotalA, s.TotalB))
	s.QualityScore = round((avgScore*qualityScoreWeight+matchRatio*qualityMatchWeight)*100, 2)
	s.Confidence = round(ratio(confidenceSum, s.Matched)*100, 2)
	s.DataCompleteness = completeness(normA, normB)

	s.TotalDaysA = totalDays(normA)
	s.TotalDaysB = totalDays(normB)
	s.TotalDaysDifference = s.TotalDaysA - s.TotalDaysB
	if s.TotalDaysDifference < 0 {
		s.TotalDaysDifference = -s.TotalDaysDifference
	}
	return s
}

// completeness is the share of key fields (company, start, end, duration)
// present across both lists.
func completeness(lists ...[]model.NormalizedPeriod) float64 {
	var present, total int
	for _, list := range lists {
		for _, p := range list {
			total += keyFieldsPerPeriod
			if p.HasCompany() {
				present++
			}
			if p.Start != nil {
				present++
			}
			if p.End != nil {
				present++
			}
			if p.DurationDays != nil {
				present++
			}
		}
	}
	return percent(present, total)
}

func totalDays(list []model.NormalizedPeriod) int {
	var sum int
	for _, p := range list {
		if d, ok := p.Duration(); ok {
			sum += d
		}
	}
	return sum
}

func percent(n, d int) float64 {
	return round(ratio(float64(n), d)*100, 2)
}

func ratio(n float64, d int) float64 {
	if d == 0 {
		return 0
	}
	return n / float64(d)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
