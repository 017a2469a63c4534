// Package timeline finds overlaps and gaps within one source's periods.
package timeline

import (
	"slices"
	"time"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Overlaps reports every pair i<j of periods with different canonical
// companies whose intervals share at least one day. An ongoing period with no
// measurable end is treated as open-ended; two open-ended periods are not
// compared because their common span has no end.
func Overlaps(list []model.NormalizedPeriod, source model.Source) []model.OverlapFinding {
	var out []model.OverlapFinding
	for i := 0; i < len(list); i++ {
		a := list[i]
		if !spans(a) {
			continue
		}
		for j := i + 1; j < len(list); j++ {
			b := list[j]
			if !spans(b) || a.CanonicalCompany == b.CanonicalCompany {
				continue
			}
			aEnd, bEnd, ok := closeEnds(a, b)
			if !ok {
				continue
			}
			start, end, days := model.Intersect(*a.Start, aEnd, *b.Start, bEnd)
			if days < 1 {
				continue
			}
			out = append(out, model.OverlapFinding{
				Source:   source,
				IndexA:   a.OriginalIndex,
				IndexB:   b.OriginalIndex,
				CompanyA: a.Raw.Company,
				CompanyB: b.Raw.Company,
				Start:    start.Format(model.DateLayout),
				End:      end.Format(model.DateLayout),
				Days:     days,
			})
		}
	}
	return out
}

// Gaps reports uncovered spans between chronologically adjacent periods.
// Periods are ordered by start date, ties by original index. Coverage is the
// running maximum end date, so a long period swallowing shorter ones does
// not produce false gaps.
func Gaps(list []model.NormalizedPeriod, source model.Source) []model.GapFinding {
	dated := make([]model.NormalizedPeriod, 0, len(list))
	for _, p := range list {
		if spans(p) {
			dated = append(dated, p)
		}
	}
	slices.SortStableFunc(dated, func(a, b model.NormalizedPeriod) int {
		if c := a.Start.Compare(*b.Start); c != 0 {
			return c
		}
		return a.OriginalIndex - b.OriginalIndex
	})

	var out []model.GapFinding
	if len(dated) == 0 {
		return out
	}

	cover := dated[0]
	for _, next := range dated[1:] {
		if cover.End == nil {
			// Open-ended coverage leaves no room for later gaps.
			break
		}
		if days := model.DaysBetween(*cover.End, *next.Start) - 1; days > 0 {
			start := cover.End.AddDate(0, 0, 1)
			end := next.Start.AddDate(0, 0, -1)
			out = append(out, model.GapFinding{
				Source:      source,
				BeforeIndex: cover.OriginalIndex,
				AfterIndex:  next.OriginalIndex,
				Start:       start.Format(model.DateLayout),
				End:         end.Format(model.DateLayout),
				Days:        days,
			})
		}
		if next.End == nil || next.End.After(*cover.End) {
			cover = next
		}
	}
	return out
}

// spans reports whether p has an interval: a start and either an end or an
// open ongoing end.
func spans(p model.NormalizedPeriod) bool {
	return p.Start != nil && (p.End != nil || p.Ongoing)
}

// closeEnds substitutes the other period's end for a missing ongoing end.
func closeEnds(a, b model.NormalizedPeriod) (time.Time, time.Time, bool) {
	switch {
	case a.End != nil && b.End != nil:
		return *a.End, *b.End, true
	case a.End != nil:
		return *a.End, *a.End, true
	case b.End != nil:
		return *b.End, *b.End, true
	default:
		return time.Time{}, time.Time{}, false
	}
}
