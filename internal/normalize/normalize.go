package normalize

import (
	"strings"
	"time"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Options configures a Normalizer.
type Options struct {
	// AsOf, when non-zero, is the day ongoing periods are measured up to.
	AsOf time.Time
	// ReferenceYear anchors the plausibility window. It is independent of
	// AsOf, so a back-dated AsOf never rejects later dates. Defaults to the
	// current year.
	ReferenceYear int
}

// Normalizer converts RawPeriods into NormalizedPeriods. It never fails:
// problems are recorded as quality flags on the result.
type Normalizer struct {
	cache   *Cache
	asOf    *time.Time
	refYear int
}

// New creates a Normalizer. If cache is nil, a private Cache is created.
func New(cache *Cache, opts Options) *Normalizer {
	if cache == nil {
		cache = NewCache()
	}
	n := &Normalizer{cache: cache, refYear: opts.ReferenceYear}
	if !opts.AsOf.IsZero() {
		d := model.Day(opts.AsOf)
		n.asOf = &d
	}
	if n.refYear == 0 {
		n.refYear = time.Now().Year()
	}
	return n
}

// Normalize builds the comparable form of raw. index is raw's position in
// its source list.
func (n *Normalizer) Normalize(raw model.RawPeriod, index int) model.NormalizedPeriod {
	p := model.NormalizedPeriod{
		Raw:           raw,
		OriginalIndex: index,
	}

	p.CanonicalCompany = n.cache.Company(raw.Company)
	if p.CanonicalCompany == "" {
		p.Flags = append(p.Flags, model.FlagMissingCompany)
	} else {
		p.CoreCompany = CoreName(p.CanonicalCompany)
	}

	datesOK := true
	if start, ok := n.date(raw.StartDate, false); ok {
		p.Start = &start
	} else {
		datesOK = false
	}

	endRaw := strings.TrimSpace(raw.EndDate)
	switch {
	case endRaw == "" || IsOngoingMarker(endRaw):
		p.Ongoing = true
		if n.asOf != nil && (p.Start == nil || !n.asOf.Before(*p.Start)) {
			end := *n.asOf
			p.End = &end
		}
	default:
		if end, ok := n.date(endRaw, true); ok {
			p.End = &end
		} else {
			datesOK = false
		}
	}

	if !datesOK {
		p.Flags = append(p.Flags, model.FlagMissingDates)
	}

	if p.Start != nil && p.End != nil {
		if p.End.Before(*p.Start) {
			p.Start, p.End = p.End, p.Start
			p.Flags = append(p.Flags, model.FlagInvalidDuration)
		}
		d := model.InclusiveDays(*p.Start, *p.End)
		p.DurationDays = &d
	}

	return p
}

// NormalizeAll normalizes a whole source list, preserving order.
func (n *Normalizer) NormalizeAll(raws []model.RawPeriod) []model.NormalizedPeriod {
	out := make([]model.NormalizedPeriod, len(raws))
	for i, r := range raws {
		out[i] = n.Normalize(r, i)
	}
	return out
}

func (n *Normalizer) date(s string, isEnd bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	parsed := n.cache.Date(s)
	if !parsed.OK {
		return time.Time{}, false
	}
	t := parsed.Resolve(isEnd)
	if !Plausible(t, n.refYear) {
		return time.Time{}, false
	}
	return t, true
}
