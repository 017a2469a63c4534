// Package similarity scores how likely two normalized employment periods
// describe the same employment spell.
package similarity

import (
	"sync"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
)

// Scorer computes company, temporal, duration and composite scores. Company
// scores are memoized per unordered pair of canonical names; a Scorer is safe
// for concurrent use.
type Scorer struct {
	cfg config.CompareConfig

	mu        sync.RWMutex
	companies map[[2]string]float64
}

// NewScorer creates a Scorer with the given tuning.
func NewScorer(cfg config.CompareConfig) *Scorer {
	return &Scorer{
		cfg:       cfg,
		companies: make(map[[2]string]float64),
	}
}

// Score computes all sub-scores and the composite for a pair of periods.
func (s *Scorer) Score(a, b model.NormalizedPeriod) model.SimilarityResult {
	r := model.SimilarityResult{
		Company:  s.CompanyScore(a, b),
		Temporal: TemporalScore(a, b),
		Duration: DurationScore(a, b),
	}
	w := s.WeightsFor(a, b)
	r.Composite = clamp01(w.Company*r.Company + w.Temporal*r.Temporal + w.Duration*r.Duration)
	return r
}

// CompanyScore compares employer names. Exact canonical equality scores 1;
// a missing name on either side scores 0.
func (s *Scorer) CompanyScore(a, b model.NormalizedPeriod) float64 {
	if !a.HasCompany() || !b.HasCompany() {
		return 0
	}
	if a.CanonicalCompany == b.CanonicalCompany {
		return 1
	}

	key := [2]string{a.CanonicalCompany, b.CanonicalCompany}
	if key[1] < key[0] {
		key[0], key[1] = key[1], key[0]
	}

	s.mu.RLock()
	v, ok := s.companies[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	// Metrics are symmetric, so scoring in key order is equivalent.
	coreA, coreB := coreOf(a), coreOf(b)
	if key[0] != a.CanonicalCompany {
		coreA, coreB = coreB, coreA
	}
	v = s.blend(key[0], key[1], coreA, coreB)

	s.mu.Lock()
	s.companies[key] = v
	s.mu.Unlock()
	return v
}

func (s *Scorer) blend(canonA, canonB, coreA, coreB string) float64 {
	w := s.cfg.CompanyWeights
	score := w.Edit*levenshteinSimilarity(canonA, canonB) +
		w.Jaro*jaroSimilarity(canonA, canonB) +
		w.Jaccard*tokenJaccard(canonA, canonB) +
		w.Keyword*keywordOverlap(coreA, coreB) +
		w.Abbreviation*abbreviationScore(coreA, coreB) +
		w.Phonetic*phoneticScore(coreA, coreB)
	return clamp01(score)
}

func coreOf(p model.NormalizedPeriod) string {
	if p.CoreCompany != "" {
		return p.CoreCompany
	}
	return p.CanonicalCompany
}

// TemporalScore is the overlap of the two intervals divided by the longer
// duration. It is 0 when the intervals are disjoint or a date is missing.
func TemporalScore(a, b model.NormalizedPeriod) float64 {
	if !a.Dated() || !b.Dated() {
		return 0
	}
	durA, okA := a.Duration()
	durB, okB := b.Duration()
	if !okA || !okB {
		return 0
	}
	_, _, overlap := model.Intersect(*a.Start, *a.End, *b.Start, *b.End)
	if overlap == 0 {
		return 0
	}
	return clamp01(float64(overlap) / float64(max(durA, durB)))
}

// DurationScore is min/max of the two durations, 0 when either is unknown.
func DurationScore(a, b model.NormalizedPeriod) float64 {
	durA, okA := a.Duration()
	durB, okB := b.Duration()
	if !okA || !okB || durA <= 0 || durB <= 0 {
		return 0
	}
	return float64(min(durA, durB)) / float64(max(durA, durB))
}

// WeightsFor returns the composite weights for a pair. When either period is
// shorter than ShortPeriodDays the name matters more (dates of short jobs are
// noisy); otherwise when either is longer than LongPeriodDays the dates
// matter more.
func (s *Scorer) WeightsFor(a, b model.NormalizedPeriod) config.ScoreWeights {
	w := s.cfg.Weights
	durA, okA := a.Duration()
	durB, okB := b.Duration()
	if !okA && !okB {
		return w
	}

	shortest, longest := durA, durA
	switch {
	case okA && okB:
		shortest, longest = min(durA, durB), max(durA, durB)
	case okB:
		shortest, longest = durB, durB
	}

	switch {
	case shortest < s.cfg.ShortPeriodDays:
		w.Company += s.cfg.WeightShift
		w.Temporal -= s.cfg.WeightShift
	case longest > s.cfg.LongPeriodDays:
		w.Temporal += s.cfg.WeightShift
		w.Company -= s.cfg.WeightShift
	}
	return w
}

// CacheLen returns the number of memoized company pairs.
func (s *Scorer) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.companies)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
