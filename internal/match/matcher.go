// Package match assigns periods from source A to periods from source B with
// a greedy, order-dependent, one-to-one strategy.
//
// List A is walked in original order; each item takes the highest-scoring B
// item that is still free. Reservations are never revisited, so the result
// is not a global optimum, but it is deterministic and easy to explain.
package match

import (
	"fmt"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/similarity"
)

// Pair is an accepted pairing. AIndex and BIndex are positions in the lists
// passed to Match, which are also the periods' original indices.
type Pair struct {
	AIndex  int
	BIndex  int
	Scores  model.SimilarityResult
	Partial bool
}

// Unmatched is a period left without a counterpart and why.
type Unmatched struct {
	Period model.NormalizedPeriod
	Reason string
}

// Assignment is the outcome of a matching pass.
type Assignment struct {
	Pairs      []Pair
	UnmatchedA []Unmatched
	UnmatchedB []Unmatched
}

// Matcher runs greedy best-match assignment.
type Matcher struct {
	scorer     *similarity.Scorer
	minScore   float64
	matchScore float64
}

// New creates a Matcher. Pairings scoring at least cfg.MinScore are accepted;
// those below cfg.MatchScore are marked partial.
func New(scorer *similarity.Scorer, cfg config.CompareConfig) *Matcher {
	return &Matcher{
		scorer:     scorer,
		minScore:   cfg.MinScore,
		matchScore: cfg.MatchScore,
	}
}

// Match pairs listA against listB. Every A index ends up in exactly one of
// Pairs or UnmatchedA, and every B index is used by at most one pair.
func (m *Matcher) Match(listA, listB []model.NormalizedPeriod) Assignment {
	var out Assignment
	reserved := make([]bool, len(listB))
	eligibleB := 0
	for _, b := range listB {
		if eligible(b) {
			eligibleB++
		}
	}

	for i, a := range listA {
		if reason := ineligibleReason(a); reason != "" {
			out.UnmatchedA = append(out.UnmatchedA, Unmatched{Period: a, Reason: reason})
			continue
		}
		if eligibleB == 0 {
			out.UnmatchedA = append(out.UnmatchedA, Unmatched{Period: a, Reason: "no eligible periods in the other source"})
			continue
		}

		bestIdx := -1
		var best model.SimilarityResult
		takenIdx := -1
		var takenBest float64

		for j, b := range listB {
			if !eligible(b) {
				continue
			}
			r := m.scorer.Score(a, b)
			if reserved[j] {
				if r.Composite > takenBest {
					takenIdx, takenBest = j, r.Composite
				}
				continue
			}
			// Strictly greater: the first B index wins ties.
			if bestIdx == -1 || r.Composite > best.Composite {
				bestIdx, best = j, r
			}
		}

		if bestIdx >= 0 && best.Composite >= m.minScore {
			reserved[bestIdx] = true
			out.Pairs = append(out.Pairs, Pair{
				AIndex:  i,
				BIndex:  bestIdx,
				Scores:  best,
				Partial: best.Composite < m.matchScore,
			})
			continue
		}

		out.UnmatchedA = append(out.UnmatchedA, Unmatched{
			Period: a,
			Reason: m.rejectReason(bestIdx, best.Composite, takenIdx, takenBest),
		})
	}

	for j, b := range listB {
		if reserved[j] {
			continue
		}
		reason := ineligibleReason(b)
		if reason == "" {
			reason = fmt.Sprintf("no period in the other source scored at least %.2f", m.minScore)
		}
		out.UnmatchedB = append(out.UnmatchedB, Unmatched{Period: b, Reason: reason})
	}

	return out
}

func (m *Matcher) rejectReason(bestIdx int, best float64, takenIdx int, takenBest float64) string {
	if takenIdx >= 0 && takenBest >= m.minScore && takenBest > best {
		return fmt.Sprintf("best candidate (index %d, score %.2f) was already matched to an earlier period", takenIdx, takenBest)
	}
	if bestIdx < 0 {
		return "every candidate in the other source was already matched"
	}
	return fmt.Sprintf("best candidate (index %d) scored %.2f, below threshold %.2f", bestIdx, best, m.minScore)
}

func eligible(p model.NormalizedPeriod) bool {
	return ineligibleReason(p) == ""
}

// ineligibleReason explains why a period can never be matched, or returns ""
// if it can.
func ineligibleReason(p model.NormalizedPeriod) string {
	switch {
	case !p.HasCompany():
		return "missing company name"
	case p.Start == nil:
		return "start date missing or unparseable"
	default:
		return ""
	}
}
