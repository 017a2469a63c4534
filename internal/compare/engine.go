// Package compare runs a full reconciliation of two employment-period lists:
// normalization, scoring, greedy matching, difference analysis and timeline
// analysis, aggregated into a model.ComparisonResult.
package compare

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/diff"
	"github.com/sells-group/reconcile-cli/internal/match"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
	"github.com/sells-group/reconcile-cli/internal/similarity"
	"github.com/sells-group/reconcile-cli/internal/timeline"
)

// Options configures an Engine.
type Options struct {
	// AsOf measures ongoing periods up to this day. Zero leaves ongoing
	// periods without an end.
	AsOf time.Time
	// ReferenceYear anchors date plausibility independently of AsOf. Zero
	// uses the current year.
	ReferenceYear int
	// Cache is shared with other engines when set; otherwise the engine owns
	// a private one.
	Cache *normalize.Cache
}

// Engine reconciles period lists. It is safe for concurrent use; the
// normalization and company-score caches live as long as the Engine.
type Engine struct {
	normalizer *normalize.Normalizer
	scorer     *similarity.Scorer
	matcher    *match.Matcher
	analyzer   *diff.Analyzer
}

// New creates an Engine after validating cfg.
func New(cfg config.CompareConfig, opts Options) (*Engine, error) {
	if err := config.ValidateCompare(cfg); err != nil {
		return nil, eris.Wrap(err, "compare: new engine")
	}
	scorer := similarity.NewScorer(cfg)
	return &Engine{
		normalizer: normalize.New(opts.Cache, normalize.Options{
			AsOf:          opts.AsOf,
			ReferenceYear: opts.ReferenceYear,
		}),
		scorer:   scorer,
		matcher:  match.New(scorer, cfg),
		analyzer: diff.New(),
	}, nil
}

// Compare reconciles listA (the spreadsheet) against listB (the benefits
// document). Malformed periods never cause an error; they surface as
// quality flags and unmatched entries. An error is returned only when a
// period is tagged with the wrong source.
func (e *Engine) Compare(listA, listB []model.RawPeriod) (*model.ComparisonResult, error) {
	if err := checkSource(listA, model.SourceA); err != nil {
		return nil, err
	}
	if err := checkSource(listB, model.SourceB); err != nil {
		return nil, err
	}

	normA := e.normalizer.NormalizeAll(listA)
	normB := e.normalizer.NormalizeAll(listB)

	assignment := e.matcher.Match(normA, normB)

	result := &model.ComparisonResult{
		Matches:    make([]model.Match, 0, len(assignment.Pairs)),
		UnmatchedA: make([]model.DisplayPeriod, 0, len(assignment.UnmatchedA)),
		UnmatchedB: make([]model.DisplayPeriod, 0, len(assignment.UnmatchedB)),
	}

	for _, pair := range assignment.Pairs {
		a, b := normA[pair.AIndex], normB[pair.BIndex]
		an := e.analyzer.Analyze(a, b, pair.Scores)
		result.Matches = append(result.Matches, model.Match{
			PeriodAIndex:   a.OriginalIndex,
			PeriodBIndex:   b.OriginalIndex,
			PeriodA:        display(a, model.SourceA, ""),
			PeriodB:        display(b, model.SourceB, ""),
			Scores:         pair.Scores,
			CompositeScore: pair.Scores.Composite,
			Tier:           an.Tier,
			Partial:        pair.Partial,
			Confidence:     diff.Confidence(pair.Scores.Composite, len(an.Conflicts)),
			Differences:    nonNil(an.Differences),
			Conflicts:      nonNil(an.Conflicts),
			IsExactMatch:   an.IsExact,
		})
	}
	for _, u := range assignment.UnmatchedA {
		result.UnmatchedA = append(result.UnmatchedA, display(u.Period, model.SourceA, u.Reason))
	}
	for _, u := range assignment.UnmatchedB {
		result.UnmatchedB = append(result.UnmatchedB, display(u.Period, model.SourceB, u.Reason))
	}

	result.OverlapsA = nonNil(timeline.Overlaps(normA, model.SourceA))
	result.OverlapsB = nonNil(timeline.Overlaps(normB, model.SourceB))
	result.GapsA = nonNil(timeline.Gaps(normA, model.SourceA))
	result.GapsB = nonNil(timeline.Gaps(normB, model.SourceB))

	result.Summary = summarize(normA, normB, result)

	zap.L().Debug("compare: comparison complete",
		zap.Int("total_a", result.Summary.TotalA),
		zap.Int("total_b", result.Summary.TotalB),
		zap.Int("matched", result.Summary.Matched),
		zap.Int("exact", result.Summary.ExactMatches),
		zap.Int("conflicts", result.Summary.Conflicts),
		zap.Float64("quality_score", result.Summary.QualityScore),
	)

	return result, nil
}

func checkSource(list []model.RawPeriod, want model.Source) error {
	for i, p := range list {
		if p.Source == "" || p.Source == want {
			continue
		}
		return eris.Errorf("compare: period %d of source %s is tagged %q", i, want, p.Source)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
