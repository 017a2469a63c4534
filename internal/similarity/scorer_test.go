package similarity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

func period(t *testing.T, company, start, end string) model.NormalizedPeriod {
	t.Helper()
	n := normalize.New(nil, normalize.Options{ReferenceYear: 2024})
	return n.Normalize(model.RawPeriod{Company: company, StartDate: start, EndDate: end}, 0)
}

func newTestScorer() *Scorer {
	return NewScorer(config.DefaultCompareConfig())
}

func TestCompanyScore_ExactCanonical(t *testing.T) {
	s := newTestScorer()
	a := period(t, "Acme S/A", "2020-01-01", "2020-12-31")
	b := period(t, "ACME S.A.", "2020-01-01", "2020-12-31")
	assert.InDelta(t, 1.0, s.CompanyScore(a, b), 1e-9)
}

func TestCompanyScore_Missing(t *testing.T) {
	s := newTestScorer()
	a := period(t, "", "2020-01-01", "2020-12-31")
	b := period(t, "Acme", "2020-01-01", "2020-12-31")
	assert.InDelta(t, 0.0, s.CompanyScore(a, b), 1e-9)
	assert.InDelta(t, 0.0, s.CompanyScore(b, a), 1e-9)
}

func TestCompanyScore_SuffixDiffers(t *testing.T) {
	s := newTestScorer()
	a := period(t, "ACME LTDA", "2020-01-01", "2020-12-31")
	b := period(t, "ACME SA", "2020-01-01", "2020-07-31")

	got := s.CompanyScore(a, b)
	assert.InDelta(t, 0.7437, got, 0.001)
	assert.InDelta(t, got, s.CompanyScore(b, a), 1e-12)
	assert.Equal(t, 1, s.CacheLen())
}

func TestCompanyScore_Acronym(t *testing.T) {
	s := newTestScorer()
	a := period(t, "CEF", "2020-01-01", "2020-12-31")
	b := period(t, "Caixa Econômica Federal", "2020-01-01", "2020-12-31")
	unrelated := period(t, "Padaria Bom Pão", "2020-01-01", "2020-12-31")
	assert.Greater(t, s.CompanyScore(a, b), s.CompanyScore(a, unrelated))
}

func TestCompanyScore_Unrelated(t *testing.T) {
	s := newTestScorer()
	a := period(t, "Acme Comercio Ltda", "2020-01-01", "2020-12-31")
	b := period(t, "Globex Industria SA", "2020-01-01", "2020-12-31")
	assert.Less(t, s.CompanyScore(a, b), 0.5)
}

func TestTemporalScore(t *testing.T) {
	a := period(t, "A", "2020-01-01", "2020-12-31")
	b := period(t, "B", "2020-01-01", "2020-07-31")
	assert.InDelta(t, 213.0/366.0, TemporalScore(a, b), 1e-9)
	assert.InDelta(t, TemporalScore(a, b), TemporalScore(b, a), 1e-12)

	same := period(t, "C", "2020-01-01", "2020-12-31")
	assert.InDelta(t, 1.0, TemporalScore(a, same), 1e-9)
}

func TestTemporalScore_DisjointOrMissing(t *testing.T) {
	a := period(t, "A", "2020-01-01", "2020-06-30")
	b := period(t, "B", "2020-07-01", "2020-12-31")
	assert.InDelta(t, 0.0, TemporalScore(a, b), 1e-9)

	undated := period(t, "C", "", "")
	assert.InDelta(t, 0.0, TemporalScore(a, undated), 1e-9)

	ongoing := period(t, "D", "2020-01-01", "")
	assert.InDelta(t, 0.0, TemporalScore(a, ongoing), 1e-9)
}

func TestDurationScore(t *testing.T) {
	a := period(t, "A", "2020-01-01", "2020-12-31")
	b := period(t, "B", "2020-01-01", "2020-07-31")
	assert.InDelta(t, 213.0/366.0, DurationScore(a, b), 1e-9)

	undated := period(t, "C", "x", "y")
	assert.InDelta(t, 0.0, DurationScore(a, undated), 1e-9)
}

func TestWeightsFor(t *testing.T) {
	s := newTestScorer()
	year := period(t, "A", "2021-01-01", "2021-12-31")
	month := period(t, "B", "2021-01-01", "2021-01-31")
	half := period(t, "C", "2021-01-01", "2021-06-30")
	long := period(t, "D", "2020-01-01", "2021-12-31")
	undated := period(t, "E", "", "")

	w := s.WeightsFor(year, half)
	assert.InDelta(t, 0.40, w.Company, 1e-9)
	assert.InDelta(t, 0.35, w.Temporal, 1e-9)

	w = s.WeightsFor(year, month)
	assert.InDelta(t, 0.50, w.Company, 1e-9)
	assert.InDelta(t, 0.25, w.Temporal, 1e-9)
	assert.InDelta(t, 0.25, w.Duration, 1e-9)

	w = s.WeightsFor(long, half)
	assert.InDelta(t, 0.30, w.Company, 1e-9)
	assert.InDelta(t, 0.45, w.Temporal, 1e-9)

	// Short periods win over long ones.
	w = s.WeightsFor(long, month)
	assert.InDelta(t, 0.50, w.Company, 1e-9)

	w = s.WeightsFor(undated, undated)
	assert.Equal(t, config.DefaultCompareConfig().Weights, w)

	for _, p := range []model.NormalizedPeriod{year, month, half, long} {
		assert.InDelta(t, 1.0, s.WeightsFor(p, undated).Sum(), 1e-9)
	}
}

func TestScore_Identical(t *testing.T) {
	s := newTestScorer()
	a := period(t, "ACME LTDA", "2020-01-01", "2020-12-31")
	b := period(t, "ACME LTDA", "2020-01-01", "2020-12-31")

	r := s.Score(a, b)
	assert.InDelta(t, 1.0, r.Company, 1e-9)
	assert.InDelta(t, 1.0, r.Temporal, 1e-9)
	assert.InDelta(t, 1.0, r.Duration, 1e-9)
	assert.InDelta(t, 1.0, r.Composite, 1e-9)
}

func TestScore_PartialOverlap(t *testing.T) {
	s := newTestScorer()
	a := period(t, "ACME LTDA", "2020-01-01", "2020-12-31")
	b := period(t, "ACME SA", "2020-01-01", "2020-07-31")

	r := s.Score(a, b)
	// 366 days > 365 shifts weight from company to temporal: 0.30/0.45/0.25.
	want := 0.30*r.Company + 0.45*r.Temporal + 0.25*r.Duration
	assert.InDelta(t, want, r.Composite, 1e-9)
	assert.InDelta(t, 0.6305, r.Composite, 0.001)
}

func TestScore_Bounds(t *testing.T) {
	s := newTestScorer()
	periods := []model.NormalizedPeriod{
		period(t, "ACME LTDA", "2020-01-01", "2020-12-31"),
		period(t, "ACME SA", "2020-01-01", "2020-07-31"),
		period(t, "", "2020-01-01", "2020-12-31"),
		period(t, "Globex", "", ""),
		period(t, "CEF", "2019-12-31", "2019-12-31"),
		period(t, "Caixa Economica Federal", "2000-01-01", "2023-12-31"),
		period(t, "Globex", "2020-12-31", "2020-01-01"),
	}
	for _, a := range periods {
		for _, b := range periods {
			r := s.Score(a, b)
			for _, v := range []float64{r.Company, r.Temporal, r.Duration, r.Composite} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestScore_ConcurrentCache(t *testing.T) {
	s := newTestScorer()
	a := period(t, "ACME LTDA", "2020-01-01", "2020-12-31")
	b := period(t, "ACME SA", "2020-01-01", "2020-07-31")
	want := s.Score(a, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, s.Score(a, b))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, s.CacheLen())
}

func TestScore_Deterministic(t *testing.T) {
	a := period(t, "Construtora Alfa Ltda", "2015-03-01", "2018-02-28")
	b := period(t, "Construtora Alpha", "2015-03-15", "2018-01-31")

	first := NewScorer(config.DefaultCompareConfig()).Score(a, b)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, NewScorer(config.DefaultCompareConfig()).Score(a, b))
	}
}
