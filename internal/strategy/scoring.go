package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

const (
	defaultDeltaMin        = 0.15
	defaultDeltaMax        = 0.30
	defaultOpenInterestMin = 100
	defaultYieldMin        = 0.01
	defaultYieldMax        = 1.00
	defaultScoreMin        = 0.05

	// annualization numerator and dte smoothing term of the score
	tradingDaysPerYear = 250.0
	dteSmoothing       = 5.0
)

// Params are the hard filters and score floor applied to option chains.
type Params struct {
	DeltaMin        float64
	DeltaMax        float64
	OpenInterestMin int64
	YieldMin        float64
	YieldMax        float64
	ScoreMin        float64
}

// DefaultParams returns the filter values used when nothing is configured.
func DefaultParams() Params {
	return Params{
		DeltaMin:        defaultDeltaMin,
		DeltaMax:        defaultDeltaMax,
		OpenInterestMin: defaultOpenInterestMin,
		YieldMin:        defaultYieldMin,
		YieldMax:        defaultYieldMax,
		ScoreMin:        defaultScoreMin,
	}
}

// Scorer filters and ranks option contracts.
type Scorer struct {
	params Params
}

// NewScorer creates a Scorer with the given params.
func NewScorer(p Params) *Scorer {
	return &Scorer{params: p}
}

// Params returns the scorer's configuration.
func (s *Scorer) Params() Params { return s.params }

// Score is (1 - |delta|) * (250 / (dte + 5)) * (bid / strike).
func Score(c domain.Contract, asOf time.Time) float64 {
	dte := float64(c.DaysToExpiry(asOf))
	return (1 - math.Abs(c.Delta)) * (tradingDaysPerYear / (dte + dteSmoothing)) * c.Yield()
}

// Passes reports whether a contract survives the hard filters. minStrike only
// applies to calls; pass decimal.Zero for puts.
func (s *Scorer) Passes(c domain.Contract, minStrike decimal.Decimal) bool {
	d := math.Abs(c.Delta)
	if d < s.params.DeltaMin || d > s.params.DeltaMax {
		return false
	}
	if c.OpenInterest < s.params.OpenInterestMin {
		return false
	}
	y := c.Yield()
	if y < s.params.YieldMin || y > s.params.YieldMax {
		return false
	}
	if c.Type == domain.OptionTypeCall && c.Strike.LessThan(minStrike) {
		return false
	}
	return true
}

// Rank filters contracts, scores the survivors, keeps the best contract per
// underlying and returns them sorted by score descending. Ties are ordered by
// symbol then contract ID. limit <= 0 returns every qualifying candidate.
func (s *Scorer) Rank(contracts []domain.Contract, minStrike map[string]decimal.Decimal, asOf time.Time, limit int) []domain.Candidate {
	best := make(map[string]domain.Candidate)
	for _, c := range contracts {
		floor := decimal.Zero
		if minStrike != nil {
			floor = minStrike[c.Underlying]
		}
		if !s.Passes(c, floor) {
			continue
		}
		score := Score(c, asOf)
		if score < s.params.ScoreMin {
			continue
		}
		cand := domain.Candidate{Symbol: c.Underlying, Contract: c, Score: score}
		if cur, ok := best[c.Underlying]; !ok || before(cand, cur) {
			best[c.Underlying] = cand
		}
	}

	out := make([]domain.Candidate, 0, len(best))
	for _, cand := range best {
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// before is the total order used for ranking.
func before(a, b domain.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Contract.ID < b.Contract.ID
}
