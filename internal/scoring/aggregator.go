package scoring

import (
	"math"
	"strings"

	"athena-backend/internal/profile"
)

const (
	baseComponentScore = 0.5
	noFoundersScore    = 0.3
	moatPlaceholder    = 0.5
	defaultValidation  = 0.5
)

// Breakdown is the result of Score. It is recomputed per run and never mutated.
type Breakdown struct {
	Team           float64 `json:"team"`
	Market         float64 `json:"market"`
	Traction       float64 `json:"traction"`
	Moat           float64 `json:"moat"`
	RiskAdjustment float64 `json:"risk_adjustment"`
	WeightedScore  float64 `json:"weighted_score"`
	FinalScore     float64 `json:"overall_score"`
}

// Aggregator composes component scores into a risk-adjusted investment score.
type Aggregator struct {
	weights ThesisWeights
}

// NewAggregator validates w once and returns an Aggregator bound to it.
func NewAggregator(w ThesisWeights) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w}, nil
}

// Weights returns the table the aggregator was built with.
func (a *Aggregator) Weights() ThesisWeights {
	return a.weights
}

// Score computes the breakdown for p given the quantitative overall score
// and the overall risk score. It performs no I/O.
func (a *Aggregator) Score(p profile.Enriched, quantScore, riskScore float64) Breakdown {
	return a.Combine(TeamScore(p), MarketScore(p), quantScore, moatPlaceholder, riskScore)
}

// Combine applies the weights and the risk adjustment to already computed components.
func (a *Aggregator) Combine(team, market, traction, moat, riskScore float64) Breakdown {
	weighted := team*a.weights.Team +
		market*a.weights.Market +
		traction*a.weights.Traction +
		moat*a.weights.Moat
	adjustment := 1 - clamp01(riskScore)
	return Breakdown{
		Team:           team,
		Market:         market,
		Traction:       traction,
		Moat:           moat,
		RiskAdjustment: adjustment,
		WeightedScore:  weighted,
		FinalScore:     weighted * adjustment,
	}
}

// TeamScore scores the founding team. Verification records are applied in
// founder order so the sum is independent of map iteration.
func TeamScore(p profile.Enriched) float64 {
	if len(p.Founders) == 0 {
		return noFoundersScore
	}
	score := baseComponentScore
	for _, f := range p.Founders {
		if f.ExperienceYears > 5 {
			score += 0.1
		}
		if strings.Contains(strings.ToLower(f.Background), "ex-") {
			score += 0.1
		}
	}
	seen := make(map[string]struct{}, len(p.Founders))
	for _, f := range p.Founders {
		// Verification is keyed by the trimmed name.
		name := strings.TrimSpace(f.Name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if v, ok := p.FounderVerification[name]; ok {
			score += (v.Score - 0.5) * 0.2
		}
	}
	return clamp01(score)
}

// MarketScore scores the market opportunity from TAM and market validation.
func MarketScore(p profile.Enriched) float64 {
	score := baseComponentScore
	tam := profile.Value(p.MarketData.TAM, 0)
	switch {
	case tam > 1e9:
		score += 0.2
	case tam > 1e8:
		score += 0.1
	}
	validation := p.MarketValidation.Float("addressable_market_score", defaultValidation)
	score += (validation - 0.5) * 0.3
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
