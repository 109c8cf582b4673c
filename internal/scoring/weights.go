package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weight table is negative or does not sum to 1.
var ErrInvalidWeights = errors.New("invalid weights")

const weightTolerance = 1e-9

// ThesisWeights weighs the four component scores.
type ThesisWeights struct {
	Team     float64
	Market   float64
	Traction float64
	Moat     float64
}

// DefaultThesisWeights returns team 0.40, market 0.30, traction 0.20, moat 0.10.
func DefaultThesisWeights() ThesisWeights {
	return ThesisWeights{Team: 0.40, Market: 0.30, Traction: 0.20, Moat: 0.10}
}

// Validate checks that every weight is non-negative and the table sums to 1.
func (w ThesisWeights) Validate() error {
	return validate("thesis", []float64{w.Team, w.Market, w.Traction, w.Moat})
}

// RiskWeights weighs the six risk categories.
type RiskWeights struct {
	Team        float64
	Market      float64
	Financial   float64
	Execution   float64
	Competitive float64
	Technical   float64
}

// DefaultRiskWeights returns team 0.25, market 0.20, financial 0.20,
// execution 0.15, competitive 0.10, technical 0.10.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{Team: 0.25, Market: 0.20, Financial: 0.20, Execution: 0.15, Competitive: 0.10, Technical: 0.10}
}

// Validate checks that every weight is non-negative and the table sums to 1.
func (w RiskWeights) Validate() error {
	return validate("risk", []float64{w.Team, w.Market, w.Financial, w.Execution, w.Competitive, w.Technical})
}

func (w RiskWeights) of(c Category) float64 {
	switch c {
	case CategoryTeam:
		return w.Team
	case CategoryMarket:
		return w.Market
	case CategoryFinancial:
		return w.Financial
	case CategoryExecution:
		return w.Execution
	case CategoryCompetitive:
		return w.Competitive
	case CategoryTechnical:
		return w.Technical
	default:
		return 0
	}
}

func validate(table string, weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, table, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: %s weights sum to %v", ErrInvalidWeights, table, sum)
	}
	return nil
}
