package scoring

import (
	"errors"
	"testing"
)

func TestOverallRiskWorkedExample(t *testing.T) {
	agg, err := NewRiskAggregator(DefaultRiskWeights())
	if err != nil {
		t.Fatalf("NewRiskAggregator: %v", err)
	}
	assessment := map[Category]CategoryRisk{
		CategoryTeam:        {RiskScore: 0.8, RiskFactors: []string{"Solo founder"}},
		CategoryMarket:      {RiskScore: 0.5},
		CategoryFinancial:   {RiskScore: 0.5},
		CategoryExecution:   {RiskScore: 0.5},
		CategoryCompetitive: {RiskScore: 0.5},
		CategoryTechnical:   {RiskScore: 0.5},
	}

	if got := agg.Overall(assessment); !approx(got, 0.575) {
		t.Fatalf("overall = %v, want 0.575", got)
	}

	flags := agg.RedFlags(assessment)
	if len(flags) != 1 || flags[0].Category != CategoryTeam {
		t.Fatalf("expected only team flagged, got %+v", flags)
	}
	if flags[0].Severity != "high" || len(flags[0].RiskFactors) != 1 {
		t.Fatalf("unexpected flag %+v", flags[0])
	}
}

func TestOverallRiskMissingCategoryIsNeutral(t *testing.T) {
	agg, _ := NewRiskAggregator(DefaultRiskWeights())
	if got := agg.Overall(nil); !approx(got, 0.5) {
		t.Fatalf("overall of empty assessment = %v, want 0.5", got)
	}
	partial := map[Category]CategoryRisk{CategoryFinancial: {RiskScore: 1}}
	// 1*0.20 + 0.5*0.80
	if got := agg.Overall(partial); !approx(got, 0.6) {
		t.Fatalf("overall = %v, want 0.6", got)
	}
}

func TestRedFlagThresholdIsExclusive(t *testing.T) {
	agg, _ := NewRiskAggregator(DefaultRiskWeights())
	flags := agg.RedFlags(map[Category]CategoryRisk{
		CategoryMarket:    {RiskScore: 0.70},
		CategoryTechnical: {RiskScore: 0.71},
	})
	if len(flags) != 1 || flags[0].Category != CategoryTechnical {
		t.Fatalf("expected only technical flagged, got %+v", flags)
	}
	if flags[0].RiskFactors == nil {
		t.Fatalf("risk factors should be an empty list, not nil")
	}
}

func TestNewRiskAggregatorRejectsBadWeights(t *testing.T) {
	w := DefaultRiskWeights()
	w.Technical = 0.2
	if _, err := NewRiskAggregator(w); !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}
