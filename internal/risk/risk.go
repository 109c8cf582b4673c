// Package risk assesses category risks for an enriched profile.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/quant"
	"athena-backend/internal/scoring"
	"athena-backend/internal/shared/telemetry"
)

const (
	maxDueDiligenceQuestions = 10
	mitigationThreshold      = 0.6
	executionRisk            = 0.4
	competitiveRisk          = 0.3
	defaultTechnicalRisk     = 0.5
)

// Analysis is the risk_analysis stage output.
type Analysis struct {
	RiskAssessment            map[scoring.Category]scoring.CategoryRisk `json:"risk_assessment"`
	OverallRiskScore          float64                                   `json:"overall_risk_score"`
	RedFlags                  []scoring.RedFlag                         `json:"red_flags"`
	DueDiligenceQuestions     []string                                  `json:"due_diligence_questions"`
	RiskMitigationSuggestions []string                                  `json:"risk_mitigation_suggestions"`
}

// Service assesses the six risk categories.
type Service struct {
	client     llm.Client
	aggregator *scoring.RiskAggregator
}

// NewService builds a risk service over a validated aggregator.
func NewService(client llm.Client, aggregator *scoring.RiskAggregator) *Service {
	return &Service{client: client, aggregator: aggregator}
}

// AssessRisks scores each category and folds them into an overall risk.
func (s *Service) AssessRisks(ctx context.Context, p profile.Enriched, q quant.Analysis) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	assessment := map[scoring.Category]scoring.CategoryRisk{
		scoring.CategoryTeam:        s.teamRisk(ctx, p),
		scoring.CategoryMarket:      s.marketRisk(ctx, p),
		scoring.CategoryFinancial:   FinancialRisk(p.Profile),
		scoring.CategoryExecution:   {RiskScore: executionRisk, RiskFactors: []string{"Execution analysis not implemented"}},
		scoring.CategoryCompetitive: {RiskScore: competitiveRisk, RiskFactors: []string{"Competitive analysis needs enhancement"}},
		scoring.CategoryTechnical: {
			RiskScore:   p.TechnologyAnalysis.Float("technical_risk_score", defaultTechnicalRisk),
			RiskFactors: []string{"Technical risk analysis needs enhancement"},
		},
	}

	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	return Analysis{
		RiskAssessment:            assessment,
		OverallRiskScore:          s.aggregator.Overall(assessment),
		RedFlags:                  s.aggregator.RedFlags(assessment),
		DueDiligenceQuestions:     DueDiligenceQuestions(assessment),
		RiskMitigationSuggestions: MitigationSuggestions(assessment),
	}, nil
}

func (s *Service) teamRisk(ctx context.Context, p profile.Enriched) scoring.CategoryRisk {
	founders, _ := json.Marshal(p.Founders)
	verification, _ := json.Marshal(p.FounderVerification)
	return s.ask(ctx, "team", fmt.Sprintf(teamRiskPrompt, founders, verification), scoring.CategoryRisk{
		RiskScore:       0.5,
		RiskFactors:     []string{"Unable to analyze team risks"},
		Strengths:       []string{},
		Recommendations: []string{},
	})
}

func (s *Service) marketRisk(ctx context.Context, p profile.Enriched) scoring.CategoryRisk {
	market, _ := json.Marshal(p.MarketData)
	competition, _ := json.Marshal(p.CompetitorAnalysis)
	return s.ask(ctx, "market", fmt.Sprintf(marketRiskPrompt, market, competition, p.ProblemStatement, p.SolutionDescription), scoring.CategoryRisk{
		RiskScore:   0.5,
		RiskFactors: []string{},
		Strengths:   []string{},
	})
}

func (s *Service) ask(ctx context.Context, category, prompt string, def scoring.CategoryRisk) scoring.CategoryRisk {
	res := llm.Ask(ctx, s.client, prompt, def)
	if res.Defaulted {
		telemetry.Warn("risk.category_defaulted", map[string]any{
			"category":   category,
			"request_id": llm.RequestIDFromContext(ctx),
			"error":      res.Err,
		})
		return def
	}
	out := res.Value
	out.RiskScore = clamp01(out.RiskScore)
	if out.RiskFactors == nil {
		out.RiskFactors = []string{}
	}
	return out
}

// FinancialRisk applies the runway, unit economics, churn and revenue heuristics.
func FinancialRisk(p profile.Profile) scoring.CategoryRisk {
	var (
		factors []string
		score   float64
	)
	fin, tr := p.Financials, p.TractionMetrics

	if runway := profile.Value(fin.RunwayMonths, 0); runway > 0 && runway < 12 {
		factors = append(factors, "Short runway - less than 12 months")
		score += 0.3
	}
	var ltvCAC any
	if cac, ltv := profile.Value(tr.CAC, 0), profile.Value(tr.LTV, 0); cac > 0 && ltv > 0 {
		ratio := ltv / cac
		ltvCAC = ratio
		if ratio < 3 {
			factors = append(factors, "Poor unit economics - LTV/CAC ratio below 3")
			score += 0.2
		}
	}
	if churn := profile.Value(tr.ChurnRate, 0); churn > 15 {
		factors = append(factors, "High churn rate")
		score += 0.2
	}
	if profile.Value(fin.Revenue, 0) == 0 {
		factors = append(factors, "No revenue generated yet")
		score += 0.1
	}
	if factors == nil {
		factors = []string{}
	}

	return scoring.CategoryRisk{
		RiskScore:   clamp01(score),
		RiskFactors: factors,
		KeyMetrics: map[string]any{
			"runway_months": fin.RunwayMonths,
			"ltv_cac_ratio": ltvCAC,
			"monthly_burn":  fin.BurnRate,
			"churn_rate":    tr.ChurnRate,
		},
		Recommendations: financialRecommendations(factors),
	}
}

func financialRecommendations(factors []string) []string {
	out := []string{}
	for _, f := range factors {
		lower := strings.ToLower(f)
		switch {
		case strings.Contains(lower, "runway"):
			out = append(out, "Consider raising bridge funding or reducing burn rate")
		case strings.Contains(lower, "unit economics"):
			out = append(out, "Focus on improving customer acquisition efficiency")
		case strings.Contains(lower, "churn"):
			out = append(out, "Implement customer success initiatives to reduce churn")
		case strings.Contains(lower, "revenue"):
			out = append(out, "Prioritize revenue generation and customer validation")
		}
	}
	return out
}

// DueDiligenceQuestions turns risk factors into founder questions, in
// category order, keeping the first ten.
func DueDiligenceQuestions(assessment map[scoring.Category]scoring.CategoryRisk) []string {
	out := []string{}
	for _, c := range scoring.Categories {
		for _, factor := range assessment[c].RiskFactors {
			if len(out) == maxDueDiligenceQuestions {
				return out
			}
			out = append(out, fmt.Sprintf("How do you plan to address: %s?", factor))
		}
	}
	return out
}

// MitigationSuggestions collects recommendations of categories scoring above 0.6.
func MitigationSuggestions(assessment map[scoring.Category]scoring.CategoryRisk) []string {
	out := []string{}
	for _, c := range scoring.Categories {
		a, ok := assessment[c]
		if !ok || a.RiskScore <= mitigationThreshold {
			continue
		}
		out = append(out, a.Recommendations...)
	}
	return out
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
