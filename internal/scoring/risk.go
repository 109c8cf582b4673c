package scoring

import "strings"

// Category is one of the six risk categories.
type Category string

const (
	CategoryTeam        Category = "team"
	CategoryMarket      Category = "market"
	CategoryFinancial   Category = "financial"
	CategoryExecution   Category = "execution"
	CategoryCompetitive Category = "competitive"
	CategoryTechnical   Category = "technical"
)

// Categories lists the risk categories in reporting order.
var Categories = []Category{
	CategoryTeam,
	CategoryMarket,
	CategoryFinancial,
	CategoryExecution,
	CategoryCompetitive,
	CategoryTechnical,
}

const (
	neutralRisk      = 0.5
	redFlagThreshold = 0.70
)

// CategoryRisk is one category's assessment.
type CategoryRisk struct {
	RiskScore       float64        `json:"risk_score"`
	RiskFactors     []string       `json:"risk_factors"`
	Strengths       []string       `json:"strengths,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	KeyMetrics      map[string]any `json:"key_metrics,omitempty"`
}

// RedFlag is a category whose risk exceeds the high-risk threshold.
type RedFlag struct {
	Category    Category `json:"category"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	RiskFactors []string `json:"risk_factors"`
}

// RiskAggregator folds category risks into an overall risk score.
type RiskAggregator struct {
	weights RiskWeights
}

// NewRiskAggregator validates w once and returns a RiskAggregator bound to it.
func NewRiskAggregator(w RiskWeights) (*RiskAggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &RiskAggregator{weights: w}, nil
}

// Overall returns Σ(categoryRisk × weight). A missing category counts as 0.5.
func (r *RiskAggregator) Overall(assessment map[Category]CategoryRisk) float64 {
	total := 0.0
	for _, c := range Categories {
		score := neutralRisk
		if a, ok := assessment[c]; ok {
			score = a.RiskScore
		}
		total += score * r.weights.of(c)
	}
	return total
}

// RedFlags returns the categories scoring above 0.70, in category order.
func (r *RiskAggregator) RedFlags(assessment map[Category]CategoryRisk) []RedFlag {
	flags := make([]RedFlag, 0)
	for _, c := range Categories {
		a, ok := assessment[c]
		if !ok || a.RiskScore <= redFlagThreshold {
			continue
		}
		factors := a.RiskFactors
		if factors == nil {
			factors = []string{}
		}
		flags = append(flags, RedFlag{
			Category:    c,
			Severity:    "high",
			Description: "High risk identified in " + strings.ReplaceAll(string(c), "_", " ") + " risk",
			RiskFactors: factors,
		})
	}
	return flags
}
