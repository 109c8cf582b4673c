// Package profile holds the structured subject profile extracted from a
// submission and the enrichment document layered on top of it.
package profile

import (
	"encoding/json"
	"time"
)

// Founder is one founder as described by the submitted material.
type Founder struct {
	Name              string   `json:"name"`
	Background        string   `json:"background"`
	ExperienceYears   float64  `json:"experience_years"`
	PreviousCompanies []string `json:"previous_companies"`
	Education         string   `json:"education"`
	Role              string   `json:"role"`
}

// Market is the market sizing section. Unknown figures are nil.
type Market struct {
	TAM              *float64 `json:"tam"`
	SAM              *float64 `json:"sam"`
	SOM              *float64 `json:"som"`
	TargetMarket     string   `json:"target_market"`
	MarketGrowthRate *float64 `json:"market_growth_rate"`
	MarketTrends     []string `json:"market_trends"`
}

// Traction is the traction and unit economics section.
type Traction struct {
	MRR           *float64 `json:"mrr"`
	ARR           *float64 `json:"arr"`
	CAC           *float64 `json:"cac"`
	LTV           *float64 `json:"ltv"`
	ChurnRate     *float64 `json:"churn_rate"`
	UserCount     *float64 `json:"user_count"`
	CustomerCount *float64 `json:"customer_count"`
	GrowthRate    *float64 `json:"growth_rate"`
	KeyMetrics    []string `json:"key_metrics"`
}

// FundingRound is a previously raised round.
type FundingRound struct {
	Round     string   `json:"round"`
	Amount    float64  `json:"amount"`
	Date      string   `json:"date"`
	Investors []string `json:"investors"`
}

// Financials is the financial section.
type Financials struct {
	Revenue          *float64       `json:"revenue"`
	BurnRate         *float64       `json:"burn_rate"`
	FundingRequested *float64       `json:"funding_requested"`
	Valuation        *float64       `json:"valuation"`
	RunwayMonths     *float64       `json:"runway_months"`
	PreviousFunding  []FundingRound `json:"previous_funding"`
}

// Profile is the output of the extraction stage.
type Profile struct {
	CompanyName          string     `json:"company_name"`
	ProblemStatement     string     `json:"problem_statement"`
	SolutionDescription  string     `json:"solution_description"`
	BusinessModel        string     `json:"business_model,omitempty"`
	Founders             []Founder  `json:"founders"`
	MarketData           Market     `json:"market_data"`
	TractionMetrics      Traction   `json:"traction_metrics"`
	Financials           Financials `json:"financials"`
	CompetitiveLandscape []string   `json:"competitive_landscape"`
	TechnologyStack      []string   `json:"technology_stack"`
	ExtractionConfidence float64    `json:"extraction_confidence"`
}

// Verification is the founder claim check result.
type Verification struct {
	Score          float64  `json:"verification_score"`
	VerifiedClaims []string `json:"verified_claims"`
	Discrepancies  []string `json:"discrepancies"`
	Confidence     string   `json:"confidence,omitempty"`
}

// Document is an open JSON object used for lookup results whose shape is
// owned by the lookup. A failed lookup yields an empty, non-nil Document.
type Document map[string]any

// Float returns the numeric value stored under key, or def.
func (d Document) Float(key string, def float64) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// String returns the string stored under key, or def.
func (d Document) String(key, def string) string {
	if s, ok := d[key].(string); ok && s != "" {
		return s
	}
	return def
}

// Enriched is the profile plus the five enrichment lookups. The embedded
// profile is carried through unchanged.
type Enriched struct {
	Profile
	FounderVerification map[string]Verification `json:"founder_verification"`
	CompetitorAnalysis  Document                `json:"competitor_analysis"`
	MarketValidation    Document                `json:"market_validation"`
	TechnologyAnalysis  Document                `json:"technology_analysis"`
	NewsSentiment       Document                `json:"news_sentiment"`
	EnrichmentTimestamp time.Time               `json:"enrichment_timestamp"`
}

// Float64 returns a pointer to v. Handy for tests and defaults.
func Float64(v float64) *float64 {
	return &v
}

// Value dereferences p, returning def when p is nil.
func Value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
