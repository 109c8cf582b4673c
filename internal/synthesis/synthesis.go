// Package synthesis turns the accumulated stage outputs into the final
// investment recommendation and memo.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/quant"
	"athena-backend/internal/risk"
	"athena-backend/internal/scoring"
	"athena-backend/internal/shared/telemetry"
)

const maxKeyQuestions = 5

// SWOT is the strengths, weaknesses, opportunities and threats summary.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Recommendation is the scored decision plus the questions to ask next.
type Recommendation struct {
	scoring.Recommendation
	KeyQuestions []string `json:"key_questions"`
}

// Metadata describes the quality of the inputs behind the analysis.
type Metadata struct {
	AnalysisDate     time.Time `json:"analysis_date"`
	ConfidenceLevel  string    `json:"confidence_level"`
	DataCompleteness float64   `json:"data_completeness"`
}

// Result is the synthesis stage output.
type Result struct {
	CompanyName      string            `json:"company_name"`
	InvestmentScore  scoring.Breakdown `json:"investment_score"`
	Recommendation   Recommendation    `json:"recommendation"`
	InvestmentMemo   string            `json:"investment_memo"`
	SWOTAnalysis     SWOT              `json:"swot_analysis"`
	ExecutiveSummary string            `json:"executive_summary"`
	AnalysisMetadata Metadata          `json:"analysis_metadata"`
}

// Service composes the final result.
type Service struct {
	client     llm.Client
	aggregator *scoring.Aggregator
	now        func() time.Time
}

// NewService builds a synthesis service over a validated score aggregator.
func NewService(client llm.Client, aggregator *scoring.Aggregator) *Service {
	return &Service{client: client, aggregator: aggregator, now: time.Now}
}

// Synthesize scores the opportunity and writes the memo.
func (s *Service) Synthesize(ctx context.Context, p profile.Enriched, q quant.Analysis, r risk.Analysis) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	score := s.aggregator.Score(p, q.OverallScore, r.OverallRiskScore)
	rec := Recommendation{
		Recommendation: scoring.Recommend(score.FinalScore, r.OverallRiskScore),
		KeyQuestions:   keyQuestions(r.DueDiligenceQuestions),
	}
	swot := s.swot(ctx, p, q, r)
	memo := s.memo(ctx, p, r, score, swot, rec)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return Result{
		CompanyName:      p.CompanyName,
		InvestmentScore:  score,
		Recommendation:   rec,
		InvestmentMemo:   memo,
		SWOTAnalysis:     swot,
		ExecutiveSummary: ExecutiveSummary(p.Profile, score, rec.Recommendation),
		AnalysisMetadata: Metadata{
			AnalysisDate:     s.now().UTC(),
			ConfidenceLevel:  ConfidenceLevel(p.ExtractionConfidence),
			DataCompleteness: DataCompleteness(p.Profile),
		},
	}, nil
}

func keyQuestions(questions []string) []string {
	if len(questions) > maxKeyQuestions {
		questions = questions[:maxKeyQuestions]
	}
	return append([]string{}, questions...)
}

func pendingSWOT() SWOT {
	pending := func() []string { return []string{"Analysis pending"} }
	return SWOT{Strengths: pending(), Weaknesses: pending(), Opportunities: pending(), Threats: pending()}
}

func (s *Service) swot(ctx context.Context, p profile.Enriched, q quant.Analysis, r risk.Analysis) SWOT {
	founders, _ := json.Marshal(p.Founders)
	market, _ := json.Marshal(p.MarketData)
	traction, _ := json.Marshal(p.TractionMetrics)
	rankings, _ := json.Marshal(q.PercentileRankings)
	flags, _ := json.Marshal(r.RedFlags)
	prompt := fmt.Sprintf(swotPrompt, companyOr(p.CompanyName, "Unknown"), founders, p.ProblemStatement, p.SolutionDescription, market, traction, rankings, flags)

	res := llm.Ask(ctx, s.client, prompt, pendingSWOT())
	if res.Defaulted {
		telemetry.Warn("synthesis.swot_defaulted", map[string]any{"request_id": llm.RequestIDFromContext(ctx), "error": res.Err})
		return pendingSWOT()
	}
	out := res.Value
	for _, list := range []*[]string{&out.Strengths, &out.Weaknesses, &out.Opportunities, &out.Threats} {
		if len(*list) == 0 {
			*list = []string{"Analysis pending"}
		}
	}
	return out
}

type memoReply struct {
	Memo string `json:"memo"`
}

func (s *Service) memo(ctx context.Context, p profile.Enriched, r risk.Analysis, score scoring.Breakdown, swot SWOT, rec Recommendation) string {
	founders, _ := json.Marshal(p.Founders)
	traction, _ := json.Marshal(p.TractionMetrics)
	financials, _ := json.Marshal(p.Financials)
	components, _ := json.Marshal(map[string]float64{"team": score.Team, "market": score.Market, "traction": score.Traction, "moat": score.Moat})
	swotJSON, _ := json.Marshal(swot)
	flags, _ := json.Marshal(r.RedFlags)
	tam := "TBD"
	if p.MarketData.TAM != nil {
		tam = fmt.Sprintf("%.0f", *p.MarketData.TAM)
	}
	prompt := fmt.Sprintf(memoPrompt,
		companyOr(p.CompanyName, "TBD"), p.ProblemStatement, p.SolutionDescription,
		founders, tam, traction, financials,
		score.FinalScore, components, swotJSON, r.OverallRiskScore, flags)

	fallback := FallbackMemo(p.Profile, score, rec.Recommendation)
	res := llm.Ask(ctx, s.client, prompt, memoReply{Memo: fallback})
	if res.Defaulted || strings.TrimSpace(res.Value.Memo) == "" {
		telemetry.Warn("synthesis.memo_defaulted", map[string]any{"request_id": llm.RequestIDFromContext(ctx), "error": res.Err})
		return fallback
	}
	return res.Value.Memo
}

// FallbackMemo is the memo written when the LLM cannot produce one.
func FallbackMemo(p profile.Profile, score scoring.Breakdown, rec scoring.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVESTMENT MEMO - %s\n\n", companyOr(p.CompanyName, "TBD"))
	fmt.Fprintf(&b, "Recommendation: %s (%s confidence)\n", rec.Decision, rec.Confidence)
	fmt.Fprintf(&b, "Overall score: %.2f/1.0 (team %.2f, market %.2f, traction %.2f, moat %.2f)\n", score.FinalScore, score.Team, score.Market, score.Traction, score.Moat)
	fmt.Fprintf(&b, "Risk adjustment: %.2f\n\n", score.RiskAdjustment)
	fmt.Fprintf(&b, "Rationale: %s\n", rec.Rationale)
	fmt.Fprintf(&b, "Next steps: %s\n", strings.Join(rec.NextSteps, ", "))
	return b.String()
}

// ExecutiveSummary renders the short summary shown alongside the memo.
func ExecutiveSummary(p profile.Profile, score scoring.Breakdown, rec scoring.Recommendation) string {
	name := companyOr(p.CompanyName, "TBD")
	problem := companyOr(p.ProblemStatement, "a market problem")
	solution := companyOr(p.SolutionDescription, "their solution")
	market := "sizable"
	if p.MarketData.TAM != nil {
		market = fmt.Sprintf("$%.0f", *p.MarketData.TAM)
	}
	steps := rec.NextSteps
	if len(steps) > 3 {
		steps = steps[:3]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EXECUTIVE SUMMARY - %s\n", name)
	fmt.Fprintf(&b, "RECOMMENDATION: %s\n", rec.Decision)
	fmt.Fprintf(&b, "INVESTMENT SCORE: %.2f/1.0\n\n", score.FinalScore)
	fmt.Fprintf(&b, "%s is addressing %s with %s.\n\n", name, problem, solution)
	fmt.Fprintf(&b, "Key Strengths: Strong team background, %s market opportunity\n", market)
	fmt.Fprintf(&b, "Key Concerns: %s\n", rec.Rationale)
	fmt.Fprintf(&b, "Next Steps: %s\n", strings.Join(steps, ", "))
	return b.String()
}

// ConfidenceLevel grades the analysis by extraction confidence.
func ConfidenceLevel(extractionConfidence float64) string {
	switch {
	case extractionConfidence > 0.8:
		return "HIGH"
	case extractionConfidence > 0.6:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// DataCompleteness is the share of the seven core profile fields that are populated.
func DataCompleteness(p profile.Profile) float64 {
	present := []bool{
		strings.TrimSpace(p.CompanyName) != "",
		len(p.Founders) > 0,
		strings.TrimSpace(p.ProblemStatement) != "",
		strings.TrimSpace(p.SolutionDescription) != "",
		marketPresent(p.MarketData),
		tractionPresent(p.TractionMetrics),
		financialsPresent(p.Financials),
	}
	n := 0
	for _, ok := range present {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(present))
}

func marketPresent(m profile.Market) bool {
	return m.TAM != nil || m.SAM != nil || m.SOM != nil || m.TargetMarket != "" || m.MarketGrowthRate != nil || len(m.MarketTrends) > 0
}

func tractionPresent(t profile.Traction) bool {
	return t.MRR != nil || t.ARR != nil || t.CAC != nil || t.LTV != nil || t.ChurnRate != nil ||
		t.UserCount != nil || t.CustomerCount != nil || t.GrowthRate != nil || len(t.KeyMetrics) > 0
}

func financialsPresent(f profile.Financials) bool {
	return f.Revenue != nil || f.BurnRate != nil || f.FundingRequested != nil || f.Valuation != nil ||
		f.RunwayMonths != nil || len(f.PreviousFunding) > 0
}

func companyOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
