package synthesis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/quant"
	"athena-backend/internal/risk"
	"athena-backend/internal/scoring"
)

func newService(t *testing.T, client llm.Client) *Service {
	t.Helper()
	agg, err := scoring.NewAggregator(scoring.DefaultThesisWeights())
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	s := NewService(client, agg)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSynthesizeWithoutLLMUsesDefaults(t *testing.T) {
	s := newService(t, nil)
	p := profile.Enriched{Profile: profile.Profile{CompanyName: "Acme", ExtractionConfidence: 0.6}}
	questions := []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"}

	res, err := s.Synthesize(context.Background(), p, quant.Analysis{OverallScore: 0.5}, risk.Analysis{OverallRiskScore: 0.3, DueDiligenceQuestions: questions})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// team 0.3, market 0.5, traction 0.5, moat 0.5
	wantWeighted := 0.3*0.4 + 0.5*0.3 + 0.5*0.2 + 0.5*0.1
	if math.Abs(res.InvestmentScore.FinalScore-wantWeighted*0.7) > 1e-9 {
		t.Fatalf("final score = %v, want %v", res.InvestmentScore.FinalScore, wantWeighted*0.7)
	}
	if res.Recommendation.Decision != scoring.DecisionPass {
		t.Fatalf("decision = %s, want PASS", res.Recommendation.Decision)
	}
	if len(res.Recommendation.KeyQuestions) != 5 || res.Recommendation.KeyQuestions[4] != "q5" {
		t.Fatalf("key questions = %v", res.Recommendation.KeyQuestions)
	}
	if res.SWOTAnalysis.Threats[0] != "Analysis pending" {
		t.Fatalf("swot = %+v", res.SWOTAnalysis)
	}
	if !strings.HasPrefix(res.InvestmentMemo, "INVESTMENT MEMO - Acme") {
		t.Fatalf("memo = %q", res.InvestmentMemo)
	}
	if !strings.Contains(res.ExecutiveSummary, "RECOMMENDATION: PASS") {
		t.Fatalf("summary = %q", res.ExecutiveSummary)
	}
	if res.AnalysisMetadata.ConfidenceLevel != "LOW" {
		t.Fatalf("confidence = %s", res.AnalysisMetadata.ConfidenceLevel)
	}
	if !res.AnalysisMetadata.AnalysisDate.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("analysis date = %v", res.AnalysisMetadata.AnalysisDate)
	}
}

func TestSynthesizeUsesLLMOutput(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "SWOT analysis for this startup") {
			return "```json\n{\"strengths\":[\"team\"],\"weaknesses\":[],\"opportunities\":[\"growth\"],\"threats\":[\"incumbents\"]}\n```", nil
		}
		return `{"memo":"Invest carefully."}`, nil
	})
	s := newService(t, client)

	res, err := s.Synthesize(context.Background(), profile.Enriched{}, quant.Analysis{}, risk.Analysis{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.InvestmentMemo != "Invest carefully." {
		t.Fatalf("memo = %q", res.InvestmentMemo)
	}
	if res.SWOTAnalysis.Strengths[0] != "team" || res.SWOTAnalysis.Weaknesses[0] != "Analysis pending" {
		t.Fatalf("swot = %+v", res.SWOTAnalysis)
	}
}

func TestSynthesizeFallsBackOnLLMError(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream unavailable")
	})
	s := newService(t, client)

	res, err := s.Synthesize(context.Background(), profile.Enriched{}, quant.Analysis{}, risk.Analysis{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasPrefix(res.InvestmentMemo, "INVESTMENT MEMO - TBD") {
		t.Fatalf("memo = %q", res.InvestmentMemo)
	}
}

func TestSynthesizeHonorsCancellation(t *testing.T) {
	s := newService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Synthesize(ctx, profile.Enriched{}, quant.Analysis{}, risk.Analysis{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfidenceLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.9, "HIGH"},
		{0.8, "MEDIUM"},
		{0.61, "MEDIUM"},
		{0.6, "LOW"},
		{0, "LOW"},
	}
	for _, tt := range tests {
		if got := ConfidenceLevel(tt.in); got != tt.want {
			t.Fatalf("ConfidenceLevel(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDataCompleteness(t *testing.T) {
	t.Parallel()
	if got := DataCompleteness(profile.Profile{}); got != 0 {
		t.Fatalf("empty profile completeness = %v", got)
	}
	p := profile.Profile{
		CompanyName:         "Acme",
		Founders:            []profile.Founder{{Name: "Ada"}},
		ProblemStatement:    "slow invoices",
		SolutionDescription: "fast invoices",
		MarketData:          profile.Market{TAM: profile.Float64(1e9)},
		TractionMetrics:     profile.Traction{MRR: profile.Float64(1000)},
	}
	if got := DataCompleteness(p); math.Abs(got-6.0/7.0) > 1e-9 {
		t.Fatalf("completeness = %v, want 6/7", got)
	}
	p.Financials.Revenue = profile.Float64(0)
	if got := DataCompleteness(p); got != 1 {
		t.Fatalf("completeness = %v, want 1", got)
	}
}
