// Package extraction turns cleaned submission text into a structured profile.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/shared/telemetry"
)

// Service extracts profile sections one prompt at a time.
type Service struct {
	client llm.Client
}

// NewService builds an extraction service. A nil client yields an all-default profile.
func NewService(client llm.Client) *Service {
	return &Service{client: client}
}

type foundersSection struct {
	Founders []profile.Founder `json:"founders"`
}

type basicsSection struct {
	CompanyName         string   `json:"company_name"`
	ProblemStatement    string   `json:"problem_statement"`
	SolutionDescription string   `json:"solution_description"`
	Competitors         []string `json:"competitors"`
	Technology          []string `json:"technology"`
	BusinessModel       string   `json:"business_model"`
}

// Extract runs the five section prompts in sequence. Each section falls
// back to its documented default on a failed or malformed answer.
func (s *Service) Extract(ctx context.Context, text string) (profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}

	founders := section(ctx, s.client, "founders", foundersPrompt, text, foundersSection{Founders: []profile.Founder{}})
	market := section(ctx, s.client, "market", marketPrompt, text, profile.Market{MarketTrends: []string{}})
	traction := section(ctx, s.client, "traction", tractionPrompt, text, profile.Traction{KeyMetrics: []string{}})
	financials := section(ctx, s.client, "financials", financialsPrompt, text, profile.Financials{PreviousFunding: []profile.FundingRound{}})
	basics := section(ctx, s.client, "company_basics", basicsPrompt, text, basicsSection{Competitors: []string{}, Technology: []string{}})

	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}

	for i := range founders.Founders {
		founders.Founders[i].Name = strings.TrimSpace(founders.Founders[i].Name)
	}

	return profile.Profile{
		CompanyName:          strings.TrimSpace(basics.CompanyName),
		ProblemStatement:     basics.ProblemStatement,
		SolutionDescription:  basics.SolutionDescription,
		BusinessModel:        basics.BusinessModel,
		Founders:             nonNil(founders.Founders),
		MarketData:           market,
		TractionMetrics:      traction,
		Financials:           financials,
		CompetitiveLandscape: nonNil(basics.Competitors),
		TechnologyStack:      nonNil(basics.Technology),
		ExtractionConfidence: Confidence(text),
	}, nil
}

// Confidence grades extraction confidence by word count.
func Confidence(text string) float64 {
	words := len(strings.Fields(text))
	switch {
	case words < 100:
		return 0.3
	case words < 500:
		return 0.6
	case words < 1000:
		return 0.8
	default:
		return 0.9
	}
}

func section[T any](ctx context.Context, client llm.Client, name, tmpl, text string, def T) T {
	res := llm.Ask(ctx, client, fmt.Sprintf(tmpl, text), def)
	if res.Defaulted {
		telemetry.Warn("extraction.section_defaulted", map[string]any{
			"section":    name,
			"request_id": llm.RequestIDFromContext(ctx),
			"error":      res.Err,
		})
	}
	return res.Value
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
