package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/shared/telemetry"
)

type founderVerifier struct {
	searcher Searcher
	client   llm.Client
}

// VerifyFounders checks founders one after another. Unnamed founders are skipped.
func (f *founderVerifier) VerifyFounders(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error) {
	out := make(map[string]profile.Verification, len(founders))
	for _, founder := range founders {
		name := strings.TrimSpace(founder.Name)
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found := f.searchFounder(ctx, name)
		claims, _ := json.Marshal(founder)
		evidence, _ := json.Marshal(found)
		res := llm.Ask(ctx, f.client, fmt.Sprintf(verifyFounderPrompt, claims, evidence), defaultVerification())
		v := res.Value
		v.Score = clamp01(v.Score)
		if v.VerifiedClaims == nil {
			v.VerifiedClaims = []string{}
		}
		if v.Discrepancies == nil {
			v.Discrepancies = []string{}
		}
		out[name] = v
	}
	return out, nil
}

func (f *founderVerifier) searchFounder(ctx context.Context, name string) profile.Document {
	if f.searcher == nil {
		return profile.Document{"profile_found": false, "results": []SearchResult{}}
	}
	results, err := f.searcher.Search(ctx, name+" founder linkedin")
	if err != nil {
		telemetry.Warn("enrichment.founder_search_failed", map[string]any{"founder": name, "error": err})
		return profile.Document{"profile_found": false, "results": []SearchResult{}}
	}
	return profile.Document{"profile_found": len(results) > 0, "results": results}
}

func defaultVerification() profile.Verification {
	return profile.Verification{Score: 0.5, VerifiedClaims: []string{}, Discrepancies: []string{}}
}

type competitorLookup struct {
	searcher Searcher
	client   llm.Client
}

func (c *competitorLookup) Lookup(ctx context.Context, p profile.Profile) (profile.Document, error) {
	similar := make([]map[string]any, 0, len(p.CompetitiveLandscape))
	for _, name := range p.CompetitiveLandscape {
		similar = append(similar, map[string]any{"name": name, "source": "submission"})
	}
	if c.searcher != nil && strings.TrimSpace(p.CompanyName) != "" {
		results, err := c.searcher.Search(ctx, p.CompanyName+" competitors")
		if err != nil {
			return nil, fmt.Errorf("search competitors: %w", err)
		}
		for _, r := range results {
			similar = append(similar, map[string]any{"name": r.Title, "description": r.Snippet, "url": r.URL, "source": "web"})
		}
	}

	payload, _ := json.Marshal(similar)
	landscape := llm.Ask(ctx, c.client, fmt.Sprintf(competitiveLandscapePrompt, payload), profile.Document{
		"market_saturation": "medium",
		"funding_trends":    "positive",
	})
	return profile.Document{
		"similar_companies":    similar,
		"competitive_analysis": landscape.Value,
		"market_position": profile.Document{
			"competitive_advantage": "unclear",
			"market_timing":         "good",
			"differentiation_score": 0.5,
		},
	}, nil
}

func marketValidation(ctx context.Context, p profile.Profile) (profile.Document, error) {
	tamValidation := "needs_verification"
	if p.MarketData.TAM == nil {
		tamValidation = "missing"
	}
	return profile.Document{
		"tam_validation":           tamValidation,
		"market_growth_validation": "positive",
		"addressable_market_score": 0.7,
	}, nil
}

func technologyAnalysis(ctx context.Context, p profile.Profile) (profile.Document, error) {
	stack := p.TechnologyStack
	if stack == nil {
		stack = []string{}
	}
	return profile.Document{
		"technologies":         stack,
		"technology_maturity":  "established",
		"adoption_trends":      "growing",
		"technical_risk_score": 0.3,
	}, nil
}

type newsLookup struct {
	searcher Searcher
	client   llm.Client
}

func defaultNews() profile.Document {
	return profile.Document{
		"sentiment_score": 0.6,
		"news_coverage":   "limited",
		"recent_mentions": []any{},
	}
}

func (n *newsLookup) Lookup(ctx context.Context, p profile.Profile) (profile.Document, error) {
	if n.searcher == nil || strings.TrimSpace(p.CompanyName) == "" {
		return defaultNews(), nil
	}
	results, err := n.searcher.Search(ctx, p.CompanyName+" startup news")
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}
	if len(results) == 0 {
		return defaultNews(), nil
	}

	headlines, _ := json.Marshal(results)
	res := llm.Ask(ctx, n.client, fmt.Sprintf(newsSentimentPrompt, p.CompanyName, headlines), defaultNews())
	doc := res.Value
	if doc == nil {
		doc = defaultNews()
	}
	doc["sentiment_score"] = clamp01(doc.Float("sentiment_score", 0.6))
	doc["recent_mentions"] = results
	if _, ok := doc["news_coverage"]; !ok {
		doc["news_coverage"] = coverage(len(results))
	}
	return doc, nil
}

func coverage(mentions int) string {
	switch {
	case mentions >= 6:
		return "broad"
	case mentions >= 3:
		return "moderate"
	default:
		return "limited"
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
