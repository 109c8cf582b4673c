// Package enrichment layers external lookups on top of an extracted profile.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/shared/metrics"
	"athena-backend/internal/shared/telemetry"
)

// Lookup kinds, also used as metric labels.
const (
	KindFounderVerification = "founder_verification"
	KindCompetitorAnalysis  = "competitor_analysis"
	KindMarketValidation    = "market_validation"
	KindTechnologyAnalysis  = "technology_analysis"
	KindNewsSentiment       = "news_sentiment"
)

// FounderVerifier checks each named founder's claims.
type FounderVerifier interface {
	VerifyFounders(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error)
}

// Lookup produces one enrichment document for a profile.
type Lookup interface {
	Lookup(ctx context.Context, p profile.Profile) (profile.Document, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, p profile.Profile) (profile.Document, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, p profile.Profile) (profile.Document, error) {
	return f(ctx, p)
}

// Lookups is the set of lookups run for every profile. A nil lookup yields its default.
type Lookups struct {
	Founders    FounderVerifier
	Competitors Lookup
	Market      Lookup
	Technology  Lookup
	News        Lookup
}

// DefaultLookups wires the lookups against a web searcher and an LLM client.
// Either may be nil.
func DefaultLookups(searcher Searcher, client llm.Client) Lookups {
	return Lookups{
		Founders:    &founderVerifier{searcher: searcher, client: client},
		Competitors: &competitorLookup{searcher: searcher, client: client},
		Market:      LookupFunc(marketValidation),
		Technology:  LookupFunc(technologyAnalysis),
		News:        &newsLookup{searcher: searcher, client: client},
	}
}

// Coordinator runs the lookups concurrently and joins them.
type Coordinator struct {
	lookups Lookups
	now     func() time.Time
}

// NewCoordinator builds a coordinator over lookups.
func NewCoordinator(lookups Lookups) *Coordinator {
	return &Coordinator{lookups: lookups, now: time.Now}
}

// Enrich runs all five lookups and returns p with their results attached.
// A failing or panicking lookup contributes an empty document and never
// affects the others. Only context cancellation is reported as an error.
func (c *Coordinator) Enrich(ctx context.Context, p profile.Profile) (profile.Enriched, error) {
	if err := ctx.Err(); err != nil {
		return profile.Enriched{}, err
	}

	var (
		g           errgroup.Group
		founders    map[string]profile.Verification
		competitors profile.Document
		market      profile.Document
		technology  profile.Document
		news        profile.Document
	)

	g.Go(func() error {
		founders = c.verifyFounders(ctx, p)
		return nil
	})
	g.Go(func() error {
		competitors = c.run(ctx, KindCompetitorAnalysis, c.lookups.Competitors, p)
		return nil
	})
	g.Go(func() error {
		market = c.run(ctx, KindMarketValidation, c.lookups.Market, p)
		return nil
	})
	g.Go(func() error {
		technology = c.run(ctx, KindTechnologyAnalysis, c.lookups.Technology, p)
		return nil
	})
	g.Go(func() error {
		news = c.run(ctx, KindNewsSentiment, c.lookups.News, p)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return profile.Enriched{}, err
	}

	return profile.Enriched{
		Profile:             p,
		FounderVerification: founders,
		CompetitorAnalysis:  competitors,
		MarketValidation:    market,
		TechnologyAnalysis:  technology,
		NewsSentiment:       news,
		EnrichmentTimestamp: c.now().UTC(),
	}, nil
}

func (c *Coordinator) run(ctx context.Context, kind string, lookup Lookup, p profile.Profile) (doc profile.Document) {
	defer func() {
		if r := recover(); r != nil {
			lookupFailed(ctx, kind, fmt.Errorf("panic: %v", r))
			doc = profile.Document{}
		}
	}()
	if lookup == nil {
		return profile.Document{}
	}
	out, err := lookup.Lookup(ctx, p)
	if err != nil {
		lookupFailed(ctx, kind, err)
		return profile.Document{}
	}
	if out == nil {
		return profile.Document{}
	}
	return out
}

func (c *Coordinator) verifyFounders(ctx context.Context, p profile.Profile) (out map[string]profile.Verification) {
	defer func() {
		if r := recover(); r != nil {
			lookupFailed(ctx, KindFounderVerification, fmt.Errorf("panic: %v", r))
			out = map[string]profile.Verification{}
		}
	}()
	if c.lookups.Founders == nil {
		return map[string]profile.Verification{}
	}
	res, err := c.lookups.Founders.VerifyFounders(ctx, p.Founders)
	if err != nil {
		lookupFailed(ctx, KindFounderVerification, err)
		return map[string]profile.Verification{}
	}
	if res == nil {
		return map[string]profile.Verification{}
	}
	return res
}

func lookupFailed(ctx context.Context, kind string, err error) {
	metrics.IncLookupFailed(kind)
	telemetry.Warn("enrichment.lookup_failed", map[string]any{
		"kind":       kind,
		"request_id": llm.RequestIDFromContext(ctx),
		"error":      err,
	})
}
