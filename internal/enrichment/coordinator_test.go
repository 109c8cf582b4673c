package enrichment

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"athena-backend/internal/profile"
	"athena-backend/internal/shared/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errLookup = errors.New("lookup unavailable")

func failing() Lookup {
	return LookupFunc(func(ctx context.Context, p profile.Profile) (profile.Document, error) {
		return nil, errLookup
	})
}

func constant(doc profile.Document) Lookup {
	return LookupFunc(func(ctx context.Context, p profile.Profile) (profile.Document, error) {
		return doc, nil
	})
}

type founderFunc func(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error)

func (f founderFunc) VerifyFounders(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error) {
	return f(ctx, founders)
}

func baseProfile() profile.Profile {
	return profile.Profile{
		CompanyName: "Acme",
		Founders:    []profile.Founder{{Name: "Ada", ExperienceYears: 6}},
		MarketData:  profile.Market{TAM: profile.Float64(1e9)},
	}
}

func fixedClock(c *Coordinator) *Coordinator {
	c.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestEnrichPartialFailureKeepsAllKeys(t *testing.T) {
	coord := fixedClock(NewCoordinator(Lookups{
		Founders: founderFunc(func(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error) {
			return map[string]profile.Verification{"Ada": {Score: 0.9}}, nil
		}),
		Competitors: failing(),
		Market:      constant(profile.Document{"addressable_market_score": 0.8}),
		Technology:  failing(),
		News:        constant(profile.Document{"sentiment_score": 0.7}),
	}))

	got, err := coord.Enrich(context.Background(), baseProfile())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if diff := cmp.Diff(baseProfile(), got.Profile); diff != "" {
		t.Fatalf("profile fields changed (-want +got):\n%s", diff)
	}
	if got.FounderVerification["Ada"].Score != 0.9 {
		t.Fatalf("unexpected verification %+v", got.FounderVerification)
	}
	if got.CompetitorAnalysis == nil || len(got.CompetitorAnalysis) != 0 {
		t.Fatalf("expected empty competitor default, got %v", got.CompetitorAnalysis)
	}
	if got.TechnologyAnalysis == nil || len(got.TechnologyAnalysis) != 0 {
		t.Fatalf("expected empty technology default, got %v", got.TechnologyAnalysis)
	}
	if got.MarketValidation.Float("addressable_market_score", 0) != 0.8 || got.NewsSentiment.Float("sentiment_score", 0) != 0.7 {
		t.Fatalf("successful lookups lost: %+v", got)
	}
	if !got.EnrichmentTimestamp.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", got.EnrichmentTimestamp)
	}
	if !strings.Contains(metrics.Render(), `enrichment_lookup_failed_total{kind="competitor_analysis"}`) {
		t.Fatalf("expected lookup failure metric")
	}
}

func TestEnrichAllFailuresStillReturns(t *testing.T) {
	coord := NewCoordinator(Lookups{
		Founders: founderFunc(func(ctx context.Context, founders []profile.Founder) (map[string]profile.Verification, error) {
			return nil, errLookup
		}),
		Competitors: failing(),
		Market:      failing(),
		Technology:  LookupFunc(func(ctx context.Context, p profile.Profile) (profile.Document, error) { panic("boom") }),
		News:        failing(),
	})

	got, err := coord.Enrich(context.Background(), baseProfile())
	if err != nil {
		t.Fatalf("Enrich should not fail on lookup errors: %v", err)
	}
	if got.FounderVerification == nil || len(got.FounderVerification) != 0 {
		t.Fatalf("expected empty founder verification, got %v", got.FounderVerification)
	}
	for name, doc := range map[string]profile.Document{
		"competitors": got.CompetitorAnalysis,
		"market":      got.MarketValidation,
		"technology":  got.TechnologyAnalysis,
		"news":        got.NewsSentiment,
	} {
		if doc == nil || len(doc) != 0 {
			t.Fatalf("%s: expected empty default, got %v", name, doc)
		}
	}
}

func TestEnrichRunsLookupsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	slow := LookupFunc(func(ctx context.Context, p profile.Profile) (profile.Document, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return profile.Document{"ok": true}, nil
	})
	coord := NewCoordinator(Lookups{Competitors: slow, Market: slow, Technology: slow, News: slow})

	done := make(chan profile.Enriched, 1)
	go func() {
		got, _ := coord.Enrich(context.Background(), baseProfile())
		done <- got
	}()

	deadline := time.After(2 * time.Second)
	for peak.Load() < 4 {
		select {
		case <-deadline:
			close(release)
			<-done
			t.Fatalf("expected four lookups in flight, peak %d", peak.Load())
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	got := <-done
	if got.NewsSentiment["ok"] != true || got.CompetitorAnalysis["ok"] != true {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestEnrichNilLookupsDefault(t *testing.T) {
	got, err := NewCoordinator(Lookups{}).Enrich(context.Background(), baseProfile())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if got.FounderVerification == nil || got.CompetitorAnalysis == nil || got.NewsSentiment == nil {
		t.Fatalf("expected non-nil defaults, got %+v", got)
	}
}

func TestEnrichReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCoordinator(Lookups{}).Enrich(ctx, baseProfile()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
