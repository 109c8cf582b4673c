package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"athena-backend/internal/ingest"
	"athena-backend/internal/profile"
	"athena-backend/internal/quant"
	"athena-backend/internal/queue"
	"athena-backend/internal/risk"
	"athena-backend/internal/scoring"
	"athena-backend/internal/synthesis"
)

type fakeWorkers struct {
	failAt  Stage
	panicAt Stage
	blockAt Stage

	mu            sync.Mutex
	calls         []Stage
	extractedFrom string
}

func (f *fakeWorkers) enter(ctx context.Context, stage Stage) error {
	f.mu.Lock()
	f.calls = append(f.calls, stage)
	f.mu.Unlock()
	switch stage {
	case f.panicAt:
		panic("boom")
	case f.failAt:
		return fmt.Errorf("llm unavailable at %s", stage)
	case f.blockAt:
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeWorkers) Calls() []Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Stage(nil), f.calls...)
}

func (f *fakeWorkers) ExtractText(ctx context.Context, ref string, kind ingest.Kind) (ingest.Result, error) {
	if err := f.enter(ctx, StageIngestion); err != nil {
		return ingest.Result{}, err
	}
	return ingest.Result{ContentType: kind, RawText: "raw " + ref, CleanedText: "clean deck"}, nil
}

func (f *fakeWorkers) Extract(ctx context.Context, text string) (profile.Profile, error) {
	if err := f.enter(ctx, StageExtraction); err != nil {
		return profile.Profile{}, err
	}
	f.mu.Lock()
	f.extractedFrom = text
	f.mu.Unlock()
	return profile.Profile{CompanyName: "Acme", Founders: []profile.Founder{{Name: "Ada"}}}, nil
}

func (f *fakeWorkers) Enrich(ctx context.Context, p profile.Profile) (profile.Enriched, error) {
	if err := f.enter(ctx, StageEnrichment); err != nil {
		return profile.Enriched{}, err
	}
	return profile.Enriched{Profile: p, FounderVerification: map[string]profile.Verification{}}, nil
}

func (f *fakeWorkers) Benchmark(ctx context.Context, p profile.Enriched) (quant.Analysis, error) {
	if err := f.enter(ctx, StageQuantitative); err != nil {
		return quant.Analysis{}, err
	}
	return quant.Analysis{Stage: "seed", Sector: "b2b_saas", OverallScore: 0.6}, nil
}

func (f *fakeWorkers) AssessRisks(ctx context.Context, p profile.Enriched, q quant.Analysis) (risk.Analysis, error) {
	if err := f.enter(ctx, StageRisk); err != nil {
		return risk.Analysis{}, err
	}
	return risk.Analysis{OverallRiskScore: 0.3}, nil
}

func (f *fakeWorkers) Synthesize(ctx context.Context, p profile.Enriched, q quant.Analysis, r risk.Analysis) (synthesis.Result, error) {
	if err := f.enter(ctx, StageSynthesis); err != nil {
		return synthesis.Result{}, err
	}
	return synthesis.Result{
		CompanyName:     p.CompanyName,
		InvestmentScore: scoring.Breakdown{FinalScore: 0.49},
		Recommendation: synthesis.Recommendation{
			Recommendation: scoring.Recommendation{Decision: scoring.DecisionPass},
			KeyQuestions:   []string{},
		},
		InvestmentMemo: "memo",
	}, nil
}

func (f *fakeWorkers) Workers() Workers {
	return Workers{Ingest: f, Extract: f, Enrich: f, Quant: f, Risk: f, Synthesize: f}
}

// recordingStore snapshots the stored run after every successful save and
// can fail a chosen save.
type recordingStore struct {
	*MemoryStore

	mu        sync.Mutex
	saves     int
	failOn    int
	snapshots []Run
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (r *recordingStore) Save(ctx context.Context, run Run) error {
	r.mu.Lock()
	r.saves++
	n := r.saves
	r.mu.Unlock()
	if n == r.failOn {
		return errors.New("disk full")
	}
	if err := r.MemoryStore.Save(ctx, run); err != nil {
		return err
	}
	stored, err := r.MemoryStore.Get(ctx, run.ID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshots = append(r.snapshots, stored)
	r.mu.Unlock()
	return nil
}

func (r *recordingStore) Snapshots() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Run(nil), r.snapshots...)
}

type fakeSink struct {
	mu   sync.Mutex
	rows []SummaryRow
	err  error
}

func (s *fakeSink) Append(ctx context.Context, row SummaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return s.err
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func stageIndex(s Stage) int {
	if s == StageCompleted {
		return len(Stages)
	}
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

func assertStagePrefix(t *testing.T, r Run) {
	t.Helper()
	gap := false
	for _, st := range Stages {
		if _, ok := r.StageOutputs[st]; !ok {
			gap = true
			continue
		}
		if gap {
			t.Fatalf("stage outputs %v are not a prefix of the stage order", r.CompletedStages())
		}
	}
}

func assertCheckpointsOrdered(t *testing.T, snapshots []Run) {
	t.Helper()
	last := -1
	for i, snap := range snapshots {
		assertStagePrefix(t, snap)
		idx := stageIndex(snap.CurrentStage)
		if idx < last {
			t.Fatalf("checkpoint %d moved stage backwards to %s", i, snap.CurrentStage)
		}
		last = idx
	}
}
