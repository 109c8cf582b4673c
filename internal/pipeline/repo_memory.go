package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps runs in memory and is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Run
	now  func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Run), now: time.Now}
}

// Save merges run into the stored record.
func (s *MemoryStore) Save(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[run.ID]
	if !ok {
		stored := cloneRun(run)
		if stored.Metadata == nil {
			stored.Metadata = map[string]any{}
		}
		stored.UpdatedAt = s.now().UTC()
		s.byID[run.ID] = stored
		return nil
	}
	s.byID[run.ID] = merge(existing, cloneRun(run), s.now().UTC())
	return nil
}

func merge(existing, incoming Run, now time.Time) Run {
	out := existing
	if !existing.Status.Terminal() {
		out.Status = incoming.Status
		out.CurrentStage = incoming.CurrentStage
	}
	if !existing.Status.Terminal() && out.Error == nil && incoming.Error != nil {
		out.Error = incoming.Error
	}
	if out.DocumentRef == "" {
		out.DocumentRef = incoming.DocumentRef
	}
	if out.DocumentKind == "" {
		out.DocumentKind = incoming.DocumentKind
	}
	if len(out.Metadata) == 0 && len(incoming.Metadata) > 0 {
		out.Metadata = incoming.Metadata
	}
	if out.StageOutputs == nil {
		out.StageOutputs = map[Stage]json.RawMessage{}
	}
	for st, raw := range incoming.StageOutputs {
		if _, exists := out.StageOutputs[st]; !exists {
			out.StageOutputs[st] = raw
		}
	}
	if out.StartedAt == nil {
		out.StartedAt = incoming.StartedAt
	}
	if out.CompletedAt == nil {
		out.CompletedAt = incoming.CompletedAt
	}
	if out.FailedAt == nil {
		out.FailedAt = incoming.FailedAt
	}
	out.UpdatedAt = now
	return out
}

// Get returns a copy of the stored run.
func (s *MemoryStore) Get(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.byID[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return cloneRun(run), nil
}

// ListRecent returns up to limit summaries, newest first.
func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	s.mu.RLock()
	runs := make([]Run, 0, len(s.byID))
	for _, r := range s.byID {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return startedAt(runs[i]).After(startedAt(runs[j]))
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]Summary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summaryOf(r))
	}
	return out, nil
}

func startedAt(r Run) time.Time {
	if r.StartedAt == nil {
		return time.Time{}
	}
	return *r.StartedAt
}

var _ CheckpointStore = (*MemoryStore)(nil)
