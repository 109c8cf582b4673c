package pipeline

import "context"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CheckpointStore persists runs. Save merges into the stored record: stage
// outputs are only ever added, timestamps keep their first value and a
// terminal status is never replaced.
type CheckpointStore interface {
	Save(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
