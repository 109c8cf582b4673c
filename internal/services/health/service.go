package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service reports liveness and, when a database is wired, its reachability.
type Service struct {
	db *sql.DB
}

// NewService constructs a health service. db may be nil.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Status returns the health payload. ok is false only when a wired database
// does not answer a ping.
func (s *Service) Status(ctx context.Context) map[string]any {
	out := map[string]any{"ok": true}
	if s == nil || s.db == nil {
		out["database"] = "memory"
		return out
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		out["ok"] = false
		out["database"] = "unreachable"
		return out
	}
	out["database"] = "ok"
	return out
}
