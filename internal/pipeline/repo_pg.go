package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"athena-backend/internal/ingest"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore implements CheckpointStore using Postgres.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore wires a Postgres checkpoint store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// On conflict the stored outputs win for keys present in both (jsonb || keeps
// the right operand), timestamps keep the first non-null value and terminal
// rows keep their status and stage.
const upsertSuffix = `ON CONFLICT (id) DO UPDATE SET
	status = CASE WHEN analysis_runs.status IN ('completed', 'error') THEN analysis_runs.status ELSE EXCLUDED.status END,
	current_stage = CASE WHEN analysis_runs.status IN ('completed', 'error') THEN analysis_runs.current_stage ELSE EXCLUDED.current_stage END,
	document_ref = CASE WHEN analysis_runs.document_ref = '' THEN EXCLUDED.document_ref ELSE analysis_runs.document_ref END,
	document_kind = CASE WHEN analysis_runs.document_kind = '' THEN EXCLUDED.document_kind ELSE analysis_runs.document_kind END,
	metadata = CASE WHEN analysis_runs.metadata = '{}'::jsonb THEN EXCLUDED.metadata ELSE analysis_runs.metadata END,
	stage_outputs = EXCLUDED.stage_outputs || analysis_runs.stage_outputs,
	error_stage = CASE WHEN analysis_runs.status IN ('completed', 'error') THEN analysis_runs.error_stage ELSE COALESCE(analysis_runs.error_stage, EXCLUDED.error_stage) END,
	error_code = CASE WHEN analysis_runs.status IN ('completed', 'error') THEN analysis_runs.error_code ELSE COALESCE(analysis_runs.error_code, EXCLUDED.error_code) END,
	error_message = CASE WHEN analysis_runs.status IN ('completed', 'error') THEN analysis_runs.error_message ELSE COALESCE(analysis_runs.error_message, EXCLUDED.error_message) END,
	started_at = COALESCE(analysis_runs.started_at, EXCLUDED.started_at),
	completed_at = COALESCE(analysis_runs.completed_at, EXCLUDED.completed_at),
	failed_at = COALESCE(analysis_runs.failed_at, EXCLUDED.failed_at),
	updated_at = EXCLUDED.updated_at`

// Save upserts run and merges it into any stored row.
func (s *PGStore) Save(ctx context.Context, run Run) error {
	metadata, err := marshalJSONB(run.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	outputs := run.StageOutputs
	if outputs == nil {
		outputs = map[Stage]json.RawMessage{}
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal stage outputs: %w", err)
	}

	var errStage, errCode, errMessage any
	if run.Error != nil {
		errStage, errCode, errMessage = string(run.Error.Stage), run.Error.Code, run.Error.Message
	}

	query, args, err := psql.
		Insert("analysis_runs").
		Columns("id", "status", "current_stage", "document_ref", "document_kind", "metadata", "stage_outputs",
			"error_stage", "error_code", "error_message", "started_at", "completed_at", "failed_at", "updated_at").
		Values(run.ID, string(run.Status), string(run.CurrentStage), run.DocumentRef, string(run.DocumentKind), metadata, outputsJSON,
			errStage, errCode, errMessage, nullTime(run.StartedAt), nullTime(run.CompletedAt), nullTime(run.FailedAt), time.Now().UTC()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build checkpoint upsert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("checkpoint run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns a run by id. Ids that are not UUIDs cannot match the uuid
// column and report ErrNotFound.
func (s *PGStore) Get(ctx context.Context, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, ErrNotFound
	}
	const query = `
SELECT id, status, current_stage, document_ref, document_kind, metadata, stage_outputs,
       error_stage, error_code, error_message, started_at, completed_at, failed_at, updated_at
FROM analysis_runs
WHERE id = $1
LIMIT 1`
	var (
		r            Run
		status       string
		stage        string
		kind         string
		metadata     []byte
		outputs      []byte
		errorStage   sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		failedAt     sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&status,
		&stage,
		&r.DocumentRef,
		&kind,
		&metadata,
		&outputs,
		&errorStage,
		&errorCode,
		&errorMessage,
		&startedAt,
		&completedAt,
		&failedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	r.Status = Status(status)
	r.CurrentStage = Stage(stage)
	r.DocumentKind = ingest.Kind(kind)
	r.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return Run{}, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
	}
	r.StageOutputs = map[Stage]json.RawMessage{}
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &r.StageOutputs); err != nil {
			return Run{}, fmt.Errorf("decode stage outputs for %s: %w", id, err)
		}
	}
	if errorStage.Valid || errorMessage.Valid {
		r.Error = &RunError{Stage: Stage(errorStage.String), Code: errorCode.String, Message: errorMessage.String}
	}
	r.StartedAt = timePtr(startedAt)
	r.CompletedAt = timePtr(completedAt)
	r.FailedAt = timePtr(failedAt)
	return r, nil
}

// ListRecent returns up to limit summaries ordered by start time, newest first.
func (s *PGStore) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	query, args, err := psql.
		Select(
			"id",
			"status",
			"started_at",
			"COALESCE(stage_outputs->'extraction'->>'company_name', '')",
			"COALESCE(stage_outputs->'synthesis'->'recommendation'->>'decision', '')",
		).
		From("analysis_runs").
		OrderBy("started_at DESC NULLS LAST").
		Limit(uint64(normalizeLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum       Summary
			status    string
			startedAt sql.NullTime
		)
		if err := rows.Scan(&sum.ID, &status, &startedAt, &sum.CompanyName, &sum.Decision); err != nil {
			return nil, fmt.Errorf("scan recent run: %w", err)
		}
		sum.Status = Status(status)
		sum.StartedAt = timePtr(startedAt)
		if sum.CompanyName == "" {
			sum.CompanyName = unknownCompany
		}
		if sum.Decision == "" {
			sum.Decision = pendingDecision
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent runs: %w", err)
	}
	return out, nil
}

func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ CheckpointStore = (*PGStore)(nil)
