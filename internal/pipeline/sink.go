package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"athena-backend/internal/profile"
	"athena-backend/internal/shared/storage/object"
)

// SummaryRow is the denormalized record emitted when a run completes.
type SummaryRow struct {
	RunID       string             `json:"run_id"`
	CompanyName string             `json:"company_name"`
	Founders    []profile.Founder  `json:"founders"`
	Problem     string             `json:"problem"`
	Solution    string             `json:"solution"`
	MarketData  profile.Market     `json:"market_data"`
	Traction    profile.Traction   `json:"traction"`
	Financials  profile.Financials `json:"financials"`
	Decision    string             `json:"decision"`
	FinalScore  float64            `json:"final_score"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Sink receives summary rows for analytics. Failures never fail a run.
type Sink interface {
	Append(ctx context.Context, row SummaryRow) error
}

// NopSink discards rows.
type NopSink struct{}

// Append implements Sink.
func (NopSink) Append(ctx context.Context, row SummaryRow) error { return nil }

// PGSink appends rows to run_summaries.
type PGSink struct {
	DB *sql.DB
}

// Append inserts the row. A row already present for the run is left untouched.
func (s *PGSink) Append(ctx context.Context, row SummaryRow) error {
	founders, err := json.Marshal(nonNilFounders(row.Founders))
	if err != nil {
		return fmt.Errorf("marshal founders: %w", err)
	}
	market, err := json.Marshal(row.MarketData)
	if err != nil {
		return fmt.Errorf("marshal market data: %w", err)
	}
	traction, err := json.Marshal(row.Traction)
	if err != nil {
		return fmt.Errorf("marshal traction: %w", err)
	}
	financials, err := json.Marshal(row.Financials)
	if err != nil {
		return fmt.Errorf("marshal financials: %w", err)
	}

	query, args, err := psql.
		Insert("run_summaries").
		Columns("run_id", "company_name", "founders", "problem", "solution", "market_data", "traction", "financials",
			"decision", "final_score", "created_at", "updated_at").
		Values(row.RunID, row.CompanyName, founders, row.Problem, row.Solution, market, traction, financials,
			row.Decision, row.FinalScore, row.CreatedAt, row.UpdatedAt).
		Suffix("ON CONFLICT (run_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run summary %s: %w", row.RunID, err)
	}
	return nil
}

// ObjectSink writes each row as a JSON object under summaries/.
type ObjectSink struct {
	Store object.ObjectStore
}

// Append writes summaries/<run id>.json.
func (s *ObjectSink) Append(ctx context.Context, row SummaryRow) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := path.Join("summaries", row.RunID+".json")
	if _, err := s.Store.SaveWithKey(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("storage write %s: %w", key, err)
	}
	return nil
}

func nonNilFounders(f []profile.Founder) []profile.Founder {
	if f == nil {
		return []profile.Founder{}
	}
	return f
}

func summaryRow(id string, p profile.Enriched, decision string, finalScore float64, startedAt *time.Time, now time.Time) SummaryRow {
	created := now
	if startedAt != nil {
		created = *startedAt
	}
	name := p.CompanyName
	if name == "" {
		name = unknownCompany
	}
	return SummaryRow{
		RunID:       id,
		CompanyName: name,
		Founders:    nonNilFounders(p.Founders),
		Problem:     p.ProblemStatement,
		Solution:    p.SolutionDescription,
		MarketData:  p.MarketData,
		Traction:    p.TractionMetrics,
		Financials:  p.Financials,
		Decision:    decision,
		FinalScore:  finalScore,
		CreatedAt:   created,
		UpdatedAt:   now,
	}
}

var (
	_ Sink = NopSink{}
	_ Sink = (*PGSink)(nil)
	_ Sink = (*ObjectSink)(nil)
)
