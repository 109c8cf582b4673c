package quant

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Benchmark holds the percentile cut points of one metric for a stage and sector.
// For metrics where lower is better the cut points descend.
type Benchmark struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Percentile buckets value into 25, 50, 75, 90 or 95.
func (b Benchmark) Percentile(value float64) float64 {
	if b.P25 > b.P90 {
		switch {
		case value >= b.P25:
			return 25
		case value >= b.P50:
			return 50
		case value >= b.P75:
			return 75
		case value >= b.P90:
			return 90
		default:
			return 95
		}
	}
	switch {
	case value <= b.P25:
		return 25
	case value <= b.P50:
		return 50
	case value <= b.P75:
		return 75
	case value <= b.P90:
		return 90
	default:
		return 95
	}
}

// BenchmarkSource returns benchmarks keyed by metric name.
type BenchmarkSource interface {
	Benchmarks(ctx context.Context, stage, sector string) (map[string]Benchmark, error)
}

// DefaultBenchmarks returns the built-in seed-stage B2B SaaS table. Other
// combinations have no defaults.
func DefaultBenchmarks(stage, sector string) map[string]Benchmark {
	if stage != StageSeed || sector != SectorB2BSaaS {
		return map[string]Benchmark{}
	}
	return map[string]Benchmark{
		MetricMRRGrowth:    {P25: 10, P50: 20, P75: 35, P90: 50},
		MetricLTVCAC:       {P25: 2, P50: 3, P75: 5, P90: 8},
		MetricChurn:        {P25: 15, P50: 10, P75: 7, P90: 5},
		MetricBurnMultiple: {P25: 3, P50: 2, P75: 1.5, P90: 1},
	}
}

type defaultSource struct{}

func (defaultSource) Benchmarks(ctx context.Context, stage, sector string) (map[string]Benchmark, error) {
	return DefaultBenchmarks(stage, sector), nil
}

// PGBenchmarkSource reads the benchmark_data table.
type PGBenchmarkSource struct {
	db *sql.DB
}

// NewPGBenchmarkSource wires a Postgres benchmark source.
func NewPGBenchmarkSource(db *sql.DB) *PGBenchmarkSource {
	return &PGBenchmarkSource{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Benchmarks returns every metric recorded for stage and sector.
func (s *PGBenchmarkSource) Benchmarks(ctx context.Context, stage, sector string) (map[string]Benchmark, error) {
	query, args, err := psql.
		Select("metric_name", "percentile_25", "percentile_50", "percentile_75", "percentile_90").
		From("benchmark_data").
		Where(sq.Eq{"stage": stage, "sector": sector}).
		OrderBy("metric_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build benchmark query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query benchmarks: %w", err)
	}
	defer rows.Close()

	out := map[string]Benchmark{}
	for rows.Next() {
		var (
			name string
			b    Benchmark
		)
		if err := rows.Scan(&name, &b.P25, &b.P50, &b.P75, &b.P90); err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		out[name] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benchmarks: %w", err)
	}
	return out, nil
}
