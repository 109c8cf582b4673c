// Package quant benchmarks a startup's metrics against stage and sector peers.
package quant

import (
	"context"
	"encoding/json"
	"fmt"

	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/shared/telemetry"
)

// Stages.
const (
	StagePreSeed = "pre_seed"
	StageSeed    = "seed"
	StageSeriesA = "series_a"
	StageSeriesB = "series_b"
	StageGrowth  = "growth"
)

// SectorB2BSaaS is the only sector classified today.
const SectorB2BSaaS = "b2b_saas"

// Metric names, also the benchmark_data.metric_name values.
const (
	MetricMRRGrowth    = "mrr_growth_rate"
	MetricLTVCAC       = "cac_ltv_ratio"
	MetricChurn        = "churn_rate"
	MetricBurnMultiple = "burn_multiple"
)

const defaultOverallScore = 0.5

var metricWeights = []struct {
	name   string
	weight float64
}{
	{MetricMRRGrowth, 0.3},
	{MetricLTVCAC, 0.3},
	{MetricChurn, 0.2},
	{MetricBurnMultiple, 0.2},
}

// Ranking places one metric value against its benchmark.
type Ranking struct {
	Value      float64   `json:"value"`
	Percentile float64   `json:"percentile"`
	Benchmark  Benchmark `json:"benchmark"`
}

// Analysis is the quantitative_analysis stage output.
type Analysis struct {
	Stage                string               `json:"stage"`
	Sector               string               `json:"sector"`
	BenchmarkData        map[string]Benchmark `json:"benchmark_data"`
	PercentileRankings   map[string]Ranking   `json:"percentile_rankings"`
	QuantitativeAnalysis profile.Document     `json:"quantitative_analysis"`
	OverallScore         float64              `json:"overall_score"`
}

// Service benchmarks enriched profiles.
type Service struct {
	source BenchmarkSource
	client llm.Client
}

// NewService builds a quant service. A nil source uses the built-in defaults.
func NewService(source BenchmarkSource, client llm.Client) *Service {
	if source == nil {
		source = defaultSource{}
	}
	return &Service{source: source, client: client}
}

// Benchmark ranks p's metrics and asks the LLM for a narrative.
func (s *Service) Benchmark(ctx context.Context, p profile.Enriched) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	stage := DetermineStage(p.Profile)
	sector := DetermineSector(p.Profile)

	benchmarks, err := s.source.Benchmarks(ctx, stage, sector)
	if err != nil {
		if ctx.Err() != nil {
			return Analysis{}, ctx.Err()
		}
		telemetry.Warn("quant.benchmarks_defaulted", map[string]any{"stage": stage, "sector": sector, "error": err})
		benchmarks = nil
	}
	if len(benchmarks) == 0 {
		benchmarks = DefaultBenchmarks(stage, sector)
	}

	rankings := Rank(Metrics(p.Profile), benchmarks)

	traction, _ := json.Marshal(p.TractionMetrics)
	financials, _ := json.Marshal(p.Financials)
	ranked, _ := json.Marshal(rankings)
	narrative := llm.Ask(ctx, s.client, fmt.Sprintf(narrativePrompt, traction, financials, ranked), defaultNarrative())
	doc := narrative.Value
	if doc == nil {
		doc = defaultNarrative()
	}

	return Analysis{
		Stage:                stage,
		Sector:               sector,
		BenchmarkData:        benchmarks,
		PercentileRankings:   rankings,
		QuantitativeAnalysis: doc,
		OverallScore:         OverallScore(rankings),
	}, nil
}

func defaultNarrative() profile.Document {
	return profile.Document{
		"financial_health":  "needs_analysis",
		"growth_trajectory": "unknown",
		"recommendations":   []any{},
	}
}

// DetermineStage infers the funding stage from revenue and the amount requested.
func DetermineStage(p profile.Profile) string {
	revenue := profile.Value(p.Financials.Revenue, 0)
	requested := profile.Value(p.Financials.FundingRequested, 0)
	switch {
	case revenue == 0 && requested < 1_000_000:
		return StagePreSeed
	case revenue < 100_000 && requested < 3_000_000:
		return StageSeed
	case revenue < 1_000_000:
		return StageSeriesA
	case revenue < 10_000_000:
		return StageSeriesB
	default:
		return StageGrowth
	}
}

// DetermineSector classifies the sector. Everything is B2B SaaS for now.
func DetermineSector(p profile.Profile) string {
	return SectorB2BSaaS
}

// Metrics derives the benchmarked metrics. Metrics that cannot be derived are absent.
func Metrics(p profile.Profile) map[string]float64 {
	out := map[string]float64{}
	t := p.TractionMetrics
	// No MRR history is extracted; assume a 20% month-over-month rate when MRR exists.
	if profile.Value(t.MRR, 0) > 0 {
		out[MetricMRRGrowth] = 20
	}
	if cac, ltv := profile.Value(t.CAC, 0), profile.Value(t.LTV, 0); cac > 0 && ltv > 0 {
		out[MetricLTVCAC] = ltv / cac
	}
	if t.ChurnRate != nil {
		out[MetricChurn] = *t.ChurnRate
	}
	// ARR growth is approximated as 10% of ARR.
	if burn, arrGrowth := profile.Value(p.Financials.BurnRate, 0), profile.Value(t.ARR, 0)*0.1; burn > 0 && arrGrowth > 0 {
		out[MetricBurnMultiple] = burn / arrGrowth
	}
	return out
}

// Rank places each metric that has a benchmark.
func Rank(metrics map[string]float64, benchmarks map[string]Benchmark) map[string]Ranking {
	out := map[string]Ranking{}
	for name, value := range metrics {
		b, ok := benchmarks[name]
		if !ok {
			continue
		}
		out[name] = Ranking{Value: value, Percentile: b.Percentile(value), Benchmark: b}
	}
	return out
}

// OverallScore is the weight-normalized mean of percentile/100 over the
// ranked metrics, or 0.5 when nothing could be ranked.
func OverallScore(rankings map[string]Ranking) float64 {
	weighted, total := 0.0, 0.0
	for _, m := range metricWeights {
		r, ok := rankings[m.name]
		if !ok {
			continue
		}
		weighted += r.Percentile / 100 * m.weight
		total += m.weight
	}
	if total == 0 {
		return defaultOverallScore
	}
	return weighted / total
}
