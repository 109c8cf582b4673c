package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"athena-backend/internal/extract"
	"athena-backend/internal/ingest"
	"athena-backend/internal/llm"
	"athena-backend/internal/profile"
	"athena-backend/internal/quant"
	"athena-backend/internal/queue"
	"athena-backend/internal/risk"
	"athena-backend/internal/shared/metrics"
	"athena-backend/internal/shared/telemetry"
	"athena-backend/internal/shared/util"
	"athena-backend/internal/synthesis"
)

const maxErrorMessageLen = 500

// DefaultStageTimeout bounds a single stage when no timeout is configured.
const DefaultStageTimeout = 10 * time.Minute

type (
	Ingester interface {
		ExtractText(ctx context.Context, ref string, kind ingest.Kind) (ingest.Result, error)
	}
	Extractor interface {
		Extract(ctx context.Context, text string) (profile.Profile, error)
	}
	Enricher interface {
		Enrich(ctx context.Context, p profile.Profile) (profile.Enriched, error)
	}
	Benchmarker interface {
		Benchmark(ctx context.Context, p profile.Enriched) (quant.Analysis, error)
	}
	RiskAssessor interface {
		AssessRisks(ctx context.Context, p profile.Enriched, q quant.Analysis) (risk.Analysis, error)
	}
	Synthesizer interface {
		Synthesize(ctx context.Context, p profile.Enriched, q quant.Analysis, r risk.Analysis) (synthesis.Result, error)
	}
)

// Workers are the per-stage collaborators.
type Workers struct {
	Ingest     Ingester
	Extract    Extractor
	Enrich     Enricher
	Quant      Benchmarker
	Risk       RiskAssessor
	Synthesize Synthesizer
}

// Options configures an Orchestrator.
type Options struct {
	Store        CheckpointStore
	Workers      Workers
	Sink         Sink
	Queue        queue.Client
	StageTimeout time.Duration
}

// Orchestrator drives runs through the stage sequence. It is the only writer
// for the runs it executes.
type Orchestrator struct {
	store        CheckpointStore
	workers      Workers
	sink         Sink
	queue        queue.Client
	stageTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator builds an orchestrator. A nil sink discards summaries and a
// nil queue runs submissions in-process.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	w := opts.Workers
	if w.Ingest == nil || w.Extract == nil || w.Enrich == nil || w.Quant == nil || w.Risk == nil || w.Synthesize == nil {
		return nil, errors.New("every stage worker is required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	timeout := opts.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Orchestrator{
		store:        opts.Store,
		workers:      w,
		sink:         sink,
		queue:        opts.Queue,
		stageTimeout: timeout,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// state accumulates the typed stage outputs of one run.
type state struct {
	sub       Submission
	text      ingest.Result
	profile   profile.Profile
	enriched  profile.Enriched
	quant     quant.Analysis
	risk      risk.Analysis
	synthesis synthesis.Result
}

func (s *state) record(v any) {
	switch out := v.(type) {
	case ingest.Result:
		s.text = out
	case profile.Profile:
		s.profile = out
	case profile.Enriched:
		s.enriched = out
	case quant.Analysis:
		s.quant = out
	case risk.Analysis:
		s.risk = out
	case synthesis.Result:
		s.synthesis = out
	}
}

func (o *Orchestrator) step(stage Stage) func(ctx context.Context, st *state) (any, error) {
	switch stage {
	case StageIngestion:
		return func(ctx context.Context, st *state) (any, error) {
			return o.workers.Ingest.ExtractText(ctx, st.sub.DocumentRef, st.sub.Kind)
		}
	case StageExtraction:
		return func(ctx context.Context, st *state) (any, error) {
			text := st.text.CleanedText
			if strings.TrimSpace(text) == "" {
				text = st.text.RawText
			}
			return o.workers.Extract.Extract(ctx, text)
		}
	case StageEnrichment:
		return func(ctx context.Context, st *state) (any, error) {
			return o.workers.Enrich.Enrich(ctx, st.profile)
		}
	case StageQuantitative:
		return func(ctx context.Context, st *state) (any, error) {
			return o.workers.Quant.Benchmark(ctx, st.enriched)
		}
	case StageRisk:
		return func(ctx context.Context, st *state) (any, error) {
			return o.workers.Risk.AssessRisks(ctx, st.enriched, st.quant)
		}
	case StageSynthesis:
		return func(ctx context.Context, st *state) (any, error) {
			return o.workers.Synthesize.Synthesize(ctx, st.enriched, st.quant, st.risk)
		}
	default:
		return func(context.Context, *state) (any, error) {
			return nil, fmt.Errorf("unknown stage %q", stage)
		}
	}
}

// Run executes a new submission to completion or failure.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (Run, error) {
	if strings.TrimSpace(sub.ID) == "" {
		sub.ID = uuid.NewString()
	}
	run := newRun(sub, o.now())
	if err := o.store.Save(ctx, run); err != nil {
		return run, fmt.Errorf("initial checkpoint: %w", err)
	}
	metrics.IncRunsStarted()
	return o.execute(llm.WithRequestID(ctx, sub.RequestID), run, sub)
}

// Process executes a submission that was checkpointed by Submit. Runs that
// already advanced or finished return ErrNotRunnable.
//
// The guard assumes a single writer per run id. A duplicate delivery that
// arrives while the first attempt is still inside ingestion sees no stage
// outputs and runs too; both attempts then race on the same checkpoints.
// FIFO queues dedup by run id, which is the only protection against that.
func (o *Orchestrator) Process(ctx context.Context, id, requestID string) (Run, error) {
	run, err := o.store.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	if run.Status != StatusProcessing || len(run.StageOutputs) > 0 {
		return run, fmt.Errorf("%w: id=%s status=%s stage=%s", ErrNotRunnable, id, run.Status, run.CurrentStage)
	}
	sub := Submission{
		ID:          run.ID,
		DocumentRef: run.DocumentRef,
		Kind:        run.DocumentKind,
		Metadata:    run.Metadata,
		RequestID:   requestID,
	}
	return o.execute(llm.WithRequestID(ctx, requestID), run, sub)
}

// Submit checkpoints the initial state so the run is visible to status
// polling immediately, then dispatches it to the queue or to a goroutine
// detached from ctx.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Run, error) {
	if strings.TrimSpace(sub.ID) == "" {
		sub.ID = uuid.NewString()
	}
	run := newRun(sub, o.now())
	if err := o.store.Save(ctx, run); err != nil {
		return Run{}, fmt.Errorf("initial checkpoint: %w", err)
	}
	metrics.IncRunsStarted()

	if o.queue != nil {
		msg := queue.Message{
			SubmissionID: run.ID,
			RequestID:    sub.RequestID,
			EnqueuedAt:   o.now().Format(time.RFC3339),
			Version:      queue.MessageVersion,
		}
		if err := o.queue.Send(ctx, msg); err != nil {
			failed, _ := o.fail(context.Background(), run, StageIngestion, fmt.Errorf("enqueue run: %w", err))
			return failed, err
		}
		telemetry.Info("run.enqueued", map[string]any{"run_id": run.ID, "request_id": sub.RequestID})
		return run, nil
	}

	go func() {
		_, _ = o.execute(llm.WithRequestID(context.Background(), sub.RequestID), run, sub)
	}()
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run Run, sub Submission) (Run, error) {
	started := o.now()
	st := &state{sub: sub}
	prev := Stage("submitted")

	for _, stage := range Stages {
		run.CurrentStage = stage
		if err := o.store.Save(ctx, run); err != nil {
			return o.fail(ctx, run, stage, fmt.Errorf("checkpoint before stage: %w", err))
		}
		o.logTransition(ctx, run, prev, stage, 0)

		stageStart := o.now()
		out, err := o.runStage(ctx, stage, st)
		elapsed := durationMs(stageStart, o.now())
		metrics.ObserveStageDurationMs(elapsed)
		if err != nil {
			return o.fail(ctx, run, stage, err)
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return o.fail(ctx, run, stage, fmt.Errorf("encode %s output: %w", stage, err))
		}
		st.record(out)
		run.StageOutputs[stage] = raw
		if err := o.store.Save(ctx, run); err != nil {
			return o.fail(ctx, run, stage, fmt.Errorf("checkpoint after stage: %w", err))
		}
		telemetry.Info("run.stage_completed", map[string]any{
			"request_id":  llm.RequestIDFromContext(ctx),
			"run_id":      run.ID,
			"stage":       string(stage),
			"duration_ms": elapsed,
		})
		prev = stage
	}

	completedAt := o.now()
	run.Status = StatusCompleted
	run.CurrentStage = StageCompleted
	run.CompletedAt = &completedAt

	if err := o.store.Save(ctx, run); err != nil {
		run.Status = StatusProcessing
		run.CompletedAt = nil
		return o.fail(ctx, run, StageSynthesis, fmt.Errorf("checkpoint completion: %w", err))
	}
	// The summary row is only written for runs whose completion is durable.
	o.emitSummary(ctx, run, st)
	metrics.IncRunsCompleted()
	metrics.ObserveRunDurationMs(durationMs(started, completedAt))
	o.logTransition(ctx, run, StageSynthesis, StageCompleted, durationMs(started, completedAt))
	return run, nil
}

// runStage invokes the stage worker under the stage deadline. A worker that
// panics or outlives the deadline fails the stage.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, st *state) (any, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	fn := o.step(stage)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := fn(stageCtx, st)
		done <- outcome{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && stageCtx.Err() != nil {
			return nil, stageCtx.Err()
		}
		return res.out, res.err
	case <-stageCtx.Done():
		return nil, stageCtx.Err()
	}
}

func (o *Orchestrator) emitSummary(ctx context.Context, run Run, st *state) {
	row := summaryRow(run.ID, st.enriched, string(st.synthesis.Recommendation.Decision),
		st.synthesis.InvestmentScore.FinalScore, run.StartedAt, o.now())
	if err := o.sink.Append(ctx, row); err != nil {
		metrics.IncSinkFailed()
		telemetry.Warn("run.sink_failed", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"run_id":     run.ID,
			"error":      sanitizeError(err),
		})
	}
}

// fail marks the run as errored at stage, writes a best-effort checkpoint
// and returns a *StageError.
func (o *Orchestrator) fail(ctx context.Context, run Run, stage Stage, cause error) (Run, error) {
	code := classifyFailure(cause)
	failedAt := o.now()
	run.Status = StatusError
	run.CurrentStage = stage
	run.FailedAt = &failedAt
	run.Error = &RunError{Stage: stage, Code: code, Message: sanitizeError(cause)}

	if err := o.store.Save(context.Background(), run); err != nil {
		telemetry.Error("run.checkpoint_failed", map[string]any{
			"run_id": run.ID,
			"stage":  string(stage),
			"error":  sanitizeError(err),
			"cause":  sanitizeError(cause),
		})
	}
	metrics.IncRunsFailed(string(stage))
	var duration float64
	if run.StartedAt != nil {
		duration = durationMs(*run.StartedAt, failedAt)
		metrics.ObserveRunDurationMs(duration)
	}
	telemetry.Error("run.status", map[string]any{
		"request_id":        llm.RequestIDFromContext(ctx),
		"run_id":            run.ID,
		"stage":             string(stage),
		"status":            string(StatusError),
		"status_transition": fmt.Sprintf("%s->%s", stage, StatusError),
		"error_code":        code,
		"error":             run.Error.Message,
		"duration_ms":       duration,
	})
	return run, &StageError{Stage: stage, Code: code, Err: cause}
}

func (o *Orchestrator) logTransition(ctx context.Context, run Run, from, to Stage, duration float64) {
	fields := map[string]any{
		"request_id":        llm.RequestIDFromContext(ctx),
		"run_id":            run.ID,
		"stage":             string(to),
		"status":            string(run.Status),
		"status_transition": fmt.Sprintf("%s->%s", from, to),
	}
	if duration > 0 {
		fields["duration_ms"] = duration
	}
	telemetry.Info("run.status", fields)
}

// Status returns the current checkpoint of a run.
func (o *Orchestrator) Status(ctx context.Context, id string) (Run, error) {
	if strings.TrimSpace(id) == "" {
		return Run{}, ErrNotFound
	}
	return o.store.Get(ctx, id)
}

// ListRecent returns the most recently started runs.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	return o.store.ListRecent(ctx, normalizeLimit(limit))
}

// Results returns the final payload of a completed run.
func (o *Orchestrator) Results(ctx context.Context, id string) (Results, error) {
	run, err := o.Status(ctx, id)
	if err != nil {
		return Results{}, err
	}
	raw, ok := run.StageOutputs[StageSynthesis]
	if run.Status != StatusCompleted || !ok {
		return Results{}, ErrNotCompleted
	}
	res := Results{SubmissionID: run.ID}
	if err := json.Unmarshal(raw, &res.Result); err != nil {
		return Results{}, fmt.Errorf("decode synthesis output for %s: %w", id, err)
	}
	return res, nil
}

func durationMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout
	}
	if errors.Is(err, ingest.ErrUnsupportedKind) || errors.Is(err, extract.ErrUnsupportedMime) {
		return ErrorCodeUnsupportedKind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "llm") || strings.Contains(msg, "openai") || strings.Contains(msg, "gemini")) {
		return ErrorCodeLLMTimeout
	}
	if strings.Contains(msg, "llm") || strings.Contains(msg, "openai") || strings.Contains(msg, "gemini") {
		return ErrorCodeLLM
	}
	if strings.Contains(msg, "checkpoint") || strings.Contains(msg, "storage") || strings.Contains(msg, "s3 ") || strings.Contains(msg, "enqueue") || strings.Contains(msg, "open") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return util.Truncate(err.Error(), maxErrorMessageLen)
}
