// Package pipeline runs a submission through the six analysis stages,
// checkpointing the accumulated state after every transition.
package pipeline

import (
	"encoding/json"
	"time"

	"athena-backend/internal/ingest"
	"athena-backend/internal/synthesis"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether s can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Stage names a pipeline step.
type Stage string

const (
	StageIngestion    Stage = "ingestion"
	StageExtraction   Stage = "extraction"
	StageEnrichment   Stage = "enrichment"
	StageQuantitative Stage = "quantitative_analysis"
	StageRisk         Stage = "risk_analysis"
	StageSynthesis    Stage = "synthesis"
	StageCompleted    Stage = "completed"
)

// Stages is the fixed execution order.
var Stages = []Stage{
	StageIngestion,
	StageExtraction,
	StageEnrichment,
	StageQuantitative,
	StageRisk,
	StageSynthesis,
}

// RunError records where and why a run failed.
type RunError struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is the checkpointed state of one analysis.
type Run struct {
	ID           string                    `json:"id"`
	Status       Status                    `json:"status"`
	CurrentStage Stage                     `json:"current_stage"`
	DocumentRef  string                    `json:"document_ref"`
	DocumentKind ingest.Kind               `json:"document_kind"`
	Metadata     map[string]any            `json:"metadata"`
	StageOutputs map[Stage]json.RawMessage `json:"stage_outputs"`
	Error        *RunError                 `json:"error,omitempty"`
	StartedAt    *time.Time                `json:"started_at,omitempty"`
	CompletedAt  *time.Time                `json:"completed_at,omitempty"`
	FailedAt     *time.Time                `json:"failed_at,omitempty"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// CompletedStages returns the stages with a recorded output, in order.
func (r Run) CompletedStages() []Stage {
	out := []Stage{}
	for _, st := range Stages {
		if _, ok := r.StageOutputs[st]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Submission is the input to a run.
type Submission struct {
	ID          string
	DocumentRef string
	Kind        ingest.Kind
	Metadata    map[string]any
	RequestID   string
}

// Summary is one row of the recent-runs listing.
type Summary struct {
	ID          string     `json:"submission_id"`
	CompanyName string     `json:"company_name"`
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Decision    string     `json:"recommendation"`
}

const (
	unknownCompany  = "Unknown"
	pendingDecision = "Pending"
)

// Results is the final payload of a completed run.
type Results struct {
	SubmissionID string `json:"submission_id"`
	synthesis.Result
}

func newRun(sub Submission, now time.Time) Run {
	started := now
	metadata := sub.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Run{
		ID:           sub.ID,
		Status:       StatusProcessing,
		CurrentStage: StageIngestion,
		DocumentRef:  sub.DocumentRef,
		DocumentKind: sub.Kind,
		Metadata:     metadata,
		StageOutputs: map[Stage]json.RawMessage{},
		StartedAt:    &started,
		UpdatedAt:    now,
	}
}

// summaryOf derives the listing row from the recorded stage outputs.
func summaryOf(r Run) Summary {
	s := Summary{
		ID:          r.ID,
		CompanyName: unknownCompany,
		Status:      r.Status,
		StartedAt:   r.StartedAt,
		Decision:    pendingDecision,
	}
	if raw, ok := r.StageOutputs[StageExtraction]; ok {
		var p struct {
			CompanyName string `json:"company_name"`
		}
		if json.Unmarshal(raw, &p) == nil && p.CompanyName != "" {
			s.CompanyName = p.CompanyName
		}
	}
	if raw, ok := r.StageOutputs[StageSynthesis]; ok {
		var out struct {
			Recommendation struct {
				Decision string `json:"decision"`
			} `json:"recommendation"`
		}
		if json.Unmarshal(raw, &out) == nil && out.Recommendation.Decision != "" {
			s.Decision = out.Recommendation.Decision
		}
	}
	return s
}

func cloneRun(r Run) Run {
	out := r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	out.StageOutputs = make(map[Stage]json.RawMessage, len(r.StageOutputs))
	for k, v := range r.StageOutputs {
		out.StageOutputs[k] = append(json.RawMessage(nil), v...)
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	out.StartedAt = cloneTime(r.StartedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.FailedAt = cloneTime(r.FailedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
