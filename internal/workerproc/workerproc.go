// Package workerproc decodes run messages and hands them to the pipeline.
// It is shared by the long-polling worker and the SQS-triggered lambda.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"athena-backend/internal/pipeline"
	"athena-backend/internal/queue"
)

// Processor executes a checkpointed submission.
type Processor interface {
	Process(ctx context.Context, id, requestID string) (pipeline.Run, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingSubmissionID indicates a message without a submission id.
type ErrMissingSubmissionID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingSubmissionID) Error() string { return "missing submission id" }

// ErrProcess indicates the run could not be executed after the message parsed.
type ErrProcess struct {
	SubmissionID string
	RequestID    string
	Err          error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process run"
	}
	return "process run: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Retryable reports whether redelivering the message could succeed. A run
// that failed a stage is already checkpointed as failed and is never retried.
func (e ErrProcess) Retryable() bool {
	var stageErr *pipeline.StageError
	switch {
	case errors.As(e.Err, &stageErr):
		return false
	case errors.Is(e.Err, pipeline.ErrNotRunnable), errors.Is(e.Err, pipeline.ErrNotFound):
		return false
	default:
		return true
	}
}

// Retryable reports whether err returned by HandleMessage warrants redelivery.
func Retryable(err error) bool {
	var procErr ErrProcess
	if errors.As(err, &procErr) {
		return procErr.Retryable()
	}
	return false
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.SubmissionID) == "" {
		return msg, meta, ErrMissingSubmissionID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses, validates and processes a message payload.
func HandleMessage(ctx context.Context, p Processor, body string) error {
	if p == nil {
		return errors.New("pipeline not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return Process(ctx, p, msg)
}

// Process runs an already decoded message.
func Process(ctx context.Context, p Processor, msg queue.Message) error {
	if p == nil {
		return errors.New("pipeline not configured")
	}
	if _, err := p.Process(ctx, msg.SubmissionID, msg.RequestID); err != nil {
		return ErrProcess{SubmissionID: msg.SubmissionID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
