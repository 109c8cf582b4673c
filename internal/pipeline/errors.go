package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotCompleted = errors.New("run not completed")
	ErrNotRunnable  = errors.New("run is not runnable")
)

const (
	ErrorCodeLLMTimeout      = "LLM_TIMEOUT"
	ErrorCodeLLM             = "LLM_ERROR"
	ErrorCodeStorage         = "STORAGE_ERROR"
	ErrorCodeUnsupportedKind = "UNSUPPORTED_KIND"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

// StageError is returned by Run when a stage fails. The run has already been
// checkpointed in the error state when it is returned.
type StageError struct {
	Stage Stage
	Code  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
