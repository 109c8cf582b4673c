package llm

import (
	"context"
	"errors"
)

// Client completes a text prompt. Implementations are asked for JSON output.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// MediaClient answers an instruction about an inline binary payload such as
// an image or an audio recording.
type MediaClient interface {
	CompleteMedia(ctx context.Context, instruction string, data []byte, mimeType string) (string, error)
}

// ErrNotConfigured is returned when no provider is wired.
var ErrNotConfigured = errors.New("llm provider not configured")

// Unconfigured satisfies Client and MediaClient and always fails. Workers
// treat the failure like any other and fall back to their defaults.
type Unconfigured struct{}

// Complete returns ErrNotConfigured.
func (Unconfigured) Complete(ctx context.Context, prompt string) (string, error) {
	return "", ErrNotConfigured
}

// CompleteMedia returns ErrNotConfigured.
func (Unconfigured) CompleteMedia(ctx context.Context, instruction string, data []byte, mimeType string) (string, error) {
	return "", ErrNotConfigured
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
