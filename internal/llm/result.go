package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Result is the outcome of an inference-backed call: either the decoded
// value or the caller's documented default with the reason it was used.
type Result[T any] struct {
	Value     T
	Defaulted bool
	Err       error
}

// OK wraps a decoded value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Default wraps a fallback value together with the error that caused it.
func Default[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Defaulted: true, Err: err}
}

// ErrNoJSON is reported when a completion contains no JSON object.
var ErrNoJSON = errors.New("no json object in completion")

// DecodeJSON decodes the first JSON object or array in raw into a fresh T.
// Markdown code fences and leading prose are tolerated. On failure def is
// returned, never a partially filled value.
func DecodeJSON[T any](raw string, def T) Result[T] {
	payload := extractJSON(raw)
	if payload == "" {
		return Default(def, ErrNoJSON)
	}
	var out T
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return Default(def, fmt.Errorf("decode completion: %w", err))
	}
	return OK(out)
}

// Ask completes prompt with client and decodes the answer, substituting def
// on any transport or parse failure. A nil client yields def.
func Ask[T any](ctx context.Context, client Client, prompt string, def T) Result[T] {
	if client == nil {
		return Default(def, ErrNotConfigured)
	}
	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return Default(def, err)
	}
	return DecodeJSON(raw, def)
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}
