// Package ingest turns a stored submission into raw and cleaned text.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"athena-backend/internal/extract"
	"athena-backend/internal/llm"
	"athena-backend/internal/shared/storage/object"
	"athena-backend/internal/shared/telemetry"
)

// Result is the ingestion stage output.
type Result struct {
	ContentType Kind   `json:"content_type"`
	RawText     string `json:"raw_text"`
	CleanedText string `json:"cleaned_text"`
	PageCount   int    `json:"page_count,omitempty"`
}

// Service reads submissions from the object store. Images and recordings
// are transcribed by the media client; all text is cleaned by the LLM.
type Service struct {
	store   object.ObjectStore
	cleaner llm.Client
	media   llm.MediaClient
}

// NewService builds an ingestion service. cleaner and media may be nil.
func NewService(store object.ObjectStore, cleaner llm.Client, media llm.MediaClient) *Service {
	return &Service{store: store, cleaner: cleaner, media: media}
}

// ExtractText reads the document at ref and returns its text.
func (s *Service) ExtractText(ctx context.Context, ref string, kind Kind) (Result, error) {
	var (
		raw   string
		pages int
		err   error
	)
	switch kind {
	case KindDocument:
		raw, pages, err = s.document(ctx, ref)
	case KindImage:
		raw, err = s.transcribe(ctx, ref, imageInstruction)
	case KindAudio:
		raw, err = s.transcribe(ctx, ref, audioInstruction)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		ContentType: kind,
		RawText:     raw,
		CleanedText: s.clean(ctx, raw),
		PageCount:   pages,
	}, nil
}

func (s *Service) document(ctx context.Context, ref string) (string, int, error) {
	text, err := extract.ExtractText(ctx, s.store, ref, "")
	if err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(text.Content) != "" || s.media == nil {
		return text.Content, text.PageCount, nil
	}

	// Scanned decks carry no text layer.
	ocr, err := s.transcribeAs(ctx, ref, extract.MimePDF, imageInstruction)
	if err != nil {
		telemetry.Warn("ingest.ocr_failed", map[string]any{"ref": ref, "error": err})
		return "", text.PageCount, nil
	}
	return ocr, text.PageCount, nil
}

func (s *Service) transcribe(ctx context.Context, ref, instruction string) (string, error) {
	return s.transcribeAs(ctx, ref, mediaTypeFor(ref), instruction)
}

func (s *Service) transcribeAs(ctx context.Context, ref, mimeType, instruction string) (string, error) {
	if s.media == nil {
		return "", fmt.Errorf("transcribe %s: %w", ref, llm.ErrNotConfigured)
	}
	rc, err := s.store.Open(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", ref, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ref, err)
	}

	reply, err := s.media.CompleteMedia(ctx, instruction, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", ref, err)
	}
	decoded := llm.DecodeJSON(reply, transcript{Text: strings.TrimSpace(reply)})
	return decoded.Value.Text, nil
}

func (s *Service) clean(ctx context.Context, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	res := llm.Ask(ctx, s.cleaner, fmt.Sprintf(cleanPrompt, raw), cleaned{CleanedText: raw})
	if res.Defaulted {
		telemetry.Warn("ingest.clean_defaulted", map[string]any{"error": res.Err})
		return raw
	}
	if strings.TrimSpace(res.Value.CleanedText) == "" {
		return raw
	}
	return res.Value.CleanedText
}

type transcript struct {
	Text string `json:"text"`
}

type cleaned struct {
	CleanedText string `json:"cleaned_text"`
}
