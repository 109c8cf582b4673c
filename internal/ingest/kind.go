package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"athena-backend/internal/extract"
)

// Kind is the broad type of a submitted document.
type Kind string

const (
	KindDocument Kind = "document"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
)

// ErrUnsupportedKind is returned for submissions that are not a document, image or recording.
var ErrUnsupportedKind = errors.New("unsupported kind")

var extensionKinds = map[string]Kind{
	".pdf":  KindDocument,
	".docx": KindDocument,
	".pptx": KindDocument,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".m4a":  KindAudio,
}

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

// AllowedContentTypes lists the upload content types accepted by the front door.
var AllowedContentTypes = map[string]Kind{
	extract.MimePDF:  KindDocument,
	extract.MimeDOCX: KindDocument,
	extract.MimePPTX: KindDocument,
	"image/jpeg":     KindImage,
	"image/png":      KindImage,
	"audio/mpeg":     KindAudio,
	"audio/wav":      KindAudio,
	"audio/x-wav":    KindAudio,
	"audio/mp4":      KindAudio,
}

// ParseKind validates a kind received from a caller or a queue message.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindDocument, KindImage, KindAudio:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, raw)
	}
}

// DetectKind infers the kind from the file extension, then the content type.
func DetectKind(fileName, contentType string) (Kind, error) {
	if k, ok := extensionKinds[strings.ToLower(filepath.Ext(fileName))]; ok {
		return k, nil
	}
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if k, ok := AllowedContentTypes[clean]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: file=%q content_type=%q", ErrUnsupportedKind, fileName, contentType)
}

func mediaTypeFor(ref string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(ref))]; ok {
		return mt
	}
	return "application/octet-stream"
}
