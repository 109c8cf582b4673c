package object

import (
	"context"
	"io"
)

// ObjectStore saves and retrieves submitted documents and derived artifacts.
type ObjectStore interface {
	// Save writes r under namespace with a randomized file name and sniffs its MIME type.
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// SaveWithKey writes r at an exact storage key, replacing any previous object.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
