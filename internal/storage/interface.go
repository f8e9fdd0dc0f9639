package storage

import (
	"context"
	"io"
	"time"
)

// BlobStorage defines the interface for video object storage
type BlobStorage interface {
	// Store saves content at the given key
	Store(ctx context.Context, key string, content io.Reader, contentType string) error

	// Retrieve gets content from the given key
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// RetrieveRange streams exactly end-start+1 bytes of the object, both
	// bounds inclusive. The returned reader must be consumed incrementally;
	// implementations do not buffer the whole range.
	RetrieveRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Delete removes content at the given key
	Delete(ctx context.Context, key string) error

	// Exists checks if content exists at the given key
	Exists(ctx context.Context, key string) (bool, error)

	// GetSize returns the byte length of the object via a metadata probe
	GetSize(ctx context.Context, key string) (int64, error)

	// PresignUpload returns a URL a client can PUT the object to directly,
	// along with its expiry time
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, time.Time, error)
}
