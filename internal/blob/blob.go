// Package blob abstracts the content-addressed object store the core writes
// encrypted payloads and backup archives to. The production implementation
// targets any S3-compatible backend; an in-memory implementation backs tests.
package blob

import (
	"context"
	"io"
	"time"
)

// PutResult describes a stored object.
type PutResult struct {
	Key      string
	Size     int64
	Location string
}

// Store is the narrow object-storage interface consumed by the core.
type Store interface {
	// Put uploads data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) (*PutResult, error)

	// PutReader streams size bytes from r under key. The source must be
	// seekable so a failed upload can rewind and retry.
	PutReader(ctx context.Context, key string, r io.ReadSeeker, size int64) (*PutResult, error)

	// Get downloads the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL issues a presigned GET URL for key, valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
