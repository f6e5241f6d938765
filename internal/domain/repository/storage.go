package repository

import (
	"context"
	"io"
	"time"

	"github.com/zzkuner/fileonline/internal/domain/model"
)

// ObjectStore is the backend-agnostic object store used by writers, the
// transcode pipeline and link issuers. Implementations resolve the active
// backend on every call.
type ObjectStore interface {
	// Put writes the full body under key and returns the key. size is the
	// body length in bytes, or -1 when unknown.
	// An existing object under key is replaced.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)

	// URLFor returns a retrievable reference valid for ttl. Every call
	// produces a new URL.
	URLFor(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Open returns a stream over the object's bytes.
	// Caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// BackendProvider resolves the storage backend descriptor currently in effect.
// The operator can change it at any time, so callers must not hold on to the
// result beyond a single operation.
type BackendProvider interface {
	Current(ctx context.Context) (model.StorageBackend, error)
}
