// Package storage implements the object store over a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/zzkuner/fileonline/internal/domain/model"
)

// Backend is one concrete object location. Unlike repository.ObjectStore it is
// bound to a single descriptor.
type Backend interface {
	Kind() model.BackendKind
	// Put stores body under key. size is the body length, or -1 when unknown.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
