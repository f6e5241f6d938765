package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
)

// JobCache caches the latest transcode job of a file.
// Implementations should handle serialization/deserialization transparently.
type JobCache interface {
	// Get retrieves the cached latest job for a file.
	// Returns nil, nil on cache miss.
	Get(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)

	// Set stores the latest job for its file with the specified TTL.
	Set(ctx context.Context, job *model.TranscodeJob, ttl time.Duration) error

	// Delete removes the cached job for a file.
	// Returns nil if nothing was cached.
	Delete(ctx context.Context, fileID uuid.UUID) error
}
