package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/infrastructure/cache"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

// CachedFileServiceConfig holds configuration for the cached FileService.
type CachedFileServiceConfig struct {
	// StatusTTL bounds how long a polled status may be stale. Terminal
	// writes invalidate the entry, so it only matters when that fails.
	StatusTTL time.Duration
}

// DefaultCachedFileServiceConfig returns the default configuration.
func DefaultCachedFileServiceConfig() CachedFileServiceConfig {
	return CachedFileServiceConfig{StatusTTL: 5 * time.Second}
}

// cachedFileService wraps FileService with a status cache. Concurrent
// polls for one file share a single lookup.
type cachedFileService struct {
	FileService

	cache     cache.JobCache
	sfGroup   singleflight.Group
	statusTTL time.Duration
}

// NewCachedFileService creates a FileService that caches GetStatus.
func NewCachedFileService(
	delegate FileService,
	jobCache cache.JobCache,
	cfg CachedFileServiceConfig,
) FileService {
	return &cachedFileService{
		FileService: delegate,
		cache:       jobCache,
		statusTTL:   cfg.StatusTTL,
	}
}

func (s *cachedFileService) GetStatus(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	result, err, shared := s.sfGroup.Do(fileID.String(), func() (any, error) {
		return s.getStatusWithCache(ctx, fileID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	// Callers get their own copy; the shared value may be handed to others.
	job := *result.(*model.TranscodeJob)
	return &job, nil
}

// getStatusWithCache implements the cache-aside pattern.
func (s *cachedFileService) getStatusWithCache(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	job, err := s.cache.Get(ctx, fileID)
	if err != nil {
		slog.Warn("cache get failed, falling back to database",
			"file_id", fileID,
			"error", err,
		)
	}
	if job != nil {
		return job, nil
	}

	job, err = s.FileService.GetStatus(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, job, s.statusTTL); err != nil {
		slog.Warn("failed to cache job status",
			"file_id", fileID,
			"error", err,
		)
	}
	return job, nil
}

// Reprocess invalidates the cached status afterwards, so the next poll
// reports the new job rather than the old FAILED one.
func (s *cachedFileService) Reprocess(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	job, err := s.FileService.Reprocess(ctx, fileID)
	s.invalidate(ctx, fileID)
	return job, err
}

func (s *cachedFileService) invalidate(ctx context.Context, fileID uuid.UUID) {
	if err := s.cache.Delete(ctx, fileID); err != nil {
		slog.Warn("failed to invalidate status cache",
			"file_id", fileID,
			"error", err,
		)
	}
}
