package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
)

// JobRepository persists transcode job records.
// Every transition is a single conditional write: it only applies when the
// record is still in the expected source status.
type JobRepository interface {
	// Create persists a new PENDING job.
	Create(ctx context.Context, job *model.TranscodeJob) error

	// GetByID retrieves a job by its unique identifier.
	// Returns nil and ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error)

	// GetLatestByFileID returns the most recent job for a file.
	// Returns nil and ErrJobNotFound if the file has no jobs.
	GetLatestByFileID(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)

	// Claim moves a PENDING job to PROCESSING. It returns false when the job
	// exists but is not PENDING.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkReady moves a PROCESSING job to READY and records processedPath.
	MarkReady(ctx context.Context, id uuid.UUID, processedPath string) error

	// MarkFailed moves a PROCESSING job to FAILED with a reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// FailStale marks PROCESSING jobs not updated since before cutoff as FAILED
	// and returns how many were affected.
	FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}
