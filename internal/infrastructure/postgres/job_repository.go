package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobRepository implements repository.JobRepository using PostgreSQL.
// Transitions are conditional UPDATEs so two workers racing on one job
// cannot both apply.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository instance.
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, file_id, source_key, status, processed_path, error_message, created_at, updated_at`

// Create persists a new job.
func (r *JobRepository) Create(ctx context.Context, job *model.TranscodeJob) error {
	const query = `
		INSERT INTO transcode_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableTranscodeJobs).Inc()

	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.FileID,
		job.SourceKey,
		job.Status.String(),
		nullString(job.ProcessedPath),
		nullString(job.ErrorMessage),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateJob
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its unique identifier.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) {
	const query = `
		SELECT ` + jobColumns + `
		FROM transcode_jobs
		WHERE id = $1
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableTranscodeJobs).Inc()

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job by ID: %w", err)
	}

	return job, nil
}

// GetLatestByFileID returns the newest job for a file.
func (r *JobRepository) GetLatestByFileID(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	const query = `
		SELECT ` + jobColumns + `
		FROM transcode_jobs
		WHERE file_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableTranscodeJobs).Inc()

	job, err := scanJob(r.db.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get latest job: %w", err)
	}

	return job, nil
}

// Claim moves a PENDING job to PROCESSING.
func (r *JobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `
		UPDATE transcode_jobs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableTranscodeJobs).Inc()

	tag, err := r.db.Exec(ctx, query, id, model.StatusProcessing.String(), time.Now(), model.StatusPending.String())
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkReady moves a PROCESSING job to READY.
func (r *JobRepository) MarkReady(ctx context.Context, id uuid.UUID, processedPath string) error {
	const query = `
		UPDATE transcode_jobs
		SET status = $2, processed_path = $3, error_message = NULL, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableTranscodeJobs).Inc()

	tag, err := r.db.Exec(ctx, query, id, model.StatusReady.String(), processedPath, time.Now(), model.StatusProcessing.String())
	if err != nil {
		return fmt.Errorf("failed to mark job ready: %w", err)
	}
	return r.checkTransition(ctx, id, tag)
}

// MarkFailed moves a PROCESSING job to FAILED.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `
		UPDATE transcode_jobs
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableTranscodeJobs).Inc()

	tag, err := r.db.Exec(ctx, query, id, model.StatusFailed.String(), model.TruncateReason(reason), time.Now(), model.StatusProcessing.String())
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return r.checkTransition(ctx, id, tag)
}

// FailStale fails PROCESSING jobs whose last update is older than cutoff.
// A worker that died mid-job leaves such records behind.
func (r *JobRepository) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	const query = `
		UPDATE transcode_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE status = $4 AND updated_at < $5
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableTranscodeJobs).Inc()

	tag, err := r.db.Exec(ctx, query, model.StatusFailed.String(), model.TruncateReason(reason), time.Now(), model.StatusProcessing.String(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// checkTransition distinguishes a missing job from one in the wrong status
// when a conditional update matched nothing.
func (r *JobRepository) checkTransition(ctx context.Context, id uuid.UUID, tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrInvalidTransition
}

func scanJob(row pgx.Row) (*model.TranscodeJob, error) {
	var (
		job           model.TranscodeJob
		status        string
		processedPath *string
		errorMessage  *string
	)

	err := row.Scan(
		&job.ID,
		&job.FileID,
		&job.SourceKey,
		&status,
		&processedPath,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.Status(status)
	if processedPath != nil {
		job.ProcessedPath = *processedPath
	}
	if errorMessage != nil {
		job.ErrorMessage = *errorMessage
	}

	return &job, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that JobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*JobRepository)(nil)
