package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/mimetype"
)

var (
	// ErrNotReprocessable is returned when the latest job of a file is not FAILED.
	ErrNotReprocessable = errors.New("file is not in a reprocessable state")
	// ErrInvalidOwner is returned for an owner id that is not a single key segment.
	ErrInvalidOwner = errors.New("invalid owner id")
	// ErrInvalidLinkTTL is returned for a negative link lifetime.
	ErrInvalidLinkTTL = errors.New("link ttl must not be negative")
)

// UploadInput contains the input parameters for storing a file.
type UploadInput struct {
	OwnerID     string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadOutput contains the result of storing a file.
type UploadOutput struct {
	FileID      uuid.UUID
	Key         string
	ContentType string
	// Job is the PENDING transcode job for video uploads, nil otherwise.
	Job *model.TranscodeJob
}

// Link is a retrievable reference to an object.
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// Revoker denylists an issued gateway token.
type Revoker interface {
	Revoke(ctx context.Context, path string, expires int64) error
}

// FileService defines the file operations exposed to collaborators.
type FileService interface {
	// Upload stores a file and, for video, enqueues a transcode job.
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)

	// GetStatus returns the latest transcode job of a file.
	GetStatus(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)

	// Reprocess enqueues a new job for a file whose latest job FAILED.
	Reprocess(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)

	// Link issues a reference to key valid for ttl. Zero selects the default
	// lifetime; longer requests are clamped to the maximum.
	Link(ctx context.Context, key string, ttl time.Duration) (*Link, error)

	// Revoke denylists a gateway token before its expiry.
	Revoke(ctx context.Context, path string, expires int64) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// FileServiceConfig holds configuration for FileService.
type FileServiceConfig struct {
	DefaultLinkTTL time.Duration
	MaxLinkTTL     time.Duration
}

// DefaultFileServiceConfig returns the default configuration.
func DefaultFileServiceConfig() FileServiceConfig {
	return FileServiceConfig{
		DefaultLinkTTL: time.Hour,
		MaxLinkTTL:     24 * time.Hour,
	}
}

type fileService struct {
	jobs    repository.JobRepository
	store   repository.ObjectStore
	queue   repository.MessageQueue
	revoker Revoker

	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewFileService creates a new FileService instance.
func NewFileService(
	jobs repository.JobRepository,
	store repository.ObjectStore,
	queue repository.MessageQueue,
	revoker Revoker,
	cfg FileServiceConfig,
) FileService {
	return &fileService{
		jobs:       jobs,
		store:      store,
		queue:      queue,
		revoker:    revoker,
		defaultTTL: cfg.DefaultLinkTTL,
		maxTTL:     cfg.MaxLinkTTL,
		now:        time.Now,
	}
}

func (s *fileService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	if !isSegment(input.OwnerID) {
		return nil, ErrInvalidOwner
	}

	fileID := uuid.New()
	key := originalKey(input.OwnerID, fileID, input.FileName)

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" || contentType == mimetype.Default {
		contentType = mimetype.ByName(input.FileName)
	}

	key, err := s.store.Put(ctx, key, input.Body, -1, contentType)
	if err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	out := &UploadOutput{
		FileID:      fileID,
		Key:         key,
		ContentType: contentType,
	}
	if !mimetype.IsVideo(input.FileName, contentType) {
		return out, nil
	}

	job, err := s.enqueue(ctx, fileID, key)
	if err != nil {
		return nil, err
	}
	out.Job = job
	return out, nil
}

func (s *fileService) GetStatus(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	return s.jobs.GetLatestByFileID(ctx, fileID)
}

func (s *fileService) Reprocess(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	latest, err := s.jobs.GetLatestByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !latest.IsFailed() {
		return nil, ErrNotReprocessable
	}
	return s.enqueue(ctx, fileID, latest.SourceKey)
}

// enqueue creates a PENDING job and publishes its task. The record exists
// before the message so a fast worker always finds it.
func (s *fileService) enqueue(ctx context.Context, fileID uuid.UUID, sourceKey string) (*model.TranscodeJob, error) {
	job, err := model.NewTranscodeJob(fileID, sourceKey)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	task := repository.TranscodeTask{
		JobID:     job.ID,
		FileID:    fileID,
		SourceKey: sourceKey,
	}
	if err := s.queue.PublishTranscodeTask(ctx, task); err != nil {
		return nil, fmt.Errorf("publish transcode task: %w", err)
	}
	return job, nil
}

func (s *fileService) Link(ctx context.Context, key string, ttl time.Duration) (*Link, error) {
	switch {
	case ttl < 0:
		return nil, ErrInvalidLinkTTL
	case ttl == 0:
		ttl = s.defaultTTL
	case ttl > s.maxTTL:
		ttl = s.maxTTL
	}

	issuedAt := s.now()
	url, err := s.store.URLFor(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return &Link{URL: url, ExpiresAt: issuedAt.Add(ttl)}, nil
}

func (s *fileService) Revoke(ctx context.Context, path string, expires int64) error {
	return s.revoker.Revoke(ctx, path, expires)
}

func (s *fileService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// originalKey creates the storage key for an uploaded file.
// Format: users/{owner}/{file_id}/original{ext}
func originalKey(owner string, fileID uuid.UUID, filename string) string {
	return path.Join("users", owner, fileID.String(), "original"+sourceExt(filename))
}

func isSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}
