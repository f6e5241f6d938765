package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/transcoder"
)

// mockJobRepository provides a configurable mock for JobRepository.
type mockJobRepository struct {
	createFn            func(ctx context.Context, job *model.TranscodeJob) error
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error)
	getLatestByFileIDFn func(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)
	claimFn             func(ctx context.Context, id uuid.UUID) (bool, error)
	markReadyFn         func(ctx context.Context, id uuid.UUID, processedPath string) error
	markFailedFn        func(ctx context.Context, id uuid.UUID, reason string) error
	failStaleFn         func(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

func (m *mockJobRepository) Create(ctx context.Context, job *model.TranscodeJob) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrJobNotFound
}

func (m *mockJobRepository) GetLatestByFileID(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	if m.getLatestByFileIDFn != nil {
		return m.getLatestByFileIDFn(ctx, fileID)
	}
	return nil, repository.ErrJobNotFound
}

func (m *mockJobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, id)
	}
	return true, nil
}

func (m *mockJobRepository) MarkReady(ctx context.Context, id uuid.UUID, processedPath string) error {
	if m.markReadyFn != nil {
		return m.markReadyFn(ctx, id, processedPath)
	}
	return nil
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, id, reason)
	}
	return nil
}

func (m *mockJobRepository) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	if m.failStaleFn != nil {
		return m.failStaleFn(ctx, cutoff, reason)
	}
	return 0, nil
}

// mockObjectStore provides a configurable mock for ObjectStore.
type mockObjectStore struct {
	putFn    func(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	urlForFn func(ctx context.Context, key string, ttl time.Duration) (string, error)
	openFn   func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, key, body, size, contentType)
	}
	return key, nil
}

func (m *mockObjectStore) URLFor(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.urlForFn != nil {
		return m.urlForFn(ctx, key, ttl)
	}
	return "http://example.com/" + key, nil
}

func (m *mockObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.openFn != nil {
		return m.openFn(ctx, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishTranscodeTaskFn  func(ctx context.Context, task repository.TranscodeTask) error
	consumeTranscodeTasksFn func(ctx context.Context, handler func(ctx context.Context, task repository.TranscodeTask) error) error
}

func (m *mockMessageQueue) PublishTranscodeTask(ctx context.Context, task repository.TranscodeTask) error {
	if m.publishTranscodeTaskFn != nil {
		return m.publishTranscodeTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeTranscodeTasks(ctx context.Context, handler func(ctx context.Context, task repository.TranscodeTask) error) error {
	if m.consumeTranscodeTasksFn != nil {
		return m.consumeTranscodeTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockTranscoder provides a configurable mock for Transcoder.
type mockTranscoder struct {
	transcodeToHLSFn func(ctx context.Context, inputPath, outputDir string) (*transcoder.HLSOutput, error)
}

func (m *mockTranscoder) TranscodeToHLS(ctx context.Context, inputPath, outputDir string) (*transcoder.HLSOutput, error) {
	if m.transcodeToHLSFn != nil {
		return m.transcodeToHLSFn(ctx, inputPath, outputDir)
	}
	return nil, transcoder.ErrTranscodeFailed
}

// mockJobCache provides a configurable mock for JobCache.
type mockJobCache struct {
	mu          sync.Mutex
	getFn       func(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)
	setFn       func(ctx context.Context, job *model.TranscodeJob, ttl time.Duration) error
	deleteFn    func(ctx context.Context, fileID uuid.UUID) error
	deleteCalls []uuid.UUID
}

func (m *mockJobCache) Get(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	if m.getFn != nil {
		return m.getFn(ctx, fileID)
	}
	return nil, nil
}

func (m *mockJobCache) Set(ctx context.Context, job *model.TranscodeJob, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, job, ttl)
	}
	return nil
}

func (m *mockJobCache) Delete(ctx context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, fileID)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, fileID)
	}
	return nil
}

// mockRevoker provides a configurable mock for Revoker.
type mockRevoker struct {
	revokeFn func(ctx context.Context, path string, expires int64) error
}

func (m *mockRevoker) Revoke(ctx context.Context, path string, expires int64) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, path, expires)
	}
	return nil
}
