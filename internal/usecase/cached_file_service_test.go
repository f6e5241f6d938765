package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
)

func TestCachedFileService_GetStatus_CacheHit(t *testing.T) {
	fileID := uuid.New()
	cached := &model.TranscodeJob{ID: uuid.New(), FileID: fileID, Status: model.StatusReady}

	jobs := &mockJobRepository{
		getLatestByFileIDFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) {
			t.Error("database must not be queried on a cache hit")
			return nil, nil
		},
	}
	jobCache := &mockJobCache{
		getFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) { return cached, nil },
	}

	svc := NewCachedFileService(newTestFileService(jobs, &mockObjectStore{}, &mockMessageQueue{}), jobCache, DefaultCachedFileServiceConfig())

	got, err := svc.GetStatus(context.Background(), fileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != cached.ID {
		t.Errorf("got job %v, want %v", got.ID, cached.ID)
	}
	if got == cached {
		t.Error("callers must receive a copy of the cached value")
	}
}

func TestCachedFileService_GetStatus_CacheMiss(t *testing.T) {
	fileID := uuid.New()
	job := &model.TranscodeJob{ID: uuid.New(), FileID: fileID, Status: model.StatusProcessing}

	var setTTL time.Duration
	var setJob *model.TranscodeJob
	jobs := &mockJobRepository{
		getLatestByFileIDFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) { return job, nil },
	}
	jobCache := &mockJobCache{
		setFn: func(ctx context.Context, j *model.TranscodeJob, ttl time.Duration) error {
			setJob, setTTL = j, ttl
			return nil
		},
	}

	cfg := CachedFileServiceConfig{StatusTTL: 3 * time.Second}
	svc := NewCachedFileService(newTestFileService(jobs, &mockObjectStore{}, &mockMessageQueue{}), jobCache, cfg)

	got, err := svc.GetStatus(context.Background(), fileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusProcessing {
		t.Errorf("status = %s", got.Status)
	}
	if setJob != job || setTTL != 3*time.Second {
		t.Errorf("cache Set(%v, %v)", setJob, setTTL)
	}
}

func TestCachedFileService_GetStatus_CacheErrorsFallBack(t *testing.T) {
	fileID := uuid.New()
	job := &model.TranscodeJob{ID: uuid.New(), FileID: fileID, Status: model.StatusFailed}

	jobs := &mockJobRepository{
		getLatestByFileIDFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) { return job, nil },
	}
	jobCache := &mockJobCache{
		getFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) {
			return nil, errors.New("redis down")
		},
		setFn: func(ctx context.Context, j *model.TranscodeJob, ttl time.Duration) error {
			return errors.New("redis down")
		},
	}

	svc := NewCachedFileService(newTestFileService(jobs, &mockObjectStore{}, &mockMessageQueue{}), jobCache, DefaultCachedFileServiceConfig())

	got, err := svc.GetStatus(context.Background(), fileID)
	if err != nil || got.ID != job.ID {
		t.Errorf("GetStatus() = %v, %v", got, err)
	}
}

func TestCachedFileService_GetStatus_NotFoundNotCached(t *testing.T) {
	jobCache := &mockJobCache{
		setFn: func(ctx context.Context, j *model.TranscodeJob, ttl time.Duration) error {
			t.Error("a miss must not be cached")
			return nil
		},
	}
	svc := NewCachedFileService(newTestFileService(&mockJobRepository{}, &mockObjectStore{}, &mockMessageQueue{}), jobCache, DefaultCachedFileServiceConfig())

	if _, err := svc.GetStatus(context.Background(), uuid.New()); !errors.Is(err, repository.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestCachedFileService_GetStatus_Singleflight(t *testing.T) {
	fileID := uuid.New()
	job := &model.TranscodeJob{ID: uuid.New(), FileID: fileID, Status: model.StatusPending}

	var dbCalls atomic.Int32
	release := make(chan struct{})
	jobs := &mockJobRepository{
		getLatestByFileIDFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) {
			dbCalls.Add(1)
			<-release
			return job, nil
		},
	}

	svc := NewCachedFileService(newTestFileService(jobs, &mockObjectStore{}, &mockMessageQueue{}), &mockJobCache{}, DefaultCachedFileServiceConfig())

	const callers = 10
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for range callers {
		go func() {
			defer done.Done()
			started.Done()
			if _, err := svc.GetStatus(context.Background(), fileID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if n := dbCalls.Load(); n >= callers {
		t.Errorf("db calls = %d, expected concurrent polls to be coalesced", n)
	}
}

func TestCachedFileService_Reprocess_Invalidates(t *testing.T) {
	fileID := uuid.New()
	failed := &model.TranscodeJob{ID: uuid.New(), FileID: fileID, SourceKey: "k.mp4", Status: model.StatusFailed}

	jobs := &mockJobRepository{
		getLatestByFileIDFn: func(ctx context.Context, id uuid.UUID) (*model.TranscodeJob, error) { return failed, nil },
	}
	jobCache := &mockJobCache{}

	svc := NewCachedFileService(newTestFileService(jobs, &mockObjectStore{}, &mockMessageQueue{}), jobCache, DefaultCachedFileServiceConfig())

	job, err := svc.Reprocess(context.Background(), fileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != model.StatusPending {
		t.Errorf("status = %s", job.Status)
	}
	if len(jobCache.deleteCalls) != 1 || jobCache.deleteCalls[0] != fileID {
		t.Errorf("deleteCalls = %v", jobCache.deleteCalls)
	}
}
