package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/cache"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
	"github.com/zzkuner/fileonline/internal/mimetype"
	"github.com/zzkuner/fileonline/internal/transcoder"
)

const (
	// workspacePrefix names per-job directories under the worker temp dir.
	workspacePrefix = "job-"

	// terminalWriteTimeout bounds the final status write, which runs even
	// after the consumer context is cancelled.
	terminalWriteTimeout = 10 * time.Second

	staleReason = "worker stopped while processing"

	defaultTransferTimeout = 30 * time.Minute
)

// TranscodeServiceConfig holds configuration for TranscodeService.
type TranscodeServiceConfig struct {
	// TempDir is the base directory for per-job workspaces.
	TempDir string
	// Timeout bounds a single encoder run.
	Timeout time.Duration
	// TransferTimeout bounds the source download and, separately, the whole
	// output upload. Zero means the default.
	TransferTimeout time.Duration
	// StaleGrace is added to the longest possible run before a PROCESSING
	// job is presumed orphaned by RecoverStale.
	StaleGrace time.Duration
}

// DefaultTranscodeServiceConfig returns the default configuration.
func DefaultTranscodeServiceConfig() TranscodeServiceConfig {
	return TranscodeServiceConfig{
		TempDir:         filepath.Join(os.TempDir(), "fileonline"),
		Timeout:         4 * time.Hour,
		TransferTimeout: defaultTransferTimeout,
		StaleGrace:      15 * time.Minute,
	}
}

// TranscodeService runs the transcode pipeline.
type TranscodeService interface {
	// ProcessTask runs one job: claim, download, transcode, upload, status
	// commit, cleanup. It returns nil once the job reaches a terminal state
	// or is not claimable, and an error only when the claim itself could not
	// be attempted, so the task should be redelivered.
	ProcessTask(ctx context.Context, task repository.TranscodeTask) error

	// SweepWorkspaces removes workspaces left by a previous process. Call it
	// before consuming tasks.
	SweepWorkspaces() (int, error)

	// RecoverStale fails jobs that have been PROCESSING for longer than any
	// live worker could keep them.
	RecoverStale(ctx context.Context) (int64, error)
}

type transcodeService struct {
	jobs       repository.JobRepository
	store      repository.ObjectStore
	transcoder transcoder.Transcoder
	cache      cache.JobCache

	tempDir         string
	timeout         time.Duration
	transferTimeout time.Duration
	staleGrace      time.Duration
	now             func() time.Time
}

// NewTranscodeService creates a new TranscodeService instance.
// jobCache may be nil.
func NewTranscodeService(
	jobs repository.JobRepository,
	store repository.ObjectStore,
	tc transcoder.Transcoder,
	jobCache cache.JobCache,
	cfg TranscodeServiceConfig,
) TranscodeService {
	transfer := cfg.TransferTimeout
	if transfer <= 0 {
		transfer = defaultTransferTimeout
	}
	return &transcodeService{
		jobs:            jobs,
		store:           store,
		transcoder:      tc,
		cache:           jobCache,
		tempDir:         cfg.TempDir,
		timeout:         cfg.Timeout,
		transferTimeout: transfer,
		staleGrace:      cfg.StaleGrace,
		now:             time.Now,
	}
}

// ProcessedPrefix is the key prefix holding a file's HLS output.
func ProcessedPrefix(fileID uuid.UUID) string {
	return path.Join("processed", fileID.String()) + "/"
}

func (s *transcodeService) ProcessTask(ctx context.Context, task repository.TranscodeTask) error {
	log := slog.With("job_id", task.JobID, "file_id", task.FileID)

	// A started job runs to its terminal write; shutdown waits for it.
	ctx = context.WithoutCancel(ctx)

	claimed, err := s.jobs.Claim(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			log.Warn("transcode task references unknown job, dropping")
			metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeSkipped).Inc()
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Info("job is not pending, skipping duplicate delivery")
		metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeSkipped).Inc()
		return nil
	}
	s.invalidate(ctx, log, task.FileID)

	start := s.now()
	log.Info("transcode started", "source_key", task.SourceKey)

	manifestKey, runErr := s.run(ctx, log, task)
	s.commit(ctx, log, task, manifestKey, runErr)

	metrics.TranscodeDuration.Observe(s.now().Sub(start).Seconds())
	return nil
}

// run executes the pipeline steps in order. The workspace is removed on
// every path; a cleanup failure is logged and never changes the outcome.
// Every step runs under its own deadline.
func (s *transcodeService) run(ctx context.Context, log *slog.Logger, task repository.TranscodeTask) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", &stepError{step: stepWorkspace, err: err}
	}
	workDir, err := os.MkdirTemp(s.tempDir, workspacePrefix+task.JobID.String()+"-*")
	if err != nil {
		return "", &stepError{step: stepWorkspace, err: err}
	}
	defer s.cleanup(log, workDir)

	dctx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	inputPath, err := s.download(dctx, task.SourceKey, workDir)
	cancel()
	if err != nil {
		return "", &stepError{step: stepDownload, err: err}
	}

	outputDir := filepath.Join(workDir, "hls")
	if err := os.Mkdir(outputDir, 0o755); err != nil {
		return "", &stepError{step: stepWorkspace, err: err}
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	out, err := s.transcoder.TranscodeToHLS(tctx, inputPath, outputDir)
	cancel()
	if err != nil {
		return "", &stepError{step: stepTranscode, err: err}
	}

	uctx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	manifestKey, err := s.upload(uctx, ProcessedPrefix(task.FileID), out)
	cancel()
	if err != nil {
		return "", &stepError{step: stepUpload, err: err}
	}
	return manifestKey, nil
}

// commit performs the single terminal write for a claimed job.
func (s *transcodeService) commit(ctx context.Context, log *slog.Logger, task repository.TranscodeTask, manifestKey string, runErr error) {
	wctx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
	defer cancel()

	var err error
	if runErr == nil {
		err = s.jobs.MarkReady(wctx, task.JobID, manifestKey)
	} else {
		log.Error("transcode failed", "error", runErr)
		err = s.jobs.MarkFailed(wctx, task.JobID, failureReason(runErr))
	}

	switch {
	case err == nil && runErr == nil:
		log.Info("transcode completed", "processed_path", manifestKey)
		metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeReady).Inc()
	case err == nil:
		metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeFailed).Inc()
	case errors.Is(err, model.ErrInvalidTransition):
		// Stale recovery got there first; its FAILED stands.
		log.Warn("job left PROCESSING before the terminal write", "error", err)
		metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeFailed).Inc()
	default:
		// Redelivery cannot help once the job left PENDING. RecoverStale
		// fails it after the grace period.
		log.Error("failed to record job outcome", "error", err, "succeeded", runErr == nil)
		metrics.TranscodeJobsTotal.WithLabelValues(metrics.TranscodeFailed).Inc()
	}

	s.invalidate(wctx, log, task.FileID)
}

func (s *transcodeService) download(ctx context.Context, key, workDir string) (string, error) {
	reader, err := s.store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	localPath := filepath.Join(workDir, "source"+sourceExt(key))
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, nil
}

// upload publishes segments before the manifest and returns the manifest key.
func (s *transcodeService) upload(ctx context.Context, prefix string, out *transcoder.HLSOutput) (string, error) {
	for _, localPath := range out.Files() {
		name := filepath.Base(localPath)
		if err := s.uploadFile(ctx, localPath, prefix+name, mimetype.ByName(name)); err != nil {
			return "", fmt.Errorf("upload %s: %w", name, err)
		}
	}
	return prefix + filepath.Base(out.ManifestPath), nil
}

func (s *transcodeService) uploadFile(ctx context.Context, localPath, key, contentType string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if _, err := s.store.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return err
	}
	return nil
}

func (s *transcodeService) cleanup(log *slog.Logger, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		log.Error("failed to remove workspace", "workspace", workDir, "error", err)
	}
}

func (s *transcodeService) invalidate(ctx context.Context, log *slog.Logger, fileID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fileID); err != nil {
		log.Warn("failed to invalidate status cache", "error", err)
	}
}

func (s *transcodeService) SweepWorkspaces() (int, error) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace root: %w", err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspacePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.tempDir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *transcodeService) RecoverStale(ctx context.Context) (int64, error) {
	longestRun := s.timeout + 2*s.transferTimeout
	cutoff := s.now().Add(-(longestRun + s.staleGrace))
	n, err := s.jobs.FailStale(ctx, cutoff, staleReason)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return n, nil
}

// sourceExt keeps the source extension so the encoder can use it as a
// container hint.
func sourceExt(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
