package usecase

import (
	"context"
	"errors"

	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/transcoder"
)

// Pipeline steps named in a failed job's reason.
const (
	stepWorkspace = "prepare workspace"
	stepDownload  = "download source"
	stepTranscode = "transcode"
	stepUpload    = "upload output"
)

// stepError tags a pipeline error with the step that produced it.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

// failureReason is the error message persisted on a FAILED job and returned
// by the status endpoint. It names the step and a fixed cause class; paths,
// bucket names and backend error text stay in the worker log.
func failureReason(err error) string {
	step := "process"
	var se *stepError
	if errors.As(err, &se) {
		step = se.step
	}
	return step + ": " + failureClass(err)
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, transcoder.ErrTranscodeTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, transcoder.ErrTranscodeFailed):
		return "transcode failed"
	case errors.Is(err, repository.ErrObjectNotFound):
		return "object not found"
	case errors.Is(err, repository.ErrBackendNotConfigured):
		return "storage backend not configured"
	case errors.Is(err, repository.ErrStorageUnavailable):
		return "storage unavailable"
	case errors.Is(err, repository.ErrStorageIO):
		return "storage I/O error"
	default:
		return "internal error"
	}
}
