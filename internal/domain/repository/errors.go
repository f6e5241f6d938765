package repository

import "errors"

var (
	// ErrObjectNotFound is returned when no object exists under a key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorageUnavailable is returned when the remote backend cannot be reached.
	// Callers may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageIO is returned for local filesystem faults (permissions, disk full).
	ErrStorageIO = errors.New("storage I/O error")

	// ErrPathTraversal is returned when a key resolves outside the storage root.
	ErrPathTraversal = errors.New("path escapes storage root")

	// ErrInvalidKey is returned for empty or malformed object keys.
	ErrInvalidKey = errors.New("invalid object key")

	// ErrBackendNotConfigured is returned by a backend provider that has no descriptor.
	ErrBackendNotConfigured = errors.New("storage backend not configured")

	// ErrJobNotFound is returned when a transcode job cannot be found.
	ErrJobNotFound = errors.New("transcode job not found")

	// ErrDuplicateJob is returned when attempting to create a job that already
	// exists, or a second PENDING or PROCESSING job for the same file.
	ErrDuplicateJob = errors.New("transcode job already exists")
)
