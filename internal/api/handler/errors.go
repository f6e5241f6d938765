package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/storage"
	"github.com/zzkuner/fileonline/internal/usecase"
)

// handleServiceError maps service errors to responses. Messages are fixed
// strings; the wrapped error is only logged.
func handleServiceError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		Error(w, http.StatusNotFound, "not_found", "No transcode job exists for this file")
	case errors.Is(err, repository.ErrObjectNotFound):
		Error(w, http.StatusNotFound, "not_found", "Object not found")
	case errors.Is(err, repository.ErrInvalidKey), errors.Is(err, repository.ErrPathTraversal):
		Error(w, http.StatusBadRequest, "invalid_key", "Object key is invalid")
	case errors.Is(err, usecase.ErrInvalidOwner):
		Error(w, http.StatusBadRequest, "invalid_owner_id", "Owner ID must be a single path segment")
	case errors.Is(err, usecase.ErrInvalidLinkTTL), errors.Is(err, storage.ErrInvalidTTL):
		Error(w, http.StatusBadRequest, "invalid_ttl", "TTL must not be negative")
	case errors.Is(err, usecase.ErrNotReprocessable):
		Error(w, http.StatusConflict, "not_reprocessable", "Only files whose latest job failed can be reprocessed")
	case errors.Is(err, repository.ErrDuplicateJob), errors.Is(err, model.ErrInvalidTransition):
		Error(w, http.StatusConflict, "conflict", "The job changed concurrently")
	case errors.As(err, &tooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit")
	case errors.Is(err, capability.ErrRevocationUnsupported):
		Error(w, http.StatusNotImplemented, "not_supported", "Link revocation is not enabled")
	case errors.Is(err, repository.ErrStorageUnavailable),
		errors.Is(err, repository.ErrBackendNotConfigured),
		errors.Is(err, capability.ErrDenylistUnavailable):
		slog.Error("dependency unavailable", "error", err)
		Error(w, http.StatusServiceUnavailable, "unavailable", "A dependency is temporarily unavailable")
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
