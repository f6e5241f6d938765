package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/usecase"
)

// Multipart field names for uploads. owner_id must precede file.
const (
	FormOwnerID = "owner_id"
	FormFile    = "file"
)

const maxOwnerIDLength = 128

// Request/Response types

type UploadResponse struct {
	FileID      string `json:"file_id"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	JobID       string `json:"job_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

type StatusResponse struct {
	FileID        string `json:"file_id"`
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	ProcessedPath string `json:"processed_path,omitempty"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// FileHandler handles file-related HTTP requests.
type FileHandler struct {
	svc            usecase.FileService
	maxUploadBytes int64
}

// NewFileHandler creates a new FileHandler. A non-positive maxUploadBytes
// disables the size limit.
func NewFileHandler(svc usecase.FileService, maxUploadBytes int64) *FileHandler {
	return &FileHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Upload handles POST /v1/files
//
// The file part is streamed straight to storage, so owner_id has to be sent
// before it.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Body must be multipart/form-data")
		return
	}

	var ownerID string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			Error(w, http.StatusBadRequest, "missing_file", "A file part is required")
			return
		}
		if err != nil {
			handleMultipartError(w, err)
			return
		}

		switch part.FormName() {
		case FormOwnerID:
			value, err := io.ReadAll(io.LimitReader(part, maxOwnerIDLength+1))
			_ = part.Close()
			if err != nil {
				handleMultipartError(w, err)
				return
			}
			if len(value) > maxOwnerIDLength {
				Error(w, http.StatusBadRequest, "invalid_owner_id", "Owner ID is too long")
				return
			}
			ownerID = strings.TrimSpace(string(value))

		case FormFile:
			defer part.Close()
			if ownerID == "" {
				Error(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be sent before the file")
				return
			}
			h.store(w, r, ownerID, part.FileName(), part.Header.Get("Content-Type"), part)
			return

		default:
			_ = part.Close()
		}
	}
}

func (h *FileHandler) store(w http.ResponseWriter, r *http.Request, ownerID, fileName, contentType string, body io.Reader) {
	if fileName == "" {
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name is required")
		return
	}

	out, err := h.svc.Upload(r.Context(), usecase.UploadInput{
		OwnerID:     ownerID,
		FileName:    fileName,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := UploadResponse{
		FileID:      out.FileID.String(),
		Key:         out.Key,
		ContentType: out.ContentType,
	}
	if out.Job != nil {
		resp.JobID = out.Job.ID.String()
		resp.Status = out.Job.Status.String()
	}
	JSON(w, http.StatusCreated, resp)
}

func handleMultipartError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit")
		return
	}
	Error(w, http.StatusBadRequest, "invalid_request", "Malformed multipart body")
}

// Status handles GET /v1/files/{id}/status
func (h *FileHandler) Status(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseFileID(w, r)
	if !ok {
		return
	}

	job, err := h.svc.GetStatus(r.Context(), fileID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toStatusResponse(job))
}

// Reprocess handles POST /v1/files/{id}/reprocess
func (h *FileHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	fileID, ok := parseFileID(w, r)
	if !ok {
		return
	}

	job, err := h.svc.Reprocess(r.Context(), fileID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, toStatusResponse(job))
}

// DeleteObject handles DELETE /v1/objects?key=...
func (h *FileHandler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		Error(w, http.StatusBadRequest, "invalid_key", "Query parameter key is required")
		return
	}

	if err := h.svc.Delete(r.Context(), key); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseFileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	fileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_file_id", "File ID must be a valid UUID")
		return uuid.Nil, false
	}
	return fileID, true
}

func toStatusResponse(job *model.TranscodeJob) StatusResponse {
	return StatusResponse{
		FileID:        job.FileID.String(),
		JobID:         job.ID.String(),
		Status:        job.Status.String(),
		ProcessedPath: job.ProcessedPath,
		Error:         job.ErrorMessage,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}
}
