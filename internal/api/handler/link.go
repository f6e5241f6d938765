package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zzkuner/fileonline/internal/usecase"
)

type CreateLinkRequest struct {
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type LinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

type RevokeLinkRequest struct {
	Path    string `json:"path"`
	Expires int64  `json:"expires"`
}

// LinkHandler issues and revokes object links.
type LinkHandler struct {
	svc usecase.FileService
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc usecase.FileService) *LinkHandler {
	return &LinkHandler{svc: svc}
}

// Create handles POST /v1/links
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Key == "" {
		Error(w, http.StatusBadRequest, "invalid_key", "Key is required")
		return
	}
	if req.TTLSeconds < 0 {
		Error(w, http.StatusBadRequest, "invalid_ttl", "TTL must not be negative")
		return
	}

	link, err := h.svc.Link(r.Context(), req.Key, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, LinkResponse{
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Revoke handles POST /v1/links/revoke
func (h *LinkHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Path == "" || req.Expires <= 0 {
		Error(w, http.StatusBadRequest, "invalid_request", "Path and expires are required")
		return
	}

	if err := h.svc.Revoke(r.Context(), req.Path, req.Expires); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
