package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/usecase"
)

func TestLinkHandler_Create(t *testing.T) {
	expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		linkErr        error
		wantStatusCode int
		wantTTL        time.Duration
	}{
		{"explicit ttl", `{"key":"users/u/f/a.mp4","ttl_seconds":600}`, nil, http.StatusCreated, 10 * time.Minute},
		{"default ttl", `{"key":"users/u/f/a.mp4"}`, nil, http.StatusCreated, 0},
		{"negative ttl", `{"key":"a","ttl_seconds":-1}`, nil, http.StatusBadRequest, 0},
		{"missing key", `{"ttl_seconds":60}`, nil, http.StatusBadRequest, 0},
		{"invalid json", `{`, nil, http.StatusBadRequest, 0},
		{"invalid key", `{"key":"../x"}`, repository.ErrPathTraversal, http.StatusBadRequest, 0},
		{"backend not configured", `{"key":"a"}`, repository.ErrBackendNotConfigured, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTTL time.Duration
			mock := &mockFileService{
				linkFn: func(ctx context.Context, key string, ttl time.Duration) (*usecase.Link, error) {
					gotTTL = ttl
					if tt.linkErr != nil {
						return nil, tt.linkErr
					}
					return &usecase.Link{URL: "http://gw.test/objects/" + key + "?expires=1&token=ab", ExpiresAt: expires}, nil
				},
			}
			h := NewLinkHandler(mock)

			req := httptest.NewRequest(http.MethodPost, "/v1/links", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Create(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Fatalf("status code: got %d, want %d, body: %s", rec.Code, tt.wantStatusCode, rec.Body.String())
			}
			if rec.Code != http.StatusCreated {
				return
			}
			if gotTTL != tt.wantTTL {
				t.Errorf("ttl: got %v, want %v", gotTTL, tt.wantTTL)
			}
			var resp LinkResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.ExpiresAt != "2026-05-01T10:00:00Z" || !strings.HasPrefix(resp.URL, "http://gw.test/objects/") {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestLinkHandler_Revoke(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		revokeErr      error
		wantStatusCode int
	}{
		{"revoked", `{"path":"users/u/f/a.mp4","expires":1900000000}`, nil, http.StatusNoContent},
		{"missing path", `{"expires":1900000000}`, nil, http.StatusBadRequest},
		{"missing expires", `{"path":"a"}`, nil, http.StatusBadRequest},
		{"denylist disabled", `{"path":"a","expires":1}`, capability.ErrRevocationUnsupported, http.StatusNotImplemented},
		{"denylist down", `{"path":"a","expires":1}`, capability.ErrDenylistUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mock := &mockFileService{
				revokeFn: func(ctx context.Context, path string, expires int64) error {
					called = true
					return tt.revokeErr
				},
			}
			h := NewLinkHandler(mock)

			req := httptest.NewRequest(http.MethodPost, "/v1/links/revoke", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Revoke(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatusCode)
			}
			if rec.Code == http.StatusBadRequest && called {
				t.Error("service must not be called for an invalid request")
			}
		})
	}
}
