// Package delivery implements the range-aware object delivery gateway.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
	"github.com/zzkuner/fileonline/internal/infrastructure/storage"
	"github.com/zzkuner/fileonline/internal/mimetype"
)

const (
	backendNone   = "none"
	// s3DefaultType is what S3 reports for objects stored without a type.
	s3DefaultType = "binary/octet-stream"
)

// BackendResolver returns the backend in effect for one request.
type BackendResolver interface {
	Backend(ctx context.Context) (storage.Backend, error)
}

// TokenVerifier checks a capability for a path.
type TokenVerifier interface {
	Verify(ctx context.Context, path, expires, signature string) error
}

// Config tunes the gateway.
type Config struct {
	// PresignTTL is the lifetime of the presigned URL used for each proxied
	// remote request. It only needs to outlive the upstream handshake.
	PresignTTL time.Duration
	// UpstreamHeaderTimeout bounds the wait for the remote backend's
	// response headers. The body stream is bounded by the client request.
	UpstreamHeaderTimeout time.Duration
}

// Gateway serves GET and HEAD /objects/{key}?expires=..&token=..
// It is safe for concurrent use.
type Gateway struct {
	backends   BackendResolver
	verifier   TokenVerifier
	client     *http.Client
	presignTTL time.Duration
}

// New creates a Gateway.
func New(backends BackendResolver, verifier TokenVerifier, cfg Config) *Gateway {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 5 * time.Minute
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.UpstreamHeaderTimeout
	// Byte ranges must reach the client as stored.
	transport.DisableCompression = true

	return &Gateway{
		backends: backends,
		verifier: verifier,
		client: &http.Client{
			Transport: transport,
			// Presigned URLs never redirect; a redirect would leak the
			// client's request to an unexpected host.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		presignTTL: cfg.PresignTTL,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		g.fail(w, backendNone, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET and HEAD are supported")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, capability.RoutePrefix)
	if err := storage.ValidateKey(key); err != nil {
		if errors.Is(err, repository.ErrPathTraversal) {
			slog.Warn("path traversal rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			g.fail(w, backendNone, http.StatusForbidden, "forbidden", "Access denied")
			return
		}
		g.fail(w, backendNone, http.StatusNotFound, "not_found", "Object not found")
		return
	}

	q := r.URL.Query()
	if !g.authorize(w, r, key, q.Get(capability.QueryExpires), q.Get(capability.QueryToken)) {
		return
	}

	backend, err := g.backends.Backend(r.Context())
	if err != nil {
		slog.Error("failed to resolve storage backend", "error", err)
		g.fail(w, backendNone, http.StatusServiceUnavailable, "unavailable", "Storage is temporarily unavailable")
		return
	}

	switch b := backend.(type) {
	case *storage.LocalBackend:
		g.serveLocal(w, r, b, key)
	case *storage.RemoteBackend:
		g.serveRemote(w, r, b, key)
	default:
		slog.Error("unsupported storage backend", "kind", backend.Kind())
		g.fail(w, backend.Kind().String(), http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// authorize writes the denial and returns false when the token does not
// grant access to key.
func (g *Gateway) authorize(w http.ResponseWriter, r *http.Request, key, expires, token string) bool {
	err := g.verifier.Verify(r.Context(), key, expires, token)
	switch {
	case err == nil:
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenValid).Inc()
		return true
	case errors.Is(err, capability.ErrTokenMissing):
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenMissing).Inc()
		g.fail(w, backendNone, http.StatusUnauthorized, "token_missing", "A signed link is required")
	case errors.Is(err, capability.ErrTokenExpired):
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenExpired).Inc()
		g.fail(w, backendNone, http.StatusGone, "token_expired", "This link has expired")
	case errors.Is(err, capability.ErrTokenRevoked):
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenRevoked).Inc()
		g.fail(w, backendNone, http.StatusForbidden, "forbidden", "Access denied")
	case errors.Is(err, capability.ErrTokenInvalid):
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenInvalid).Inc()
		g.fail(w, backendNone, http.StatusForbidden, "forbidden", "Access denied")
	default:
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.TokenError).Inc()
		slog.Error("token verification failed", "error", err)
		g.fail(w, backendNone, http.StatusServiceUnavailable, "unavailable", "Link verification is temporarily unavailable")
	}
	return false
}

func (g *Gateway) serveLocal(w http.ResponseWriter, r *http.Request, b *storage.LocalBackend, key string) {
	kind := b.Kind().String()

	f, err := b.OpenFile(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPathTraversal):
			slog.Warn("path traversal rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			g.fail(w, kind, http.StatusForbidden, "forbidden", "Access denied")
		case errors.Is(err, repository.ErrObjectNotFound):
			g.fail(w, kind, http.StatusNotFound, "not_found", "Object not found")
		default:
			slog.Error("failed to open local object", "error", err)
			g.fail(w, kind, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Error("failed to stat local object", "error", err)
		g.fail(w, kind, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", mimetype.ByName(key))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	rng, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		h.Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		g.fail(w, kind, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "Requested range is outside the object")
		return
	}

	if rng == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		g.copyBody(w, r, kind, http.StatusOK, f, size)
		return
	}

	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		slog.Error("failed to seek local object", "error", err)
		h.Del("Content-Type")
		g.fail(w, kind, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	h.Set("Content-Range", rng.contentRange(size))
	h.Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	g.copyBody(w, r, kind, http.StatusPartialContent, f, rng.length())
}

func (g *Gateway) serveRemote(w http.ResponseWriter, r *http.Request, b *storage.RemoteBackend, key string) {
	kind := b.Kind().String()

	presign := b.PresignedGetURL
	if r.Method == http.MethodHead {
		presign = b.PresignedHeadURL
	}
	presigned, err := presign(r.Context(), key, g.presignTTL)
	if err != nil {
		slog.Error("failed to presign remote object", "error", err)
		g.fail(w, kind, http.StatusServiceUnavailable, "unavailable", "Storage is temporarily unavailable")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, presigned, nil)
	if err != nil {
		slog.Error("failed to build upstream request", "error", err)
		g.fail(w, kind, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	if rh := r.Header.Get("Range"); rh != "" {
		req.Header.Set("Range", rh)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nobody is left to answer.
			return
		}
		slog.Error("remote backend unreachable", "error", err)
		g.fail(w, kind, http.StatusServiceUnavailable, "unavailable", "Storage is temporarily unavailable")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotFound:
		g.fail(w, kind, http.StatusNotFound, "not_found", "Object not found")
		return
	case http.StatusRequestedRangeNotSatisfiable:
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			w.Header().Set("Content-Range", cr)
		}
		g.fail(w, kind, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "Requested range is outside the object")
		return
	default:
		slog.Error("unexpected upstream status", "status", resp.StatusCode)
		g.fail(w, kind, http.StatusBadGateway, "bad_gateway", "Storage returned an unexpected response")
		return
	}

	h := w.Header()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == mimetype.Default || contentType == s3DefaultType {
		contentType = mimetype.ByName(key)
	}
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")
	for _, name := range []string{"Content-Length", "Content-Range", "Last-Modified"} {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	g.copyBody(w, r, kind, resp.StatusCode, resp.Body, -1)
}

// copyBody streams n bytes (all when n < 0) for GET requests and records
// the response.
func (g *Gateway) copyBody(w http.ResponseWriter, r *http.Request, kind string, code int, src io.Reader, n int64) {
	var written int64
	if r.Method != http.MethodHead {
		var err error
		if n >= 0 {
			written, err = io.CopyN(w, src, n)
		} else {
			written, err = io.Copy(w, src)
		}
		if err != nil && !isClientGone(r, err) {
			slog.Warn("object stream interrupted", "error", err, "written", written)
		}
	}
	g.observe(kind, code, written)
}

func (g *Gateway) observe(kind string, code int, written int64) {
	metrics.DeliveryRequestsTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	if written > 0 {
		metrics.DeliveryBytesTotal.WithLabelValues(kind).Add(float64(written))
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// fail writes a JSON error. Messages are fixed strings so backend details
// never reach the client.
func (g *Gateway) fail(w http.ResponseWriter, kind string, status int, code, message string) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
	g.observe(kind, status, 0)
}

func isClientGone(r *http.Request, err error) bool {
	return r.Context().Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.Canceled)
}
