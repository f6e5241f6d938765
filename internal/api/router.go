// Package api assembles the HTTP surface of the API process.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zzkuner/fileonline/internal/api/handler"
	"github.com/zzkuner/fileonline/internal/api/middleware"
	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/usecase"
)

// RouterConfig holds what the router needs beyond its handlers.
type RouterConfig struct {
	APIKey         string
	MaxUploadBytes int64
	ReadyChecks    map[string]handler.Check
}

// NewRouter mounts the delivery gateway, the internal /v1 API and the
// operational endpoints.
func NewRouter(logger *slog.Logger, gateway http.Handler, files usecase.FileService, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(cfg.ReadyChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Method(http.MethodGet, capability.RoutePrefix+"*", gateway)
	r.Method(http.MethodHead, capability.RoutePrefix+"*", gateway)

	fileHandler := handler.NewFileHandler(files, cfg.MaxUploadBytes)
	linkHandler := handler.NewLinkHandler(files)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey))

		r.Post("/files", fileHandler.Upload)
		r.Get("/files/{id}/status", fileHandler.Status)
		r.Post("/files/{id}/reprocess", fileHandler.Reprocess)
		r.Delete("/objects", fileHandler.DeleteObject)

		r.Post("/links", linkHandler.Create)
		r.Post("/links/revoke", linkHandler.Revoke)
	})

	return r
}
