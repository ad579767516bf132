// Package api exposes the converter over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/doc-converter/internal/api/handlers"
	"github.com/spherical/doc-converter/internal/api/middleware"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Config    *config.Config
	Converter handlers.Converter
	Events    handlers.EventSource // nil hides /api/v1/events
	OCREngine string
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *observability.Logger
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	logger = logger.WithOperation("http")

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.TraceID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"doc-converter"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]string{"status": "ready", "ocr": deps.OCREngine}
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				resp["status"] = "unavailable"
				resp["detail"] = err.Error()
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	conversionHandler := handlers.NewConversionHandler(logger, deps.Converter)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.Limits.RequestsPerMinute))

		r.Get("/conversions", conversionHandler.ListPairs)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.ThrottleBacklog(cfg.Limits.MaxConcurrent, cfg.Limits.MaxConcurrent*4, cfg.Limits.RequestTimeout))
			r.Use(chimiddleware.Timeout(cfg.Limits.RequestTimeout))
			r.Use(middleware.MaxBodyBytes(uploadLimit(cfg)))
			r.Post("/convert", conversionHandler.Convert)
		})

		if deps.Events != nil {
			eventsHandler := handlers.NewEventsHandler(logger, deps.Events)
			r.Get("/events", eventsHandler.Recent)
		}
	})

	return r
}

// uploadLimit leaves room for multipart framing around the document itself.
func uploadLimit(cfg *config.Config) int64 {
	return cfg.Limits.MaxUploadBytes + 1<<20
}
