// Package app wires configuration into a ready-to-use converter.
package app

import (
	"context"
	"net/http"
	"os"

	"github.com/spherical/doc-converter/internal/api"
	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/encode"
	"github.com/spherical/doc-converter/internal/extract"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/ocr"
	"github.com/spherical/doc-converter/internal/source"
)

// App holds the long-lived services built from one configuration.
type App struct {
	Config     *config.Config
	Logger     *observability.Logger
	Dispatcher *convert.Dispatcher
	Audit      *audit.Logger
	OCREngine  string
}

// NewLogger builds the logger described by cfg, writing to stderr.
func NewLogger(cfg config.ObservabilityConfig) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Output:      os.Stderr,
		ServiceName: cfg.ServiceName,
	})
}

// New builds every service. A nil logger is derived from cfg.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = NewLogger(cfg.Observability)
	}

	engine, err := ocr.New(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	engineName := ocr.EngineNone
	if engine != nil {
		engineName = engine.Name()
	}

	auditLogger, err := audit.Open(ctx, cfg.Audit, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := convert.New(convert.Options{
		Loader: source.NewLoader(cfg.Limits.MaxUploadBytes),
		Text: extract.NewTextService(extract.TextOptions{
			Engine:      engine,
			Languages:   cfg.OCR.Languages,
			OCRFallback: cfg.OCR.Fallback,
			DPI:         cfg.OCR.DPI,
			Logger:      logger,
		}),
		Tables: extract.NewTableService(extract.TableOptions{
			MinColumnGap: cfg.Tables.MinColumnGap,
			MinRows:      cfg.Tables.MinRows,
			Logger:       logger,
		}),
		Slides: encode.NewSlidesEncoder(cfg.Slides.TitleFormat, cfg.Slides.MaxBodyRunes),
		Audit:  auditLogger,
		Logger: logger,
	})

	logger.Debug().
		Str("ocr", engineName).
		Str("audit", cfg.Audit.Sink).
		Msg("Converter initialized")

	return &App{
		Config:     cfg,
		Logger:     logger,
		Dispatcher: dispatcher,
		Audit:      auditLogger,
		OCREngine:  engineName,
	}, nil
}

// Router returns the HTTP API for this app.
func (a *App) Router() http.Handler {
	deps := api.Dependencies{
		Config:    a.Config,
		Converter: a.Dispatcher,
		OCREngine: a.OCREngine,
		Logger:    a.Logger,
	}
	if a.Config.Audit.Sink != "" && a.Config.Audit.Sink != "none" {
		deps.Events = a.Audit
		deps.Ready = func(ctx context.Context) error {
			_, err := a.Audit.Recent(ctx, 1)
			return err
		}
	}
	return api.NewRouter(deps)
}

// Close releases the audit sink.
func (a *App) Close() error {
	return a.Audit.Close()
}
