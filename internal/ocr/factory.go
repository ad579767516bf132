package ocr

import (
	"fmt"

	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/llm"
	"github.com/spherical/doc-converter/internal/observability"
)

// New builds the engine selected in cfg. The "none" engine yields a nil Engine.
func New(cfg config.OCRConfig, logger *observability.Logger) (Engine, error) {
	switch cfg.Engine {
	case EngineTesseract, "":
		return NewTesseractEngine(cfg.Languages...), nil
	case EngineVision:
		client, err := llm.NewClient(llm.Options{
			APIKey:     cfg.Vision.APIKey,
			Model:      cfg.Vision.Model,
			BaseURL:    cfg.Vision.BaseURL,
			Timeout:    cfg.Vision.Timeout,
			MaxRetries: cfg.Vision.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return NewVisionEngine(client), nil
	case EngineNone:
		return nil, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown OCR engine %q", cfg.Engine), nil)
	}
}
