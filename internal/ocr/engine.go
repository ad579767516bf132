// Package ocr recognizes text in raster images.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical/doc-converter/internal/domain"
)

// Input is a single image submitted for recognition.
type Input struct {
	// Image is the encoded image payload (PNG, JPEG, ...).
	Image []byte
	// MediaType declares the payload type, e.g. image/png.
	MediaType string
	// DPI is the effective resolution; zero means unknown.
	DPI int
	// Languages are trained-data hints such as "eng" or "deu".
	Languages []string
}

// Engine turns an image into plain text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (string, error)
}

// Names of the supported engines.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
	EngineNone      = "none"
)

// ErrNoEngine is returned when a conversion needs OCR but none is configured.
var ErrNoEngine = domain.ConfigError("no OCR engine configured", nil)

// normalize trims recognizer output the same way for every engine.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func recognizeError(engine string, err error) error {
	return fmt.Errorf("%s: %w", engine, err)
}
