package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs recognition through a gosseract client per call.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed engine. Languages are used
// when an Input carries none.
func NewTesseractEngine(languages ...string) *TesseractEngine {
	return &TesseractEngine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize performs OCR on a single image.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return "", recognizeError(EngineTesseract, fmt.Errorf("set image: %w", err))
	}

	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return "", recognizeError(EngineTesseract, fmt.Errorf("set languages: %w", err))
		}
	}

	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return "", recognizeError(EngineTesseract, fmt.Errorf("set dpi: %w", err))
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", recognizeError(EngineTesseract, fmt.Errorf("recognize text: %w", err))
	}
	return normalize(text), nil
}
