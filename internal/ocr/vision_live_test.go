//go:build integration

package ocr

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/testutil"
)

func init() {
	_ = godotenv.Load("../../.env")
}

// TestVisionEngine_Live transcribes a rendered image through OpenRouter.
func TestVisionEngine_Live(t *testing.T) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		t.Skip("OPENROUTER_API_KEY not set")
	}

	cfg := config.DefaultConfig().OCR
	cfg.Engine = EngineVision
	cfg.Vision.APIKey = apiKey
	if model := os.Getenv("OCR_VISION_MODEL"); model != "" {
		cfg.Vision.Model = model
	}

	engine, err := New(cfg, observability.DefaultLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := engine.Recognize(ctx, Input{Image: testutil.TextPNG(t, "INVOICE 2041"), MediaType: "image/png"})
	require.NoError(t, err)
	t.Logf("Transcription: %q", text)
	assert.Contains(t, strings.ToUpper(text), "2041")
}
