package ocr

import (
	"context"
	"strings"
)

// Transcriber is the subset of the LLM client the vision engine needs.
type Transcriber interface {
	Transcribe(ctx context.Context, image []byte, mediaType string) (string, error)
}

// VisionEngine asks a vision-capable chat model to transcribe the image.
type VisionEngine struct {
	client Transcriber
}

// NewVisionEngine wraps a transcription client.
func NewVisionEngine(client Transcriber) *VisionEngine {
	return &VisionEngine{client: client}
}

func (e *VisionEngine) Name() string { return EngineVision }

// Recognize sends the image to the model and returns its transcription.
func (e *VisionEngine) Recognize(ctx context.Context, in Input) (string, error) {
	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}

	text, err := e.client.Transcribe(ctx, in.Image, mediaType)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", recognizeError(EngineVision, err)
	}
	return normalize(stripFences(text)), nil
}

// stripFences removes a Markdown code fence the model may wrap output in.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if len(t) < 6 || !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") {
		return text
	}
	t = t[3 : len(t)-3]
	// Drop an info string such as ```text
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		return t[i+1:]
	}
	return t
}
