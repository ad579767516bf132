// Package llm talks to an OpenRouter-compatible chat completions endpoint and
// is used to transcribe page images with a vision model.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "google/gemini-2.5-flash"
)

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// MaxRetries is the number of extra attempts on 429/5xx. Zero disables retries.
	MaxRetries int
	Logger     *observability.Logger
	HTTPClient *http.Client
}

// Client handles communication with the chat completions API
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	retries    int
	backoff    backoff
	logger     *observability.Logger
	httpClient *http.Client
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

// Response represents the API response structure
type Response struct {
	ID      string       `json:"id"`
	Choices []Choice     `json:"choices"`
	Error   *streamError `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.ConfigError("vision OCR requires an API key", nil)
	}
	if opts.MaxRetries < 0 {
		return nil, domain.ConfigError("max retries must not be negative", nil)
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:     opts.APIKey,
		model:      model,
		endpoint:   baseURL + "/chat/completions",
		retries:    opts.MaxRetries,
		backoff:    defaultBackoff,
		logger:     logger.WithOperation("vision_ocr"),
		httpClient: httpClient,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Transcribe sends one image and returns the streamed transcription. Rate
// limits, 5xx responses and dropped streams are retried up to MaxRetries times.
func (c *Client) Transcribe(ctx context.Context, image []byte, mediaType string) (string, error) {
	body, err := json.Marshal(c.buildRequest(image, mediaType))
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	return c.withRetries(ctx, func(ctx context.Context) (string, error) {
		return c.transcribeOnce(ctx, body)
	})
}

// transcribeOnce performs a single request and reads its stream.
func (c *Client) transcribeOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", permanent(domain.APIError("Failed to build request", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/spherical/doc-converter")
	httpReq.Header.Set("X-Title", "Document Converter")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transient(domain.APIError("Failed to send request", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := statusError(resp.StatusCode, detail)
		if transientStatus(resp.StatusCode) {
			return "", transient(err)
		}
		return "", permanent(err)
	}

	text, err := readTranscript(resp.Body)
	if err != nil {
		return "", transient(domain.APIError("Failed to read stream", err))
	}
	return text, nil
}

// buildRequest constructs the API request with the image inlined as a data URL
func (c *Client) buildRequest(image []byte, mediaType string) *Request {
	if mediaType == "" {
		mediaType = "image/png"
	}
	imageURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: transcriptionPrompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{msg},
		Stream:   true,
	}
}

const transcriptionPrompt = `Transcribe all text visible in this image exactly as written.

RULES:
- Output ONLY the transcribed text, no commentary, no headings you invented
- Preserve reading order and line breaks
- Do not translate, summarize or correct spelling
- Do not use Markdown or code fences
- If the image contains no text, output nothing (empty response)`
