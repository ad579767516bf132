// Package converter is the public Go API of doc-converter.
package converter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spherical/doc-converter/internal/app"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

// Re-export domain types for the public API
type (
	SourceKind = domain.SourceKind
	TargetKind = domain.TargetKind
	Result     = domain.ConversionResult
	Options    = domain.ConversionOptions
	Pair       = domain.ConversionPair
	Config     = config.Config
	Error      = domain.DomainError
	ErrorType  = domain.ErrorType
)

// Source and target kinds
const (
	SourceImage  = domain.SourceImage
	SourcePDF    = domain.SourcePDF
	TargetText   = domain.TargetText
	TargetWord   = domain.TargetWord
	TargetPDF    = domain.TargetPDF
	TargetSheet  = domain.TargetSheet
	TargetSlides = domain.TargetSlides
)

// Errors match with errors.Is.
var (
	ErrUnsupportedConversion = domain.ErrUnsupportedConversion
	ErrUnreadableDocument    = domain.ErrUnreadableDocument
	ErrNoTableFound          = domain.ErrNoTableFound
	ErrEncodingFailure       = domain.ErrEncodingFailure
)

// Client is the main entry point for the converter library
type Client struct {
	app *app.App
}

// NewClient creates a client from cfg. A nil cfg uses the defaults with
// logging disabled.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	logger := observability.Nop()
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		logger = app.NewLogger(cfg.Observability)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{app: a}, nil
}

// NewClientFromEnv loads configuration from CONFIG_PATH (optional), .env and
// the environment.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cfg)
}

// DefaultConfig returns the default configuration for callers to adjust.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Convert reads the file at path and converts it. The source kind is detected.
func (c *Client) Convert(ctx context.Context, path string, target TargetKind) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ValidationError("input file not found", err)
		}
		return nil, domain.IOError("read input", err)
	}
	return c.ConvertBytes(ctx, filepath.Base(path), data, target)
}

// ConvertBytes converts an in-memory document. name is used for the suggested
// file name and may be empty.
func (c *Client) ConvertBytes(ctx context.Context, name string, data []byte, target TargetKind) (*Result, error) {
	return c.ConvertWithOptions(ctx, name, data, "", target, Options{})
}

// ConvertWithOptions is ConvertBytes with an explicit source kind ("" detects
// it) and per-request options.
func (c *Client) ConvertWithOptions(ctx context.Context, name string, data []byte, src SourceKind, target TargetKind, opts Options) (*Result, error) {
	return c.app.Dispatcher.Convert(ctx, domain.ConversionRequest{
		SourceKind: src,
		TargetKind: target,
		SourceName: name,
		Data:       data,
		Options:    opts,
	})
}

// SupportedPairs lists the supported conversions.
func SupportedPairs() []Pair {
	return convert.SupportedPairs()
}

// Close releases the audit sink.
func (c *Client) Close() error {
	return c.app.Close()
}
