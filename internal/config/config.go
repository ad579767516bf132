// Package config provides unified configuration loading for the converter.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/doc-converter/internal/domain"
)

// Config holds all configuration for the converter.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Limits        LimitsConfig        `yaml:"limits"`
	OCR           OCRConfig           `yaml:"ocr"`
	Tables        TablesConfig        `yaml:"tables"`
	Slides        SlidesConfig        `yaml:"slides"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	CORSOrigins      []string      `yaml:"cors_origins"`
}

// LimitsConfig bounds the work a single request may cause.
type LimitsConfig struct {
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// OCRConfig selects and tunes the OCR engine.
type OCRConfig struct {
	Engine    string       `yaml:"engine"` // tesseract, vision or none
	Languages []string     `yaml:"languages"`
	DPI       float64      `yaml:"dpi"`
	Fallback  bool         `yaml:"fallback"` // OCR PDF pages with an empty text layer
	Vision    VisionConfig `yaml:"vision"`
}

// VisionConfig holds settings for the vision-model OCR engine.
type VisionConfig struct {
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// TablesConfig tunes table detection.
type TablesConfig struct {
	MinColumnGap float64 `yaml:"min_column_gap"` // em
	MinRows      int     `yaml:"min_rows"`
}

// SlidesConfig tunes the slide encoder.
type SlidesConfig struct {
	TitleFormat  string `yaml:"title_format"`
	MaxBodyRunes int    `yaml:"max_body_runes"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Sink      string      `yaml:"sink"`   // none, sql or redis
	Driver    string      `yaml:"driver"` // sqlite3 or postgres
	DSN       string      `yaml:"dsn"`
	Redis     RedisConfig `yaml:"redis"`
	MaxEvents int64       `yaml:"max_events"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			CORSOrigins:      []string{"*"},
		},
		Limits: LimitsConfig{
			MaxUploadBytes:    50 << 20,
			MaxConcurrent:     4,
			RequestTimeout:    90 * time.Second,
			RequestsPerMinute: 60,
		},
		OCR: OCRConfig{
			Engine:    "tesseract",
			Languages: []string{"eng"},
			DPI:       300,
			Fallback:  true,
			Vision: VisionConfig{
				Model:      "google/gemini-2.5-flash",
				BaseURL:    "https://openrouter.ai/api/v1",
				Timeout:    120 * time.Second,
				MaxRetries: 0,
			},
		},
		Tables: TablesConfig{
			MinColumnGap: 1.0,
			MinRows:      2,
		},
		Slides: SlidesConfig{
			TitleFormat:  "Page %d",
			MaxBodyRunes: 1000,
		},
		Audit: AuditConfig{
			Sink:   "none",
			Driver: "sqlite3",
			DSN:    "file:doc-converter-audit.db?cache=shared",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "doc-converter:audit",
			},
			MaxEvents: 10000,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "doc-converter",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return domain.ConfigError(fmt.Sprintf("invalid server port: %d", c.Server.Port), nil)
	}

	if c.Limits.MaxUploadBytes <= 0 {
		return domain.ConfigError("max_upload_bytes must be positive", nil)
	}

	if c.Limits.MaxConcurrent < 1 {
		return domain.ConfigError("max_concurrent must be at least 1", nil)
	}

	if c.Limits.RequestTimeout <= 0 {
		return domain.ConfigError("request_timeout must be positive", nil)
	}

	switch c.OCR.Engine {
	case "tesseract", "none":
	case "vision":
		if c.OCR.Vision.APIKey == "" {
			return domain.ConfigError("ocr engine vision requires OPENROUTER_API_KEY", nil)
		}
	default:
		return domain.ConfigError(fmt.Sprintf("invalid ocr engine: %s", c.OCR.Engine), nil)
	}

	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return domain.ConfigError(fmt.Sprintf("ocr dpi out of range: %v", c.OCR.DPI), nil)
	}

	if c.OCR.Vision.MaxRetries < 0 {
		return domain.ConfigError("ocr vision max_retries must not be negative", nil)
	}

	if c.Tables.MinColumnGap <= 0 {
		return domain.ConfigError("tables min_column_gap must be positive", nil)
	}

	if c.Tables.MinRows < 1 {
		return domain.ConfigError("tables min_rows must be at least 1", nil)
	}

	if c.Slides.MaxBodyRunes < 1 {
		return domain.ConfigError("slides max_body_runes must be at least 1", nil)
	}

	if !validTitleFormat(c.Slides.TitleFormat) {
		return domain.ConfigError(fmt.Sprintf("slides title_format %q must format the page number with a single verb such as %%d", c.Slides.TitleFormat), nil)
	}

	switch c.Audit.Sink {
	case "none", "redis":
	case "sql":
		if c.Audit.Driver != "sqlite3" && c.Audit.Driver != "postgres" {
			return domain.ConfigError(fmt.Sprintf("invalid audit driver: %s", c.Audit.Driver), nil)
		}
		if c.Audit.DSN == "" {
			return domain.ConfigError("audit sink sql requires a dsn", nil)
		}
	default:
		return domain.ConfigError(fmt.Sprintf("invalid audit sink: %s", c.Audit.Sink), nil)
	}

	return nil
}

// validTitleFormat reports whether format takes exactly one page number and
// renders it.
func validTitleFormat(format string) bool {
	first := fmt.Sprintf(format, 1)
	if strings.Contains(first, "%!") {
		return false
	}
	return first != fmt.Sprintf(format, 2)
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.MaxUploadBytes = n
		}
	}

	if v := os.Getenv("OCR_ENGINE"); v != "" {
		cfg.OCR.Engine = strings.ToLower(v)
	}

	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		cfg.OCR.Languages = splitList(v)
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OCR.Vision.APIKey = v
	}

	if v := os.Getenv("OCR_VISION_MODEL"); v != "" {
		cfg.OCR.Vision.Model = v
	}

	if v := os.Getenv("AUDIT_SINK"); v != "" {
		cfg.Audit.Sink = v
	}

	if v := os.Getenv("AUDIT_DSN"); v != "" {
		if strings.HasPrefix(v, "postgres") {
			cfg.Audit.Driver = "postgres"
		} else if strings.HasPrefix(v, "sqlite:") {
			cfg.Audit.Driver = "sqlite3"
			v = strings.TrimPrefix(v, "sqlite:")
		}
		cfg.Audit.DSN = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		// Parse redis://host:port format
		cfg.Audit.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
