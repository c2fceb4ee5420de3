// Package config builds the immutable runtime configuration from built-in
// defaults, an optional JSON or YAML file, and ORKL_* environment
// variables, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oriys/orkl/internal/logging"
)

var (
	// ErrInvalidConfig reports a value that is present but unusable.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrConfigParse reports a configuration file that could not be decoded.
	ErrConfigParse = errors.New("parse configuration file")
)

// LogConfig controls operational and request logging.
type LogConfig struct {
	Level          string
	Format         string
	RequestLogFile string
}

// MetricsConfig controls the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool
	Exporter   string
	Endpoint   string
	SampleRate float64
}

// Config is the resolved configuration. It is built once at startup and
// passed by value.
type Config struct {
	APIBaseURL        string
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	UseCache          bool
	CacheMaxEntries   int
	RateLimitRequests int
	RateLimitPeriod   time.Duration
	UserAgent         string

	Log       LogConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:        "https://orkl.eu/api/v1",
		RequestTimeout:    30 * time.Second,
		CacheTTL:          300 * time.Second,
		UseCache:          true,
		CacheMaxEntries:   1000,
		RateLimitRequests: 90,
		RateLimitPeriod:   30 * time.Second,
		UserAgent:         "orkl-mcp-server/0.1.0",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Exporter:   "otlp-http",
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
	}
}

// Resolve layers file (may be nil) and env over base and validates the
// result. It performs no I/O.
func Resolve(base Config, file []byte, format Format, env map[string]string) (Config, error) {
	cfg := base
	if len(file) > 0 {
		fc, err := parseFile(file, format)
		if err != nil {
			return Config{}, err
		}
		fc.apply(&cfg)
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api_base_url %q must be an absolute URL", ErrInvalidConfig, c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("%w: cache max_entries must be positive", ErrInvalidConfig)
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("%w: rate_limit requests_per_window must be positive", ErrInvalidConfig)
	}
	if c.RateLimitPeriod <= 0 {
		return fmt.Errorf("%w: rate_limit window_seconds must be positive", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry sample_rate must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}
