package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// fileConfig mirrors the on-disk layout. Pointer fields distinguish
// "absent" from a zero value so absent keys keep the lower layer's value.
type fileConfig struct {
	APIBaseURL     *string `json:"api_base_url" yaml:"api_base_url"`
	RequestTimeout *int    `json:"request_timeout" yaml:"request_timeout"`
	UserAgent      *string `json:"user_agent" yaml:"user_agent"`

	Cache *struct {
		TTL        *int  `json:"ttl" yaml:"ttl"`
		Enable     *bool `json:"enable" yaml:"enable"`
		MaxEntries *int  `json:"max_entries" yaml:"max_entries"`
	} `json:"cache" yaml:"cache"`

	RateLimit *struct {
		RequestsPerWindow *int `json:"requests_per_window" yaml:"requests_per_window"`
		WindowSeconds     *int `json:"window_seconds" yaml:"window_seconds"`
	} `json:"rate_limit" yaml:"rate_limit"`

	Log *struct {
		Level          *string `json:"level" yaml:"level"`
		Format         *string `json:"format" yaml:"format"`
		RequestLogFile *string `json:"request_log_file" yaml:"request_log_file"`
	} `json:"log" yaml:"log"`

	Metrics *struct {
		Addr *string `json:"addr" yaml:"addr"`
	} `json:"metrics" yaml:"metrics"`

	Telemetry *struct {
		Enabled    *bool    `json:"enabled" yaml:"enabled"`
		Exporter   *string  `json:"exporter" yaml:"exporter"`
		Endpoint   *string  `json:"endpoint" yaml:"endpoint"`
		SampleRate *float64 `json:"sample_rate" yaml:"sample_rate"`
	} `json:"telemetry" yaml:"telemetry"`
}

func parseFile(data []byte, format Format) (*fileConfig, error) {
	fc := &fileConfig{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, fc)
	case FormatJSON, "":
		err = json.Unmarshal(data, fc)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrConfigParse, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return fc, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.APIBaseURL != nil {
		cfg.APIBaseURL = *fc.APIBaseURL
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = seconds(*fc.RequestTimeout)
	}
	if fc.UserAgent != nil {
		cfg.UserAgent = *fc.UserAgent
	}
	if c := fc.Cache; c != nil {
		if c.TTL != nil {
			cfg.CacheTTL = seconds(*c.TTL)
		}
		if c.Enable != nil {
			cfg.UseCache = *c.Enable
		}
		if c.MaxEntries != nil {
			cfg.CacheMaxEntries = *c.MaxEntries
		}
	}
	if r := fc.RateLimit; r != nil {
		if r.RequestsPerWindow != nil {
			cfg.RateLimitRequests = *r.RequestsPerWindow
		}
		if r.WindowSeconds != nil {
			cfg.RateLimitPeriod = seconds(*r.WindowSeconds)
		}
	}
	if l := fc.Log; l != nil {
		if l.Level != nil {
			cfg.Log.Level = *l.Level
		}
		if l.Format != nil {
			cfg.Log.Format = *l.Format
		}
		if l.RequestLogFile != nil {
			cfg.Log.RequestLogFile = *l.RequestLogFile
		}
	}
	if m := fc.Metrics; m != nil && m.Addr != nil {
		cfg.Metrics.Addr = *m.Addr
	}
	if t := fc.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		if t.Exporter != nil {
			cfg.Telemetry.Exporter = *t.Exporter
		}
		if t.Endpoint != nil {
			cfg.Telemetry.Endpoint = *t.Endpoint
		}
		if t.SampleRate != nil {
			cfg.Telemetry.SampleRate = *t.SampleRate
		}
	}
}
