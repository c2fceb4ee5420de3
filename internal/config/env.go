package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvConfigFile        = "ORKL_CONFIG_FILE"
	EnvAPIBaseURL        = "ORKL_API_BASE_URL"
	EnvRequestTimeout    = "ORKL_REQUEST_TIMEOUT"
	EnvCacheTTL          = "ORKL_CACHE_TTL"
	EnvUseCache          = "ORKL_USE_CACHE"
	EnvCacheMaxEntries   = "ORKL_CACHE_MAX_ENTRIES"
	EnvRateLimitRequests = "ORKL_RATE_LIMIT_REQUESTS"
	EnvRateLimitPeriod   = "ORKL_RATE_LIMIT_PERIOD"
	EnvUserAgent         = "ORKL_USER_AGENT"
	EnvLogLevel          = "ORKL_LOG_LEVEL"
	EnvLogFormat         = "ORKL_LOG_FORMAT"
	EnvRequestLogFile    = "ORKL_REQUEST_LOG_FILE"
	EnvMetricsAddr       = "ORKL_METRICS_ADDR"
	EnvOTelEnabled       = "ORKL_OTEL_ENABLED"
	EnvOTelExporter      = "ORKL_OTEL_EXPORTER"
	EnvOTelEndpoint      = "ORKL_OTEL_ENDPOINT"
	EnvOTelSampleRate    = "ORKL_OTEL_SAMPLE_RATE"
)

// EnvMap turns an os.Environ-style slice into a map.
func EnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// applyEnv overrides cfg with every non-empty ORKL_* variable in env.
func applyEnv(cfg *Config, env map[string]string) error {
	str := func(name string, dst *string) {
		if v := env[name]; v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v := env[name]
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, name, v)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v := strings.TrimSpace(env[name])
		if v == "" {
			return nil
		}
		if n, err := strconv.Atoi(v); err == nil {
			*dst = seconds(n)
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is neither seconds nor a duration", ErrInvalidConfig, name, v)
		}
		*dst = d
		return nil
	}
	flag := func(name string, dst *bool) {
		if v := env[name]; v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}

	str(EnvAPIBaseURL, &cfg.APIBaseURL)
	str(EnvUserAgent, &cfg.UserAgent)
	flag(EnvUseCache, &cfg.UseCache)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)
	str(EnvRequestLogFile, &cfg.Log.RequestLogFile)
	str(EnvMetricsAddr, &cfg.Metrics.Addr)
	flag(EnvOTelEnabled, &cfg.Telemetry.Enabled)
	str(EnvOTelExporter, &cfg.Telemetry.Exporter)
	str(EnvOTelEndpoint, &cfg.Telemetry.Endpoint)

	for _, f := range []func() error{
		func() error { return duration(EnvRequestTimeout, &cfg.RequestTimeout) },
		func() error { return duration(EnvCacheTTL, &cfg.CacheTTL) },
		func() error { return integer(EnvCacheMaxEntries, &cfg.CacheMaxEntries) },
		func() error { return integer(EnvRateLimitRequests, &cfg.RateLimitRequests) },
		func() error { return duration(EnvRateLimitPeriod, &cfg.RateLimitPeriod) },
	} {
		if err := f(); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(env[EnvOTelSampleRate]); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvOTelSampleRate, v)
		}
		cfg.Telemetry.SampleRate = rate
	}
	return nil
}
