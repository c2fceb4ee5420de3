// Package metrics exposes Prometheus collectors for ORKL API traffic, the
// response cache, the client-side rate limiter and MCP tool calls.
// Every recorder is a no-op until Init is called.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics holds the collectors registered by Init.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	cacheLookupsTotal  *prometheus.CounterVec
	cacheClearsTotal   *prometheus.CounterVec
	rateLimitWait      prometheus.Histogram
	remoteRateLimited  prometheus.Counter
	toolCallsTotal     *prometheus.CounterVec
	uptime             prometheus.GaugeFunc
}

// Histogram buckets in milliseconds.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

var (
	mu        sync.RWMutex
	prom      *PrometheusMetrics
	startTime = time.Now()
)

// StartTime is when the process started recording.
func StartTime() time.Time {
	return startTime
}

// Init builds a fresh registry under namespace and makes it current.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "ORKL API requests sent over the network, by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),

		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_milliseconds",
				Help:      "Round-trip time of ORKL API requests in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"endpoint"},
		),

		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		cacheClearsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_clears_total",
				Help:      "Cache clear operations by category",
			},
			[]string{"category"},
		),

		rateLimitWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_wait_milliseconds",
				Help:      "Time spent waiting on the client-side rate limiter",
				Buckets:   defaultBuckets,
			},
		),

		remoteRateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_rate_limited_total",
				Help:      "Responses where the ORKL API answered 429",
			},
		),

		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "MCP tool invocations by tool and outcome",
			},
			[]string{"tool", "status"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.apiRequestsTotal,
		pm.apiRequestDuration,
		pm.cacheLookupsTotal,
		pm.cacheClearsTotal,
		pm.rateLimitWait,
		pm.remoteRateLimited,
		pm.toolCallsTotal,
		pm.uptime,
	)

	mu.Lock()
	prom = pm
	mu.Unlock()
}

func current() *PrometheusMetrics {
	mu.RLock()
	defer mu.RUnlock()
	return prom
}

// RecordAPIRequest records a completed network request. status 0 means
// no response was received.
func RecordAPIRequest(endpoint string, status int, duration time.Duration) {
	pm := current()
	if pm == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	pm.apiRequestsTotal.WithLabelValues(endpoint, label).Inc()
	pm.apiRequestDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
	if status == http.StatusTooManyRequests {
		pm.remoteRateLimited.Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	pm := current()
	if pm == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	pm.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheClear records a category clear.
func RecordCacheClear(category string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.cacheClearsTotal.WithLabelValues(category).Inc()
}

// ObserveRateLimitWait records time spent in the limiter.
func ObserveRateLimitWait(d time.Duration) {
	pm := current()
	if pm == nil {
		return
	}
	pm.rateLimitWait.Observe(float64(d.Milliseconds()))
}

// RecordToolCall records one MCP tool invocation.
func RecordToolCall(tool string, success bool) {
	pm := current()
	if pm == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	pm.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	pm := current()
	if pm == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Registry returns the current registry, or nil before Init.
func Registry() *prometheus.Registry {
	pm := current()
	if pm == nil {
		return nil
	}
	return pm.registry
}
