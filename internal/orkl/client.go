// Package orkl is a client for the ORKL threat-intelligence API. Every call
// passes through a response cache and a client-side rate limiter, and every
// failure is translated into one of the typed errors in this package.
package orkl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oriys/orkl/internal/cache"
	"github.com/oriys/orkl/internal/config"
	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/metrics"
	"github.com/oriys/orkl/internal/observability"
	"github.com/oriys/orkl/internal/ratelimit"
)

// Envelope is a decoded API response: a status indicator plus a payload.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is relative to the configured base URL.
	Path string
	// Route is Path with entity ids left as placeholders, such as
	// "/ta/entry/{id}". It names spans and labels metrics. Empty means Path.
	Route   string
	Query   url.Values
	Headers map[string]string
	// CacheKey enables caching for this call when non-empty.
	CacheKey string
	// UseCache overrides the configured cache switch when set.
	UseCache *bool
}

// Client talks to the ORKL API. It is safe for concurrent use and should
// be created once per process.
type Client struct {
	cfg      config.Config
	http     *http.Client
	cache    *cache.LRU[Envelope]
	limiter  *ratelimit.Limiter
	requests *logging.Logger
	now      func() time.Time

	closeOnce sync.Once
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. The configured request
// timeout still applies through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRequestLogger sets where per-call records go.
func WithRequestLogger(l *logging.Logger) Option {
	return func(c *Client) { c.requests = l }
}

// New builds a client from cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lru, err := cache.NewLRU[Envelope](cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	limiter, err := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		http:     &http.Client{},
		cache:    lru,
		limiter:  limiter,
		requests: logging.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Close releases idle transport connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.http.CloseIdleConnections()
	})
	return nil
}

// Do performs req. A cache hit returns without touching the limiter or the
// network; otherwise the call waits for the limiter, is sent, and a
// successfully decoded response is cached under req.CacheKey.
func (c *Client) Do(ctx context.Context, req Request) (Envelope, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	route := req.Route
	if route == "" {
		route = req.Path
	}
	start := time.Now()
	rec := &logging.RequestLog{
		RequestID: logging.NewRequestID(),
		Method:    req.Method,
		Endpoint:  req.Path,
		CacheKey:  req.CacheKey,
	}

	ctx, span := observability.StartClientSpan(ctx, req.Method+" "+route,
		observability.AttrEndpoint.String(route),
		observability.AttrCacheKey.String(req.CacheKey),
	)
	defer span.End()
	rec.TraceID = observability.GetTraceID(ctx)

	finish := func(env Envelope, err error) (Envelope, error) {
		rec.DurationMs = time.Since(start).Milliseconds()
		rec.Success = err == nil
		if err != nil {
			rec.Error = err.Error()
			observability.SetSpanError(span, err)
			logging.OpWithTrace(rec.TraceID, observability.GetSpanID(ctx)).
				Debug("orkl request failed", "endpoint", req.Path, "kind", KindOf(err).String(), "error", err)
		} else {
			observability.SetSpanOK(span)
		}
		c.requests.Log(rec)
		return env, err
	}

	useCache := req.CacheKey != "" && c.cacheEnabled(req.UseCache)
	if useCache {
		env, ok := c.cache.Get(req.CacheKey)
		metrics.RecordCacheLookup(ok)
		span.SetAttributes(observability.AttrCacheHit.Bool(ok))
		if ok {
			rec.FromCache = true
			return finish(env.clone(), nil)
		}
	}

	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return finish(Envelope{}, &APIError{
			Message: fmt.Sprintf("Request error: waiting for rate limiter: %v", err),
			Err:     err,
		})
	}
	wait := time.Since(waitStart)
	metrics.ObserveRateLimitWait(wait)
	rec.WaitMs = wait.Milliseconds()
	span.SetAttributes(observability.AttrWaitMs.Int64(rec.WaitMs))

	sendStart := time.Now()
	env, status, err := c.send(ctx, req)
	metrics.RecordAPIRequest(route, status, time.Since(sendStart))
	rec.StatusCode = status
	if status > 0 {
		span.SetAttributes(observability.AttrStatusCode.Int(status))
	}
	if err != nil {
		return finish(Envelope{}, err)
	}

	if useCache {
		c.cache.Set(req.CacheKey, env.clone(), c.cfg.CacheTTL)
	}
	return finish(env, nil)
}

// clone copies Data so the cache and its callers never share a buffer.
func (e Envelope) clone() Envelope {
	e.Data = bytes.Clone(e.Data)
	return e
}

func (c *Client) cacheEnabled(override *bool) bool {
	if override != nil {
		return *override
	}
	return c.cfg.UseCache
}

// send performs a single HTTP exchange and translates the outcome.
// The returned status is 0 when no response was received.
func (c *Client) send(ctx context.Context, req Request) (Envelope, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req.Path, req.Query), nil)
	if err != nil {
		return Envelope{}, 0, &APIError{Message: fmt.Sprintf("Request error: %v", err), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	observability.InjectHTTPHeaders(ctx, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Envelope{}, 0, &APIError{Message: fmt.Sprintf("Request error: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, 0, &APIError{Message: fmt.Sprintf("Request error: read response: %v", err), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Envelope{}, resp.StatusCode, &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Envelope{}, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API error: %d", resp.StatusCode),
			Body:       decodeErrorBody(body),
		}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, resp.StatusCode, &DecodeError{Endpoint: req.Path, Raw: body, Err: err}
	}
	return env, resp.StatusCode, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultRetryAfter
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d <= 0 {
			return 0
		}
		return int(math.Ceil(d.Seconds()))
	}
	return DefaultRetryAfter
}

func decodeErrorBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	return m
}
