package orkl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/orkl/internal/config"
	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/metrics"
)

type testServer struct {
	*httptest.Server
	hits     atomic.Int32
	lastReq  atomic.Pointer[http.Request]
	handlerF http.HandlerFunc
}

func newTestServer(t *testing.T, h http.HandlerFunc) *testServer {
	t.Helper()
	ts := &testServer{handlerF: h}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		ts.lastReq.Store(r.Clone(context.Background()))
		ts.handlerF(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = baseURL
	cfg.RequestTimeout = 2 * time.Second
	cfg.RateLimitRequests = 100
	cfg.RateLimitPeriod = time.Second
	return cfg
}

func newTestClient(t *testing.T, cfg config.Config) *Client {
	t.Helper()
	c, err := New(cfg, WithRequestLogger(&logging.Logger{}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitRequests = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDo_SendsHeadersAndDecodesEnvelope(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","message":"ok","data":{"id":"abc"}}`))
	c := newTestClient(t, testConfig(srv.URL+"/api/v1/"))

	env, err := c.Do(context.Background(), Request{
		Path:    "/ta/entry/abc",
		Headers: map[string]string{"X-Extra": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", env.Status)
	assert.JSONEq(t, `{"id":"abc"}`, string(env.Data))

	r := srv.lastReq.Load()
	require.NotNil(t, r)
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "/api/v1/ta/entry/abc", r.URL.Path)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, "orkl-mcp-server/0.1.0", r.Header.Get("User-Agent"))
	assert.Equal(t, "1", r.Header.Get("X-Extra"))
}

func TestLibraryEntries_QueryAndCacheKey(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":[]}`))
	c := newTestClient(t, testConfig(srv.URL))

	_, err := c.LibraryEntries(context.Background(), LibraryEntriesParams{Limit: 5})
	require.NoError(t, err)

	q := srv.lastReq.Load().URL.Query()
	assert.Equal(t, "5", q.Get("limit"))
	assert.Equal(t, "created_at", q.Get("order_by"))
	assert.Equal(t, "desc", q.Get("order"))
	assert.False(t, q.Has("offset"))

	_, ok := c.cache.Get("library_entries:limit=5&order=desc&order_by=created_at")
	assert.True(t, ok, "response should be cached under the sorted parameter key")
}

func TestLibraryEntries_CachedPerParameterization(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":[]}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.LibraryEntries(ctx, LibraryEntriesParams{Limit: 10})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.hits.Load())

	_, err := c.LibraryEntries(ctx, LibraryEntriesParams{Limit: 10, Order: OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestBypassCache(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	_, err := c.ThreatActorEntries(ctx)
	require.NoError(t, err)
	_, err = c.ThreatActorEntries(ctx, BypassCache())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())

	// the bypassed call did not evict the cached response
	_, err = c.ThreatActorEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestConfigDisablesCache(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	cfg := testConfig(srv.URL)
	cfg.UseCache = false
	c := newTestClient(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := c.SourceEntries(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), srv.hits.Load())
	assert.Equal(t, 0, c.CacheLen())
}

func TestCacheHitSkipsRateLimiter(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	cfg := testConfig(srv.URL)
	cfg.RateLimitRequests = 1
	cfg.RateLimitPeriod = time.Hour
	c := newTestClient(t, cfg)

	_, err := c.LibraryEntry(context.Background(), "r1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = c.LibraryEntry(ctx, "r1")
	require.NoError(t, err, "a cached response must not wait for the limiter")

	_, err = c.LibraryEntry(ctx, "r2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitResponse(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"seconds", "60", 60},
		{"missing", "", DefaultRetryAfter},
		{"garbage", "soon", DefaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			})
			c := newTestClient(t, testConfig(srv.URL))

			_, err := c.LibraryInfo(context.Background())
			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, tt.want, rl.RetryAfter)
			assert.Equal(t, KindRateLimited, KindOf(err))
			assert.Equal(t, 0, c.CacheLen())
		})
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 90, parseRetryAfter(date, now))
	assert.Equal(t, 0, parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}

func TestAPIErrorResponse(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"error","message":"entry not found"}`))
	})
	c := newTestClient(t, testConfig(srv.URL))

	_, err := c.LibraryEntry(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "API error: 404", apiErr.Error())
	assert.Equal(t, "entry not found", apiErr.Body["message"])
	assert.Equal(t, KindAPI, KindOf(err))
}

func TestAPIErrorResponse_NonJSONBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	c := newTestClient(t, testConfig(srv.URL))

	_, err := c.LibraryVersion(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Nil(t, apiErr.Body)
}

func TestAPIErrorResponse_NonObjectBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`["bad","request"]`))
	})
	c := newTestClient(t, testConfig(srv.URL))

	_, err := c.LibraryInfo(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Nil(t, apiErr.Body)
}

func TestCachedPayloadNotShared(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{"id":"abc"}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	first, err := c.ThreatActorEntry(ctx, "abc")
	require.NoError(t, err)
	first.Data[2] = 'X'

	second, err := c.ThreatActorEntry(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc"}`, string(second.Data))

	second.Data[2] = 'Y'
	third, err := c.ThreatActorEntry(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc"}`, string(third.Data))
	assert.Equal(t, int32(1), srv.hits.Load(), "later reads should be cache hits")
}

func TestMetricsLabelledByRoute(t *testing.T) {
	metrics.Init("orkl_route_test")
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := c.LibraryEntry(ctx, id)
		require.NoError(t, err)
	}
	_, err := c.Do(ctx, Request{Path: "/library/info"})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(metrics.Registry(), "orkl_route_test_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per route, not per id")

	expected := `
# HELP orkl_route_test_api_requests_total ORKL API requests sent over the network, by endpoint and status code
# TYPE orkl_route_test_api_requests_total counter
orkl_route_test_api_requests_total{endpoint="/library/entry/{id}",status="200"} 5
orkl_route_test_api_requests_total{endpoint="/library/info",status="200"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "orkl_route_test_api_requests_total"))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, testConfig(url))
	_, err := c.ThreatActorEntries(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Request error:")
	assert.NotNil(t, errors.Unwrap(err))
}

func TestRequestTimeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	cfg := testConfig(srv.URL)
	cfg.RequestTimeout = 50 * time.Millisecond
	c := newTestClient(t, cfg)

	_, err := c.LibraryInfo(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeError(t *testing.T) {
	srv := newTestServer(t, okJSON(`not json`))
	c := newTestClient(t, testConfig(srv.URL))

	_, err := c.SourceEntries(context.Background())
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "not json", string(decErr.Raw))
	assert.Equal(t, KindDecode, KindOf(err))
	assert.Equal(t, 0, c.CacheLen(), "undecodable responses are not cached")
}

func TestValidationErrorsSendNothing(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	calls := map[string]func() error{
		"order_by": func() error {
			_, err := c.LibraryEntries(ctx, LibraryEntriesParams{OrderBy: "title"})
			return err
		},
		"order": func() error {
			_, err := c.LibraryEntries(ctx, LibraryEntriesParams{Order: "sideways"})
			return err
		},
		"negative limit": func() error {
			_, err := c.LibraryEntries(ctx, LibraryEntriesParams{Limit: -1})
			return err
		},
		"empty id": func() error {
			_, err := c.LibraryEntry(ctx, " ")
			return err
		},
		"empty hash": func() error {
			_, err := c.LibraryEntryBySHA1(ctx, "")
			return err
		},
		"empty query": func() error {
			_, err := c.SearchLibrary(ctx, SearchParams{})
			return err
		},
		"version order": func() error {
			_, err := c.LibraryVersionEntries(ctx, VersionEntriesParams{Order: "up"})
			return err
		},
		"empty source": func() error {
			_, err := c.SourceEntry(ctx, "", true)
			return err
		},
		"empty actor": func() error {
			_, err := c.ThreatActorEntry(ctx, "")
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
	assert.Zero(t, srv.hits.Load())
}

func TestSearchLibrary_BucketedCacheKey(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":[]}`))
	cfg := testConfig(srv.URL)
	cfg.CacheTTL = 300 * time.Second
	c := newTestClient(t, cfg)

	now := time.Unix(3000, 0) // bucket 10
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.SearchLibrary(ctx, SearchParams{Query: "APT29"})
	require.NoError(t, err)
	q := srv.lastReq.Load().URL.Query()
	assert.Equal(t, "APT29", q.Get("query"))
	assert.Equal(t, "false", q.Get("full"))
	assert.Equal(t, "1000", q.Get("limit"))
	_, ok := c.cache.Get("search:APT29:false:1000:10")
	assert.True(t, ok)

	now = time.Unix(3299, 0) // still bucket 10
	_, err = c.SearchLibrary(ctx, SearchParams{Query: "APT29"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())

	now = time.Unix(3300, 0) // bucket 11
	_, err = c.SearchLibrary(ctx, SearchParams{Query: "APT29"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestEndpointPaths(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	tests := []struct {
		call      func() error
		path      string
		cacheKey  string
		wantQuery string
	}{
		{func() error { _, err := c.LibraryEntryBySHA1(ctx, "deadbeef"); return err }, "/library/entry/sha1/deadbeef", "library_entry_sha1:deadbeef", ""},
		{func() error { _, err := c.LibraryVersionEntries(ctx, VersionEntriesParams{Limit: 2, Offset: 4}); return err }, "/library/version/entries", "library_version_entries:limit=2&offset=4&order=desc", "limit=2&offset=4&order=desc"},
		{func() error { _, err := c.LibraryWorkEntries(ctx, WorkEntriesParams{}); return err }, "/library/work/entries", "library_work_entries:", ""},
		{func() error { _, err := c.SourceEntry(ctx, "s1", true); return err }, "/source/entry/s1", "source_entry:s1:true", "full=true"},
		{func() error { _, err := c.ThreatActorEntry(ctx, "a1"); return err }, "/ta/entry/a1", "ta_entry:a1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.NoError(t, tt.call())
			r := srv.lastReq.Load()
			assert.Equal(t, tt.path, r.URL.Path)
			assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
			_, ok := c.cache.Get(tt.cacheKey)
			assert.True(t, ok, tt.cacheKey)
		})
	}
}

func TestClearCache_Categories(t *testing.T) {
	srv := newTestServer(t, okJSON(`{"status":"success","data":{}}`))
	c := newTestClient(t, testConfig(srv.URL))
	ctx := context.Background()

	populate := func() {
		c.cache.Clear()
		_, err := c.LibraryEntry(ctx, "r1")
		require.NoError(t, err)
		_, err = c.SearchLibrary(ctx, SearchParams{Query: "lazarus"})
		require.NoError(t, err)
		_, err = c.ThreatActorEntries(ctx)
		require.NoError(t, err)
		_, err = c.ThreatActorEntry(ctx, "a1")
		require.NoError(t, err)
		_, err = c.SourceEntries(ctx)
		require.NoError(t, err)
		require.Equal(t, 5, c.CacheLen())
	}

	populate()
	n, err := c.ClearCache(CategoryThreatActors)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok := c.cache.Get("library_entry:r1")
	assert.True(t, ok)
	_, ok = c.cache.Get("source_entries")
	assert.True(t, ok)

	populate()
	n, err = c.ClearCache(CategoryThreatReports)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, c.CacheLen())

	populate()
	n, err = c.ClearCache(CategorySources)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	populate()
	n, err = c.ClearCache("")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Zero(t, c.CacheLen())

	populate()
	_, err = c.ClearCache("everything")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 5, c.CacheLen(), "an invalid category must not mutate the cache")
}

func TestClose_Idempotent(t *testing.T) {
	c := newTestClient(t, testConfig("http://127.0.0.1:1"))
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
