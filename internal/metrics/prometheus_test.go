package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders_NoopBeforeInit(t *testing.T) {
	mu.Lock()
	saved := prom
	prom = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		prom = saved
		mu.Unlock()
	})

	RecordAPIRequest("/ta/entries", 200, time.Millisecond)
	RecordCacheLookup(true)
	ObserveRateLimitWait(time.Second)
	RecordToolCall("fetch_sources", true)
	assert.Nil(t, Registry())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecorders_AfterInit(t *testing.T) {
	Init("orkl_test")
	pm := current()
	require.NotNil(t, pm)

	RecordAPIRequest("/library/info", 200, 12*time.Millisecond)
	RecordAPIRequest("/library/info", 429, 3*time.Millisecond)
	RecordAPIRequest("/library/info", 0, time.Millisecond)
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)
	RecordCacheClear("sources")
	RecordToolCall("clear_cache", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.apiRequestsTotal.WithLabelValues("/library/info", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.apiRequestsTotal.WithLabelValues("/library/info", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.remoteRateLimited))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.cacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.cacheClearsTotal.WithLabelValues("sources")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.toolCallsTotal.WithLabelValues("clear_cache", "failed")))

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "orkl_test_cache_lookups_total")
	assert.Contains(t, string(body), "orkl_test_uptime_seconds")
}
