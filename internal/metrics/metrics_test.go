package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.CacheRequests.WithLabelValues("hit").Inc()
	m.CacheRequests.WithLabelValues("hit").Inc()
	m.ContentRefreshes.WithLabelValues("ok").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `sitesd_query_cache_requests_total{result="hit"} 2`)
	assert.Contains(t, body, `sitesd_refresh_sites_total{status="ok"} 1`)
}

func TestNewIsIndependent(t *testing.T) {
	// Each instance has its own registry, so building two must not panic.
	a, b := New(), New()
	a.HTTPRequests.WithLabelValues("list", "200").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HTTPRequests.WithLabelValues("list", "200")))
}
