package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-recall/pkg/metrics"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.CacheHit()
		m.CacheMiss()
		m.CacheEvicted(1, 1)
		m.CacheSize(3)
		m.ObserveSearch("search", time.Now(), 1, 1, nil)
		m.AccessUpdateFailed()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestObserveSearch(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.Config{Registry: registry})
	assert.Same(t, registry, m.Registry())

	start := time.Now()
	m.ObserveSearch("search", start, 40, 10, nil)
	m.ObserveSearch("recall", start, 0, 0, errors.New("boom"))
	m.AccessUpdateFailed()

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := map[string]int{}
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
	}
	assert.Equal(t, 2, byName["powermem_recall_requests_total"], "one series per operation/status")
	assert.Equal(t, 2, byName["powermem_recall_search_latency_seconds"])
	assert.Equal(t, 1, byName["powermem_recall_candidates_scored"])
	assert.Equal(t, 1, byName["powermem_recall_access_update_errors_total"])
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())
	m.CacheHit()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "powermem_embedding_cache_hits_total 1")
}
