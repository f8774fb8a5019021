// Package metrics provides Prometheus instrumentation for the recall pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powermem"

// Metrics holds the collectors of one client. All methods are nil-safe so
// components can be used without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge

	searchLatency    *prometheus.HistogramVec
	searchRequests   *prometheus.CounterVec
	candidatesScored prometheus.Histogram
	resultsReturned  prometheus.Histogram
	accessBumpErrors prometheus.Counter
}

// Config configures the metrics collectors.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}
}

// New creates and registers the collectors.
func New(cfg Config) *Metrics {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding_cache",
		Name:      "hits_total",
		Help:      "Query embeddings served from the cache",
	})
	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding_cache",
		Name:      "misses_total",
		Help:      "Query embeddings that required a provider call",
	})
	m.cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding_cache",
		Name:      "evictions_total",
		Help:      "Entries evicted to keep the cache under its bound",
	})
	m.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "embedding_cache",
		Name:      "entries",
		Help:      "Current number of cached query embeddings",
	})

	m.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recall",
			Name:      "search_latency_seconds",
			Help:      "Latency of ranking requests in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)
	m.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recall",
			Name:      "requests_total",
			Help:      "Ranking requests by operation and status",
		},
		[]string{"operation", "status"},
	)
	m.candidatesScored = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "recall",
		Name:      "candidates_scored",
		Help:      "Number of candidates scored per request",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	m.resultsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "recall",
		Name:      "results_returned",
		Help:      "Number of results returned per request",
		Buckets:   prometheus.LinearBuckets(0, 5, 10),
	})
	m.accessBumpErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recall",
		Name:      "access_update_errors_total",
		Help:      "Failed access-count updates after a recall",
	})

	registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.cacheEntries,
		m.searchLatency,
		m.searchRequests,
		m.candidatesScored,
		m.resultsReturned,
		m.accessBumpErrors,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheHit records a cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss records a cache miss.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// CacheEvicted records n evictions and the resulting size.
func (m *Metrics) CacheEvicted(n, size int) {
	if m == nil {
		return
	}
	m.cacheEvictions.Add(float64(n))
	m.cacheEntries.Set(float64(size))
}

// CacheSize records the current cache size.
func (m *Metrics) CacheSize(size int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(size))
}

// ObserveSearch records one ranking request.
//
// Parameters:
//   - operation: "search" or "recall"
//   - start: When the request began
//   - candidates: Number of candidates scored
//   - results: Number of results returned
//   - err: The request error, if any
func (m *Metrics) ObserveSearch(operation string, start time.Time, candidates, results int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.searchLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.searchRequests.WithLabelValues(operation, status).Inc()
	if err == nil {
		m.candidatesScored.Observe(float64(candidates))
		m.resultsReturned.Observe(float64(results))
	}
}

// AccessUpdateFailed records a failed access-count update.
func (m *Metrics) AccessUpdateFailed() {
	if m == nil {
		return
	}
	m.accessBumpErrors.Inc()
}
