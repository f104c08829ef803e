// Package metrics holds the Prometheus collectors shared by the API, the
// query cache and the refresh workers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitesd"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	CacheRequests      *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	BackgroundTriggers *prometheus.CounterVec
	ContentRefreshes   *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "requests_total",
			Help:      "Query cache lookups by result (hit, miss, stale).",
		}, []string{"result"}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "invalidations_total",
			Help:      "Query cache invalidations by key prefix.",
		}, []string{"prefix"}),
		BackgroundTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ui",
			Name:      "background_refresh_triggers_total",
			Help:      "Fire-and-forget update-sites calls issued by the sites table, by result.",
		}, []string{"result"}),
		ContentRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "sites_total",
			Help:      "Per-site content refresh attempts by status.",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Sites API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.CacheRequests,
		m.CacheInvalidations,
		m.BackgroundTriggers,
		m.ContentRefreshes,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
