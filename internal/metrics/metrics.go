// Package metrics exposes Prometheus collectors for the cache and the broker client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/briangreenhill/tradedesk/internal/cache"
)

type Metrics struct {
	registry         *prometheus.Registry
	cacheLookups     *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradedesk_cache_lookups_total",
		Help: "Cache lookups by outcome",
	}, []string{"outcome"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradedesk_upstream_requests_total",
		Help: "Broker API calls by transaction id and status",
	}, []string{"tr_id", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradedesk_upstream_duration_seconds",
		Help:    "Broker API round trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"tr_id"})

	registry.MustRegister(
		cacheLookups,
		upstreamRequests,
		upstreamDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:         registry,
		cacheLookups:     cacheLookups,
		upstreamRequests: upstreamRequests,
		upstreamDuration: upstreamDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheLookup implements cache.Observer.
func (m *Metrics) CacheLookup(outcome cache.Outcome) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(string(outcome)).Inc()
}

// UpstreamRequest implements kis.Recorder.
func (m *Metrics) UpstreamRequest(trID, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(trID, status).Inc()
	m.upstreamDuration.WithLabelValues(trID).Observe(elapsed.Seconds())
}
