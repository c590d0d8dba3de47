package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	fetches      *prometheus.CounterVec
	staleResults prometheus.Counter
	cacheServed  *prometheus.CounterVec
	bulkActions  *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "useradmin",
			Name:      "listing_fetches_total",
			Help:      "Listing fetches by mode and result.",
		}, []string{"mode", "result"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "useradmin",
			Name:      "listing_stale_results_total",
			Help:      "Listing results discarded because a newer query superseded them.",
		}),
		cacheServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "useradmin",
			Name:      "listing_cache_reads_total",
			Help:      "Offline cache reads by outcome.",
		}, []string{"outcome"}),
		bulkActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "useradmin",
			Name:      "bulk_actions_total",
			Help:      "Bulk actions by action and result.",
		}, []string{"action", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "useradmin",
			Name:      "api_request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.registry.MustRegister(m.fetches, m.staleResults, m.cacheServed, m.bulkActions, m.httpDuration)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Fetch counts a listing fetch. mode is "visible", "silent" or "sort".
func (m *Metrics) Fetch(mode, result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(mode, result).Inc()
}

// StaleResult counts a discarded listing result.
func (m *Metrics) StaleResult() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

// CacheRead counts an offline cache read. outcome is "hit", "expired" or "miss".
func (m *Metrics) CacheRead(outcome string) {
	if m == nil {
		return
	}
	m.cacheServed.WithLabelValues(outcome).Inc()
}

// BulkAction counts a bulk action outcome.
func (m *Metrics) BulkAction(action, result string) {
	if m == nil {
		return
	}
	m.bulkActions.WithLabelValues(action, result).Inc()
}

// ObserveRequest records backend request latency.
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
