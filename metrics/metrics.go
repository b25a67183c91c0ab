// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reviewMutations  *prometheus.CounterVec
	ratingRecomputes prometheus.Counter
	maintenanceRuns  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restaurant_reviews",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restaurant_reviews",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "path"},
		),
		reviewMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restaurant_reviews",
				Subsystem: "reviews",
				Name:      "mutations_total",
				Help:      "Review creations, updates and deletions.",
			},
			[]string{"op"},
		),
		ratingRecomputes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "restaurant_reviews",
				Subsystem: "ratings",
				Name:      "recomputations_total",
				Help:      "Restaurant rating recomputations.",
			},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restaurant_reviews",
				Subsystem: "maintenance",
				Name:      "runs_total",
				Help:      "Maintenance job runs by outcome.",
			},
			[]string{"success"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.reviewMutations,
		m.ratingRecomputes,
		m.maintenanceRuns,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ReviewMutated(op string) {
	if m == nil {
		return
	}
	m.reviewMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) RatingRecomputed() {
	if m == nil {
		return
	}
	m.ratingRecomputes.Inc()
}

func (m *Metrics) MaintenanceRun(success bool) {
	if m == nil {
		return
	}
	label := "true"
	if !success {
		label = "false"
	}
	m.maintenanceRuns.WithLabelValues(label).Inc()
}
