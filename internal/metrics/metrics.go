// Package metrics provides Prometheus instrumentation for violette.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "violette"

// Registry holds all application metrics backed by a dedicated Prometheus
// registry so tests can create isolated instances.
type Registry struct {
	registry *prometheus.Registry

	ScansTotal         *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	ActiveScans        prometheus.Gauge
	StoreWriteErrors   prometheus.Counter
	EventsPublished    *prometheus.CounterVec
	SubscribersDropped prometheus.Counter
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Host scans by terminal outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Per-host scan duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_scans",
			Help:      "Hosts currently being scanned.",
		}),
		StoreWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_errors_total",
			Help:      "Failed result-store writes.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to the bus by type.",
		}, []string{"type"}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers dropped for not keeping up.",
		}),
	}

	reg.MustRegister(
		r.ScansTotal,
		r.ScanDuration,
		r.ActiveScans,
		r.StoreWriteErrors,
		r.EventsPublished,
		r.SubscribersDropped,
	)
	return r
}

// Handler returns an HTTP handler exposing the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordScan records a terminal scan outcome and its duration.
func (r *Registry) RecordScan(outcome string, seconds float64) {
	r.ScansTotal.WithLabelValues(outcome).Inc()
	r.ScanDuration.Observe(seconds)
}
