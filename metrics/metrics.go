// Package metrics holds the prometheus collectors of the map service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nademap"

// Registry holds every collector. All Record methods accept a nil receiver
// so packages can run without metrics.
type Registry struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SessionsActive      prometheus.Gauge
	SessionsEvicted     *prometheus.CounterVec
	SessionEventsTotal  *prometheus.CounterVec
	ClusterPassDuration prometheus.Histogram
	SnapshotLoadsTotal  *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := &Registry{registry: reg}
	r.initHTTPMetrics()
	r.initSessionMetrics()
	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
}

func (r *Registry) initSessionMetrics() {
	r.SessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live map view sessions",
		},
	)

	r.SessionsEvicted = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions dropped by the runner, by reason",
		},
		[]string{"reason"},
	)

	r.SessionEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Callbacks emitted by map view engines, by kind",
		},
		[]string{"kind"},
	)

	r.ClusterPassDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_pass_duration_seconds",
			Help:      "Time spent building clusters for one record set",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	r.SnapshotLoadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_loads_total",
			Help:      "Record snapshot loads, by file format and result",
		},
		[]string{"format", "result"},
	)
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *Registry) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.SessionsActive.Set(float64(n))
}

func (r *Registry) RecordEviction(reason string) {
	if r == nil {
		return
	}
	r.SessionsEvicted.WithLabelValues(reason).Inc()
}

func (r *Registry) RecordSessionEvent(kind string) {
	if r == nil {
		return
	}
	r.SessionEventsTotal.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveClusterPass(d time.Duration) {
	if r == nil {
		return
	}
	r.ClusterPassDuration.Observe(d.Seconds())
}

func (r *Registry) RecordSnapshotLoad(format string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.SnapshotLoadsTotal.WithLabelValues(format, result).Inc()
}
