// Package metrics holds the panel's Prometheus collectors. They are served on the separate metrics
// listener, never on the public port.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the collectors registered on it. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gateDecisions  *prometheus.CounterVec
	bootstraps     *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	auditFailures  prometheus.Counter
	auditThrottled *prometheus.CounterVec
	replayRejected prometheus.Counter
}

// New creates and registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "panel_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panel_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_gate_decisions_total",
			Help: "Enforcement gate decisions by outcome.",
		}, []string{"decision"}),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_sso_bootstraps_total",
			Help: "Bootstrap token exchanges by outcome.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_billing_notifications_total",
			Help: "Billing notifications by outcome.",
		}, []string{"result"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panel_audit_append_failures_total",
			Help: "Audit records that could not be persisted.",
		}),
		auditThrottled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_audit_throttled_total",
			Help: "Audit records for unauthenticated traffic skipped by the rate bound.",
		}, []string{"action"}),
		replayRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panel_sso_replays_rejected_total",
			Help: "Bootstrap tokens rejected because their id was already consumed.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.gateDecisions, m.bootstraps, m.notifications, m.auditFailures, m.auditThrottled, m.replayRejected,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument records request count, latency and in-flight requests. The route label is the chi route
// pattern so path parameters do not explode cardinality; unmatched requests are labelled "unmatched".
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// GateDecision counts one gate outcome (allow, public, unauthenticated, suspended, terminated, unavailable).
func (m *Metrics) GateDecision(decision string) {
	if m != nil {
		m.gateDecisions.WithLabelValues(decision).Inc()
	}
}

// Bootstrap counts one bootstrap exchange outcome.
func (m *Metrics) Bootstrap(result string) {
	if m != nil {
		m.bootstraps.WithLabelValues(result).Inc()
	}
}

// Notification counts one billing notification outcome.
func (m *Metrics) Notification(result string) {
	if m != nil {
		m.notifications.WithLabelValues(result).Inc()
	}
}

// AuditFailure counts an audit record that was not persisted.
func (m *Metrics) AuditFailure() {
	if m != nil {
		m.auditFailures.Inc()
	}
}

// AuditThrottled counts an audit record for action that was skipped by the unauthenticated rate bound.
func (m *Metrics) AuditThrottled(action string) {
	if m != nil {
		m.auditThrottled.WithLabelValues(action).Inc()
	}
}

// ReplayRejected counts a bootstrap token refused as a replay.
func (m *Metrics) ReplayRejected() {
	if m != nil {
		m.replayRejected.Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
