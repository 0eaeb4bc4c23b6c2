// Package metrics exposes Prometheus collectors for the ledger server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	EntriesSubmitted   *prometheus.CounterVec
	SubmissionRejected *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
	RateLimited        prometheus.Counter
	SuspiciousRequests prometheus.Counter
	EventsPublished    *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saldo_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EntriesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_entries_submitted_total",
			Help: "Entries stored, by operation.",
		}, []string{"operation"}),
		SubmissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_submission_rejections_total",
			Help: "Submissions rejected by validation, by offending field.",
		}, []string{"reason"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_store_errors_total",
			Help: "Entry store failures, by operation.",
		}, []string{"op"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saldo_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		SuspiciousRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saldo_suspicious_requests_total",
			Help: "Requests flagged by the security detector.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saldo_events_published_total",
			Help: "EntryRecorded publish attempts, by backend and result.",
		}, []string{"backend", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.EntriesSubmitted,
		m.SubmissionRejected,
		m.StoreErrors,
		m.RateLimited,
		m.SuspiciousRequests,
		m.EventsPublished,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one finished request. route should be the mux pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) EntrySubmitted(operation string) {
	if m == nil {
		return
	}
	m.EntriesSubmitted.WithLabelValues(operation).Inc()
}

func (m *Metrics) SubmissionRejection(reason string) {
	if m == nil {
		return
	}
	m.SubmissionRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) EventPublished(backend string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) RateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) SuspiciousRequest() {
	if m == nil {
		return
	}
	m.SuspiciousRequests.Inc()
}
