// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/assetverse/internal/store"
)

const namespace = "assetverse"

// Metrics groups the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	decisions        *prometheus.CounterVec
	stepFailures     *prometheus.CounterVec
	connectionsAdded *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_decisions_total",
			Help:      "Request decisions by decision and outcome.",
		}, []string{"decision", "outcome"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_step_failures_total",
			Help:      "Decisions rolled back by an infrastructure failure, by step.",
		}, []string{"step"}),
		connectionsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_added_total",
			Help:      "Connection insert attempts by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.decisions,
		m.stepFailures,
		m.connectionsAdded,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveDecision records the outcome of a request decision. Step failures
// are additionally counted by the step that failed.
func (m *Metrics) ObserveDecision(decision string, err error) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, Outcome(err)).Inc()

	var stepErr *store.StepError
	if errors.As(err, &stepErr) {
		m.stepFailures.WithLabelValues(stepErr.Step).Inc()
	}
}

// ObserveConnection records a connection insert attempt.
func (m *Metrics) ObserveConnection(added bool, err error) {
	if m == nil {
		return
	}
	result := "added"
	switch {
	case err != nil:
		result = "error"
	case !added:
		result = "duplicate"
	}
	m.connectionsAdded.WithLabelValues(result).Inc()
}

// Outcome classifies a store error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
