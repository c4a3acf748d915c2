// Package metrics exposes Prometheus collectors for answer mutations and
// user feedback.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mutation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeAborted  = "aborted"
	OutcomeRejected = "rejected"
	OutcomeNetwork  = "network"
	OutcomeBusy     = "busy"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	feedback         *prometheus.CounterVec
	streams          prometheus.Gauge
}

// New creates Metrics backed by a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "answerdesk",
				Name:      "mutations_total",
				Help:      "Answer and file mutations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "answerdesk",
				Name:      "mutation_duration_seconds",
				Help:      "Time from dispatch to applied result.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "answerdesk",
				Name:      "feedback_total",
				Help:      "Feedback messages shown to users by severity.",
			},
			[]string{"severity"},
		),
		streams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "answerdesk",
				Name:      "update_streams",
				Help:      "Open question update streams.",
			},
		),
	}
	reg.MustRegister(m.mutations, m.mutationDuration, m.feedback, m.streams)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMutation records one finished mutation.
func (m *Metrics) ObserveMutation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
	m.mutationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CountFeedback records one emitted feedback message.
func (m *Metrics) CountFeedback(severity string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(severity).Inc()
}

// StreamOpened and StreamClosed track open update streams.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.streams.Inc()
	}
}

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() {
	if m != nil {
		m.streams.Dec()
	}
}
