// Package metrics exposes Prometheus collectors for the evaluator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the evaluator's collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	registry          *prometheus.Registry
	attempts          *prometheus.CounterVec
	attemptDuration   *prometheus.HistogramVec
	evaluations       *prometheus.CounterVec
	recoveryStrategy  *prometheus.CounterVec
	correctedFields   *prometheus.CounterVec
	evaluationSeconds prometheus.Histogram
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluator_dispatch_attempts_total",
			Help: "Upstream attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluator_dispatch_attempt_seconds",
			Help:    "Duration of single upstream attempts.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluator_evaluations_total",
			Help: "Evaluations by result (ok or error kind).",
		}, []string{"result"}),
		recoveryStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluator_recovery_strategy_total",
			Help: "Parser strategy that produced the candidate record.",
		}, []string{"strategy"}),
		correctedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluator_corrected_fields_total",
			Help: "Fields filled in or repaired by correction rules.",
		}, []string{"field"}),
		evaluationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evaluator_evaluation_seconds",
			Help:    "End to end evaluation duration.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 90},
		}),
	}
	m.registry.MustRegister(
		m.attempts,
		m.attemptDuration,
		m.evaluations,
		m.recoveryStrategy,
		m.correctedFields,
		m.evaluationSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveAttempt(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.attemptDuration.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) ObserveEvaluation(result string, seconds float64) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evaluationSeconds.Observe(seconds)
}

func (m *Metrics) ObserveStrategy(strategy string) {
	if m == nil {
		return
	}
	m.recoveryStrategy.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveCorrected(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.correctedFields.WithLabelValues(f).Inc()
	}
}
