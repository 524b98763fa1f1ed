// Package metrics records repair-run counters in a private Prometheus
// registry and exports them as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mender/internal/logging"
)

const namespace = "mender"

// Metrics holds the run's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	validations          *prometheus.CounterVec
	validationDuration   prometheus.Histogram
	outcomes             *prometheus.CounterVec
	validationsPerTarget prometheus.Histogram
	llmCalls             *prometheus.CounterVec
	llmDuration          *prometheus.HistogramVec
}

// New registers all collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Harness validations by verdict status and error kind.",
		}, []string{"status", "error_kind"}),
		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Wall time of one harness validation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Repaired targets by terminal status.",
		}, []string{"status"}),
		validationsPerTarget: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "target_validations",
			Help:      "Validate calls spent on one target.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Reasoning service calls by stage and result.",
		}, []string{"stage", "result"}),
		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of reasoning service calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveValidation records one harness verdict.
func (m *Metrics) ObserveValidation(status, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(status, errorKind).Inc()
	m.validationDuration.Observe(d.Seconds())
}

// ObserveOutcome records a finished target.
func (m *Metrics) ObserveOutcome(status string, validations int) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(status).Inc()
	m.validationsPerTarget.Observe(float64(validations))
}

// ObserveLLMCall records one reasoning service call.
func (m *Metrics) ObserveLLMCall(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.llmCalls.WithLabelValues(stage, result).Inc()
	m.llmDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes every collector in the textfile exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	logging.Get(logging.CategoryMetrics).Debug("metrics written to %s", path)
	return nil
}
