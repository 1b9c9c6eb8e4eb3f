// Package observability provides Prometheus metrics for the A/B test
// evaluation service.
//
// Metrics cover test lifecycle (created, runs), per-input evaluation
// outcomes and latency, generation failures by variant, and the score
// distribution per variant. All metric operations are thread-safe via
// Prometheus's internal locking; metrics are exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "promptrix"

const evaluationSubsystem = "evaluation"

// EvaluationMetrics holds all Prometheus metrics for A/B test runs.
// Initialize once at startup via InitMetrics.
type EvaluationMetrics struct {
	// TestsCreatedTotal counts created A/B tests.
	TestsCreatedTotal prometheus.Counter

	// RunsTotal counts test runs by final status (completed, error).
	RunsTotal *prometheus.CounterVec

	// InputsEvaluatedTotal counts evaluated inputs by winner (A, B, TIE).
	InputsEvaluatedTotal *prometheus.CounterVec

	// GenerationFailuresTotal counts failed generation calls by variant.
	GenerationFailuresTotal *prometheus.CounterVec

	// EvaluationDurationSeconds measures one pairwise evaluation,
	// covering both generation calls plus scoring.
	EvaluationDurationSeconds prometheus.Histogram

	// VariantScore observes heuristic scores by variant (A, B).
	VariantScore *prometheus.HistogramVec

	// ActiveRuns tracks runs currently in flight.
	ActiveRuns prometheus.Gauge
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *EvaluationMetrics

// InitMetrics creates and registers all metrics on the default
// Prometheus registry. Call once at startup; a second call panics with
// a duplicate registration.
func InitMetrics() *EvaluationMetrics {
	DefaultMetrics = &EvaluationMetrics{
		TestsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "tests_created_total",
				Help:      "Total number of A/B tests created",
			},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "runs_total",
				Help:      "Total test runs by final status",
			},
			[]string{"status"},
		),

		InputsEvaluatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "inputs_evaluated_total",
				Help:      "Total evaluated test inputs by winner",
			},
			[]string{"winner"},
		),

		GenerationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "generation_failures_total",
				Help:      "Total failed generation calls by variant",
			},
			[]string{"variant"},
		),

		EvaluationDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one pairwise evaluation in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		VariantScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "variant_score",
				Help:      "Heuristic score distribution by variant",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			},
			[]string{"variant"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: evaluationSubsystem,
				Name:      "active_runs",
				Help:      "Number of test runs currently in flight",
			},
		),
	}
	return DefaultMetrics
}
