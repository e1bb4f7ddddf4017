// Package metrics provides Prometheus collectors for scoring and reranking.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// Metrics names as constants for consistency.
const (
	MetricScorerDuration      = "scorer_duration_seconds"
	MetricScorerFailures      = "scorer_failures_total"
	MetricRerankRequests      = "rerank_requests_total"
	MetricRerankStageFailures = "rerank_stage_failures_total"
)

// Label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	ReasonTimeout = "timeout"
	ReasonError   = "error"
)

// Metrics contains the service's Prometheus collectors.
// All operations are thread-safe.
type Metrics struct {
	scorerDuration      *prometheus.HistogramVec
	scorerFailures      *prometheus.CounterVec
	rerankRequests      *prometheus.CounterVec
	rerankStageFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		scorerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricScorerDuration,
				Help:    "Time spent in a single scorer call, including pool wait, by scorer",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"scorer"},
		),
		scorerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricScorerFailures,
				Help: "Total number of failed scorer calls by scorer and reason",
			},
			[]string{"scorer", "reason"},
		),
		rerankRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRerankRequests,
				Help: "Total number of rerank requests by status",
			},
			[]string{"status"},
		),
		rerankStageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRerankStageFailures,
				Help: "Total number of rerank requests that failed, by failing stage",
			},
			[]string{"stage"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveScorer records one scorer call.
func (m *Metrics) ObserveScorer(shortName string, elapsed time.Duration, err error) {
	m.scorerDuration.WithLabelValues(shortName).Observe(elapsed.Seconds())
	if err == nil {
		return
	}
	reason := ReasonError
	var timeoutErr *scorer.ScorerTimeoutError
	if errors.As(err, &timeoutErr) {
		reason = ReasonTimeout
	}
	m.scorerFailures.WithLabelValues(shortName, reason).Inc()
}

// ObserveRerank records the outcome of a rerank request. stage names the
// failing stage and is ignored on success.
func (m *Metrics) ObserveRerank(stage string, err error) {
	if err == nil {
		m.rerankRequests.WithLabelValues(StatusSuccess).Inc()
		return
	}
	m.rerankRequests.WithLabelValues(StatusFailure).Inc()
	m.rerankStageFailures.WithLabelValues(stage).Inc()
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.scorerDuration,
		m.scorerFailures,
		m.rerankRequests,
		m.rerankStageFailures,
	}
}
