// Package metrics exports recommendation usage as Prometheus series.
//
// Per request:
//   - sommelier_recommendations_total{model, outcome}   outcome: generated | fallback
//   - sommelier_tokens_total{model}
//   - sommelier_cost_estimate_total{model}
//   - sommelier_response_duration_seconds{outcome}
//   - sommelier_confidence, sommelier_validation_score
//
// Plus sommelier_circuit_breaker_state{name} (0 closed, 1 half_open, 2 open).
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/domain/repository"
	"sommelier-core/internal/resilience"
)

const namespace = "sommelier"

const (
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
)

type PrometheusSink struct {
	recommendations *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	cost            *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	confidence      prometheus.Histogram
	validation      prometheus.Histogram
	breakerState    *prometheus.GaugeVec
}

// NewPrometheusSink registers its collectors with reg; pass
// prometheus.DefaultRegisterer to expose them on the process /metrics.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Recommendation responses by model and outcome.",
			},
			[]string{"model", "outcome"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Completion tokens consumed by model.",
			},
			[]string{"model"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_estimate_total",
				Help:      "Estimated completion spend by model.",
			},
			[]string{"model"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_duration_seconds",
				Help:      "End-to-end pipeline latency in seconds.",
				// 100ms → 200ms → ... → 12.8s
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
			},
			[]string{"outcome"},
		),
		confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence",
			Help:      "Aggregated response confidence.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		validation: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_score",
			Help:      "Response validation score (0-100).",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 half_open, 2 open.",
			},
			[]string{"name"},
		),
	}
}

func (s *PrometheusSink) Record(_ context.Context, rec entity.UsageRecord) {
	outcome := OutcomeGenerated
	if rec.FallbackUsed {
		outcome = OutcomeFallback
	}
	model := rec.Model
	if model == "" {
		model = "unknown"
	}

	s.recommendations.WithLabelValues(model, outcome).Inc()
	if rec.TokensUsed > 0 {
		s.tokens.WithLabelValues(model).Add(float64(rec.TokensUsed))
	}
	if rec.CostEstimate > 0 {
		s.cost.WithLabelValues(model).Add(rec.CostEstimate)
	}
	s.duration.WithLabelValues(outcome).Observe((time.Duration(rec.ResponseTimeMs) * time.Millisecond).Seconds())
	s.confidence.Observe(rec.Confidence)
	if !rec.FallbackUsed {
		s.validation.Observe(float64(rec.ValidationScore))
	}
}

// ObserveBreaker matches resilience.BreakerConfig.OnStateChange.
func (s *PrometheusSink) ObserveBreaker(name string, _, to resilience.State) {
	s.breakerState.WithLabelValues(name).Set(breakerGaugeValue(to))
}

// TrackBreaker seeds the gauge for a breaker that has not transitioned yet.
func (s *PrometheusSink) TrackBreaker(cb *resilience.CircuitBreaker) {
	s.breakerState.WithLabelValues(cb.Name()).Set(breakerGaugeValue(cb.State()))
}

func breakerGaugeValue(st resilience.State) float64 {
	switch st {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}

// MultiSink fans a record out to every non-nil sink in order.
type MultiSink []repository.MetricsSink

func (m MultiSink) Record(ctx context.Context, rec entity.UsageRecord) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, rec)
		}
	}
}
