package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"sommelier-core/internal/domain/entity"
	"sommelier-core/internal/resilience"
)

func TestPrometheusSink_Record(t *testing.T) {
	sink := NewPrometheusSink(prometheus.NewRegistry())
	ctx := context.Background()

	sink.Record(ctx, entity.UsageRecord{
		Model:           "gemini-2.5-flash",
		TokensUsed:      1200,
		CostEstimate:    0.0024,
		ResponseTimeMs:  850,
		Confidence:      0.82,
		ValidationScore: 95,
	})
	sink.Record(ctx, entity.UsageRecord{
		Model:          "gemini-2.5-flash",
		ResponseTimeMs: 10,
		Confidence:     0.6,
		FallbackUsed:   true,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.recommendations.WithLabelValues("gemini-2.5-flash", OutcomeGenerated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.recommendations.WithLabelValues("gemini-2.5-flash", OutcomeFallback)))
	assert.Equal(t, 1200.0, testutil.ToFloat64(sink.tokens.WithLabelValues("gemini-2.5-flash")))
	assert.InDelta(t, 0.0024, testutil.ToFloat64(sink.cost.WithLabelValues("gemini-2.5-flash")), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
}

func TestPrometheusSink_UnknownModel(t *testing.T) {
	sink := NewPrometheusSink(prometheus.NewRegistry())
	sink.Record(context.Background(), entity.UsageRecord{FallbackUsed: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.recommendations.WithLabelValues("unknown", OutcomeFallback)))
}

func TestPrometheusSink_BreakerGauge(t *testing.T) {
	sink := NewPrometheusSink(prometheus.NewRegistry())
	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "completion",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		OnStateChange:    sink.ObserveBreaker,
	})
	sink.TrackBreaker(cb)
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.breakerState.WithLabelValues("completion")))

	_ = cb.Call(context.Background(), func(context.Context) error { return assert.AnError })
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.breakerState.WithLabelValues("completion")))

	sink.ObserveBreaker("completion", resilience.StateOpen, resilience.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.breakerState.WithLabelValues("completion")))
}

type countingSink struct{ n int }

func (c *countingSink) Record(context.Context, entity.UsageRecord) { c.n++ }

func TestMultiSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Record(context.Background(), entity.UsageRecord{})

	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
