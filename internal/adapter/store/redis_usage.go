package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sommelier-core/internal/domain/entity"
)

// RedisUsageSink charges completed requests against the user's token budget
// and keeps running per-user counters in a hash.
type RedisUsageSink struct {
	client  *redis.Client
	limiter *RedisLimiter
	log     *zap.Logger
}

func NewRedisUsageSink(client *redis.Client, limiter *RedisLimiter, log *zap.Logger) *RedisUsageSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisUsageSink{
		client:  client,
		limiter: limiter,
		log:     log.With(zap.String("component", "redis_usage_sink")),
	}
}

func (s *RedisUsageSink) Record(ctx context.Context, rec entity.UsageRecord) {
	if rec.UserID == "" {
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Increment(ctx, rec.UserID, rec.TokensUsed); err != nil {
			s.log.Warn("failed to charge token usage", zap.String("request_id", rec.RequestID), zap.Error(err))
		}
	}

	key := statsKey(rec.UserID)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, delta := range usageDeltas(rec) {
			pipe.HIncrBy(ctx, key, field, delta)
		}
		if rec.CostEstimate > 0 {
			pipe.HIncrByFloat(ctx, key, "cost_estimate", rec.CostEstimate)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("failed to record usage stats", zap.String("request_id", rec.RequestID), zap.Error(err))
	}
}

func statsKey(userID string) string {
	return "usage:stats:" + userID
}

func usageDeltas(rec entity.UsageRecord) map[string]int64 {
	deltas := map[string]int64{
		"requests": 1,
		"tokens":   int64(rec.TokensUsed),
	}
	if rec.FallbackUsed {
		deltas["fallbacks"] = 1
	}
	return deltas
}
