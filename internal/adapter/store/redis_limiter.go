package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultUsageWindow = 24 * time.Hour

// RedisLimiter caps the tokens a user may spend per window. A limit of zero
// or less disables the cap.
type RedisLimiter struct {
	client *redis.Client
	limit  int // Max tokens allowed
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = DefaultUsageWindow
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (r *RedisLimiter) CheckLimit(ctx context.Context, userID string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	val, err := r.client.Get(ctx, usageKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil // No usage yet
	}
	if err != nil {
		return false, fmt.Errorf("read usage for %s: %w", userID, err)
	}
	usage, err := strconv.Atoi(val)
	if err != nil {
		return false, fmt.Errorf("corrupt usage counter for %s: %w", userID, err)
	}
	return withinLimit(usage, r.limit), nil
}

func (r *RedisLimiter) Increment(ctx context.Context, userID string, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	key := usageKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, key, int64(tokens))
		// The window starts with the first spend and is not extended by later ones.
		pipe.ExpireNX(ctx, key, r.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment usage for %s: %w", userID, err)
	}
	return nil
}

func usageKey(userID string) string {
	return "usage:" + userID
}

func withinLimit(usage, limit int) bool {
	return limit <= 0 || usage < limit
}
