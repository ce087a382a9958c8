package redis

import (
	"context"
	"strings"
	"time"

	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/infra/metrics"
)

var _ adapter.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter: INCR, with the window set on the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		metrics.IncRateLimitTriggered(bucket(key))
		return false, nil
	}

	return true, nil
}

// bucket is the action segment of a "rate_limit:<action>:<user>" key.
func bucket(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) == 3 {
		return parts[1]
	}
	return "other"
}
