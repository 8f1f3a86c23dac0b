package services

import (
	"context"
	"errors"
	"time"

	"github.com/pedalsync/linkgate/internal/cache"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter counts attempts per key in the KV store. Every allowed attempt
// restarts the window, so the limit behaves like a sliding window that only
// closes after a quiet period. Rejected attempts leave the counter and its
// TTL untouched.
type RateLimiter struct {
	kv              cache.Cache[int64]
	minPollInterval time.Duration
}

func NewRateLimiter(kv cache.Cache[int64], minPollInterval time.Duration) *RateLimiter {
	return &RateLimiter{kv: kv, minPollInterval: minPollInterval}
}

// CheckRateLimit reports whether key has already used maxAttempts within
// window. When it has not, the attempt is counted.
func (r *RateLimiter) CheckRateLimit(
	ctx context.Context,
	key string,
	maxAttempts int,
	window time.Duration,
) (bool, error) {
	fullKey := rateLimitKeyPrefix + key

	count, err := r.kv.Get(ctx, fullKey)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return false, err
	}
	if count >= int64(maxAttempts) {
		return true, nil
	}

	if err := r.kv.Set(ctx, fullKey, count+1, window); err != nil {
		return false, err
	}
	return false, nil
}

// CheckPollInterval reports whether deviceCode was polled less than the
// minimum poll interval ago.
func (r *RateLimiter) CheckPollInterval(ctx context.Context, deviceCode string) (bool, error) {
	return r.CheckRateLimit(ctx, "poll:"+deviceCode, 1, r.minPollInterval)
}
