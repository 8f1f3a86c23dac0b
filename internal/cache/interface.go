package cache

import (
	"context"
	"time"
)

// Cache defines the primitive operations for a key-value store with TTL.
// T is the type of value stored (e.g. int64, string, or a struct).
type Cache[T any] interface {
	// Get retrieves a single value.
	// Returns ErrCacheMiss if the key does not exist or has expired.
	Get(ctx context.Context, key string) (T, error)

	// Set stores a single value with TTL, replacing any previous TTL.
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// MGet retrieves multiple values.
	// Returns a map of key->value for keys that exist and decode cleanly.
	MGet(ctx context.Context, keys []string) (map[string]T, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists the live keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close closes the cache connection
	Close() error

	// Health checks if the cache is healthy
	Health(ctx context.Context) error
}

// CacheWithFetch extends Cache with an optimized cache-aside operation.
// Implementations that can provide stampede protection (e.g. RueidisAsideCache)
// should implement this interface. Callers should prefer this over the generic
// GetWithFetch helper when available, via type assertion.
type CacheWithFetch[T any] interface {
	Cache[T]

	// GetWithFetch retrieves a value using an optimized cache-aside pattern.
	// On cache miss, fetchFunc is called exactly once even under concurrent load,
	// and the result is stored in cache automatically.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)
}

// GetWithFetch is a generic cache-aside helper for any Cache implementation.
// On cache miss it calls fetchFunc, stores the result, and returns it.
// It defers to the implementation when c is a CacheWithFetch.
func GetWithFetch[T any](
	ctx context.Context,
	c Cache[T],
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if cf, ok := c.(CacheWithFetch[T]); ok {
		return cf.GetWithFetch(ctx, key, ttl, fetchFunc)
	}

	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}

	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}
