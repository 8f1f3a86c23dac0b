package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

// Compile-time interface check.
var _ Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RueidisCache implements Cache interface using Redis via rueidis client.
// Suitable for multi-instance deployments where state needs to be shared.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
	ownClient bool
}

// NewRedisClient dials Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true, // Basic mode without client-side caching
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// NewRueidisCache creates a Redis cache with its own connection.
func NewRueidisCache[T any](
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
) (*RueidisCache[T], error) {
	client, err := NewRedisClient(ctx, addr, password, db)
	if err != nil {
		return nil, err
	}
	return &RueidisCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
		ownClient: true,
	}, nil
}

// NewRueidisCacheWithClient layers a typed cache over a shared client.
// Close does not close a shared client.
func NewRueidisCacheWithClient[T any](client rueidis.Client, keyPrefix string) *RueidisCache[T] {
	return &RueidisCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis.
func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	cmd := r.client.B().Get().Key(r.keyPrefix + key).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	str, err := resp.ToString()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	value, err := decode[T](str)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// Set stores a value in Redis with TTL.
func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := encode(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	cmd := r.client.B().Set().
		Key(r.keyPrefix + key).
		Value(encoded).
		Ex(ttl).
		Build()

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return nil
}

// MGet retrieves multiple values from Redis.
func (r *RueidisCache[T]) MGet(ctx context.Context, keys []string) (map[string]T, error) {
	if len(keys) == 0 {
		return make(map[string]T), nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = r.keyPrefix + key
	}

	cmd := r.client.B().Mget().Key(fullKeys...).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	values, err := resp.ToArray()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return decodeArray[T](keys, values), nil
}

// Delete removes keys from Redis.
func (r *RueidisCache[T]) Delete(ctx context.Context, keys ...string) error {
	return deleteKeys(ctx, r.client, r.keyPrefix, keys)
}

// Keys lists keys under prefix using SCAN, never KEYS.
func (r *RueidisCache[T]) Keys(ctx context.Context, prefix string) ([]string, error) {
	return scanKeys(ctx, r.client, r.keyPrefix, prefix)
}

// Close closes the Redis connection when the cache owns it.
func (r *RueidisCache[T]) Close() error {
	if r.ownClient {
		r.client.Close()
	}
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	return ping(ctx, r.client)
}

func decodeArray[T any](keys []string, values []rueidis.RedisMessage) map[string]T {
	result := make(map[string]T)
	for i, val := range values {
		if val.IsNil() {
			continue // Skip missing keys
		}

		str, err := val.ToString()
		if err != nil {
			continue // Skip invalid values
		}

		item, err := decode[T](str)
		if err != nil {
			continue // Skip invalid values
		}

		result[keys[i]] = item
	}
	return result
}

func deleteKeys(ctx context.Context, client rueidis.Client, keyPrefix string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = keyPrefix + key
	}

	cmd := client.B().Del().Key(fullKeys...).Build()
	if err := client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func scanKeys(ctx context.Context, client rueidis.Client, keyPrefix, prefix string) ([]string, error) {
	pattern := escapeGlob(keyPrefix+prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		entry, err := client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
		for _, key := range entry.Elements {
			keys = append(keys, strings.TrimPrefix(key, keyPrefix))
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func ping(ctx context.Context, client rueidis.Client) error {
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
