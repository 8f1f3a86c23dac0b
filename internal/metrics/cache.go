package metrics

import (
	"context"
	"time"

	"github.com/pedalsync/linkgate/internal/cache"
)

// countStore is the slice of store.Store the gauges need.
type countStore interface {
	CountActiveDeviceCodes(ctx context.Context, now time.Time) (int64, error)
	CountPendingDeviceCodes(ctx context.Context, now time.Time) (int64, error)
	CountDevices(ctx context.Context) (int64, error)
}

// CacheWrapper provides a read-through cache for gauge counts so that
// several instances sharing Redis run each count query once per TTL.
type CacheWrapper struct {
	store countStore
	cache cache.Cache[int64]
	now   func() time.Time
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store countStore, c cache.Cache[int64], now func() time.Time) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: c,
		now:   now,
	}
}

func (m *CacheWrapper) getCountWithCache(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context) (int64, error),
) (int64, error) {
	return cache.GetWithFetch(
		ctx,
		m.cache,
		key,
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return fetchFunc(ctx)
		},
	)
}

// GetActiveDeviceCodesCount counts unexpired device codes.
func (m *CacheWrapper) GetActiveDeviceCodesCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "device_codes:active", ttl, func(ctx context.Context) (int64, error) {
		return m.store.CountActiveDeviceCodes(ctx, m.now())
	})
}

// GetPendingDeviceCodesCount counts unexpired device codes nobody has authorized yet.
func (m *CacheWrapper) GetPendingDeviceCodesCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "device_codes:pending", ttl, func(ctx context.Context) (int64, error) {
		return m.store.CountPendingDeviceCodes(ctx, m.now())
	})
}

// GetLinkedDevicesCount counts registry entries across all users.
func (m *CacheWrapper) GetLinkedDevicesCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "devices:linked", ttl, m.store.CountDevices)
}
