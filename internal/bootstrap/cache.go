package bootstrap

import (
	"context"
	"fmt"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog"
)

const (
	kvKeyPrefix      = "linkgate:"
	metricsKeyPrefix = "linkgate:metrics:"
	userKeyPrefix    = "linkgate:users:"
)

// kvStores are the typed views over the KV store. With Redis they share
// one connection, owned by client.
type kvStores struct {
	client   rueidis.Client
	refresh  cache.Cache[string]
	counters cache.Cache[int64]
	metrics  cache.Cache[int64]
}

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, log zerolog.Logger) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info().Msg("Prometheus metrics initialized")
	} else {
		log.Info().Msg("metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeKVStore opens the store holding refresh-token records and
// rate-limit counters.
func initializeKVStore(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	log zerolog.Logger,
) (*kvStores, error) {
	switch cfg.KVStore {
	case config.KVStoreRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
		defer cancel()

		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis KV store: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("KV store: redis")
		return &kvStores{
			client:   client,
			refresh:  cache.NewRueidisCacheWithClient[string](client, kvKeyPrefix),
			counters: cache.NewRueidisCacheWithClient[int64](client, kvKeyPrefix),
			metrics:  cache.NewRueidisCacheWithClient[int64](client, metricsKeyPrefix),
		}, nil

	default: // memory
		log.Info().Msg("KV store: memory (single instance only)")
		return &kvStores{
			refresh:  cache.NewMemoryCache[string](cache.WithClock(clock)),
			counters: cache.NewMemoryCache[int64](cache.WithClock(clock)),
			metrics:  cache.NewMemoryCache[int64](cache.WithClock(clock)),
		}, nil
	}
}

// initializeUserCache initializes the user cache (always enabled, defaults to memory)
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	log zerolog.Logger,
) (cache.Cache[models.User], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.UserCacheType {
	case config.UserCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[models.User](
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			userKeyPrefix,
			cfg.UserCacheClientTTL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside user cache: %w", err)
		}
		if err := c.Health(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to reach redis-aside user cache: %w", err)
		}
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Dur("client_ttl", cfg.UserCacheClientTTL).
			Msg("user cache: redis-aside")
		return c, nil

	case config.UserCacheTypeRedis:
		c, err := cache.NewRueidisCache[models.User](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			userKeyPrefix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis user cache: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("user cache: redis")
		return c, nil

	default: // memory
		log.Info().Msg("user cache: memory (single instance only)")
		return cache.NewMemoryCache[models.User](cache.WithClock(clock)), nil
	}
}
