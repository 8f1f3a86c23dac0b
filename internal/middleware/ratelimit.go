package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

var errRedisClientRequired = errors.New("redis rate limit store requires a redis client")

// RateLimitConfig configures coarse per-IP throttling for one route group.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	// Scope labels the rate_limit_exceeded metric and namespaces the store keys.
	Scope string

	StoreType   string        // config.RateLimitStoreMemory or config.RateLimitStoreRedis
	RedisClient *redis.Client // required for the redis store, shared across limiters

	Metrics metrics.Recorder
}

// NewRateLimiter returns a gin middleware that allows RequestsPerMinute
// requests per client IP and answers the rest with 429.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit for %q must be positive", cfg.Scope)
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	}
	options := limiter.StoreOptions{
		Prefix:          "linkgate:throttle:" + cfg.Scope,
		CleanUpInterval: cfg.CleanupInterval,
	}

	var store limiter.Store
	switch cfg.StoreType {
	case config.RateLimitStoreRedis:
		if cfg.RedisClient == nil {
			return nil, errRedisClientRequired
		}
		var err error
		store, err = limiterRedis.NewStoreWithOptions(cfg.RedisClient, options)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	default:
		store = memory.NewStoreWithOptions(options)
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopMetrics()
	}

	return mgin.NewMiddleware(
		limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			m.RecordRateLimitExceeded(cfg.Scope)
			util.AbortWithError(
				c,
				http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
			)
		}),
	), nil
}
