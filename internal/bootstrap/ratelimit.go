package bootstrap

import (
	"fmt"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// rateLimitMiddlewares holds coarse per-IP throttles for the public endpoints
type rateLimitMiddlewares struct {
	deviceCode gin.HandlerFunc
	token      gin.HandlerFunc
	refresh    gin.HandlerFunc
	mobile     gin.HandlerFunc
	authorize  gin.HandlerFunc
}

func noOpMiddleware(c *gin.Context) { c.Next() }

// setupRateLimiting configures rate limiting middlewares based on configuration
func setupRateLimiting(
	cfg *config.Config,
	recorder metrics.Recorder,
	redisClient *redis.Client,
	log zerolog.Logger,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		log.Info().Msg("coarse rate limiting disabled")
		return rateLimitMiddlewares{
			deviceCode: noOpMiddleware,
			token:      noOpMiddleware,
			refresh:    noOpMiddleware,
			mobile:     noOpMiddleware,
			authorize:  noOpMiddleware,
		}, nil
	}

	log.Info().Str("store", cfg.RateLimitStore).Msg("coarse rate limiting enabled")

	var firstErr error
	createLimiter := func(requestsPerMinute int, scope string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			Scope:             scope,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient,
			Metrics:           recorder,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for %s: %w", scope, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		deviceCode: createLimiter(cfg.DeviceCodeRateLimit, "device_code"),
		token:      createLimiter(cfg.TokenRateLimit, "device_token"),
		refresh:    createLimiter(cfg.RefreshRateLimit, "refresh"),
		mobile:     createLimiter(cfg.MobileRateLimit, "mobile"),
		authorize:  createLimiter(cfg.AuthorizeRateLimit, "authorize"),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
