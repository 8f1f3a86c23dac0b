package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/services"

	"github.com/appleboy/graceful"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const auditCleanupInterval = 24 * time.Hour

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, log zerolog.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("failed to start server")
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(
	m *graceful.Manager,
	srv *http.Server,
	cfg *config.Config,
	log zerolog.Logger,
) {
	m.AddShutdownJob(func() error {
		log.Info().Msg("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
			return err
		}

		log.Info().Msg("server exited")
		return nil
	})
}

// runPeriodically calls fn immediately and then every interval until ctx is done.
func runPeriodically(ctx context.Context, clock clockwork.Clock, interval time.Duration, fn func()) {
	fn()

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// addDeviceCodeCleanupJob periodically deletes expired device-code requests.
// Reads treat expired rows as absent regardless; this only bounds table growth.
func addDeviceCodeCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	flow *services.DeviceFlowService,
	clock clockwork.Clock,
	log zerolog.Logger,
) {
	if cfg.DeviceCodeCleanupInterval <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, clock, cfg.DeviceCodeCleanupInterval, func() {
			cleanupExpiredDeviceCodes(ctx, flow, log)
		})
		return nil
	})
}

func cleanupExpiredDeviceCodes(ctx context.Context, flow *services.DeviceFlowService, log zerolog.Logger) {
	deleted, err := flow.CleanupExpired(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("failed to delete expired device codes")
	case deleted > 0:
		log.Info().Int64("deleted", deleted).Msg("deleted expired device codes")
	}
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
	clock clockwork.Clock,
	log zerolog.Logger,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		runPeriodically(ctx, clock, auditCleanupInterval, func() {
			deleted, err := auditService.CleanupOldLogs(ctx, cfg.AuditLogRetention)
			switch {
			case err != nil:
				log.Error().Err(err).Msg("failed to cleanup old audit logs")
			case deleted > 0:
				log.Info().Int64("deleted", deleted).Msg("cleaned up old audit logs")
			}
		})
		return nil
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(m *graceful.Manager, app *Application) {
	if !app.Config.MetricsEnabled {
		return
	}

	counts := metrics.NewCacheWrapper(app.DB, app.MetricsCache, func() time.Time {
		return app.Clock.Now().UTC()
	})
	updater := metrics.NewGaugeUpdater(
		counts,
		app.MetricsRecorder,
		app.Config.MetricsGaugeUpdateInterval,
		app.Clock,
		app.Log,
	)

	m.AddRunningJob(func(ctx context.Context) error {
		updater.Run(ctx)
		return nil
	})
}

// addAuditServiceShutdownJob adds audit service shutdown handler
func addAuditServiceShutdownJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
	log zerolog.Logger,
) {
	m.AddShutdownJob(func() error {
		log.Info().Msg("shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.AuditShutdownTimeout)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down audit service")
			return err
		}
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client, log zerolog.Logger) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Info().Msg("closing rate limit Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing Redis client")
			return err
		}
		return nil
	})
}

// addCacheCleanupJob closes the user cache and the KV connection on shutdown
func addCacheCleanupJob(m *graceful.Manager, app *Application) {
	m.AddShutdownJob(func() error {
		if err := app.UserCache.Close(); err != nil {
			app.Log.Error().Err(err).Msg("error closing user cache")
		}
		if app.KVClient != nil {
			app.KVClient.Close()
			app.Log.Info().Msg("KV store connection closed")
		}
		return nil
	})
}
