package bootstrap

import (
	"context"
	"net/http"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Log    zerolog.Logger
	Clock  clockwork.Clock

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	KVClient             rueidis.Client // nil with the memory KV store
	RefreshStore         cache.Cache[string]
	CounterStore         cache.Cache[int64]
	MetricsCache         cache.Cache[int64]
	UserCache            cache.Cache[models.User]
	RateLimitRedisClient *redis.Client
	IdentityVerifier     core.IdentityVerifier

	// Services
	AuditService *services.AuditService
	Services     serviceSet

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application, blocking until shutdown.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	app := &Application{
		Config: cfg,
		Log:    log,
		Clock:  clockwork.NewRealClock(),
	}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg, log); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// RunCleanup deletes expired device codes and audit logs past retention
// once, then exits. It is meant for cron-style deployments.
func RunCleanup(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := validateAllConfiguration(cfg, log); err != nil {
		return err
	}

	db, err := initializeDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	clock := clockwork.NewRealClock()
	deleted, err := db.DeleteExpiredDeviceCodes(ctx, clock.Now().UTC())
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", deleted).Msg("expired device codes removed")

	if cfg.AuditLogRetention > 0 {
		audit := services.NewAuditService(db, false, 0, clock, log)
		removed, err := audit.CleanupOldLogs(ctx, cfg.AuditLogRetention)
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", removed).Msg("old audit logs removed")
	}
	return nil
}

// initializeInfrastructure sets up database, metrics, KV store, caches and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config, app.Log)

	// KV store (refresh records, counters, cached gauge counts)
	kv, err := initializeKVStore(ctx, app.Config, app.Clock, app.Log)
	if err != nil {
		return err
	}
	app.KVClient = kv.client
	app.RefreshStore = kv.refresh
	app.CounterStore = kv.counters
	app.MetricsCache = kv.metrics

	// User cache
	app.UserCache, err = initializeUserCache(ctx, app.Config, app.Clock, app.Log)
	if err != nil {
		return err
	}

	// Redis (for coarse rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config, app.Log)
	if err != nil {
		return err
	}

	// Identity provider (optional)
	app.IdentityVerifier, err = initializeIdentityVerifier(
		app.Config,
		app.MetricsRecorder,
		app.Clock,
		app.Log,
	)
	return err
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
		app.Clock,
		app.Log,
	)

	app.Services = initializeServices(app)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(app)

	var err error
	app.Router, err = setupRouter(app)
	if err != nil {
		return err
	}

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server, app.Log)
	addServerShutdownJob(m, app.Server, app.Config, app.Log)
	addDeviceCodeCleanupJob(m, app.Config, app.Services.flow, app.Clock, app.Log)
	addAuditLogCleanupJob(m, app.Config, app.AuditService, app.Clock, app.Log)
	addMetricsGaugeUpdateJob(m, app)
	addAuditServiceShutdownJob(m, app.Config, app.AuditService, app.Log)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient, app.Log)
	addCacheCleanupJob(m, app)

	// Wait for graceful shutdown
	<-m.Done()
}

// closeInfrastructure releases whatever was opened before a startup failure.
func (app *Application) closeInfrastructure() {
	if app.RateLimitRedisClient != nil {
		_ = app.RateLimitRedisClient.Close()
	}
	if app.UserCache != nil {
		_ = app.UserCache.Close()
	}
	if app.KVClient != nil {
		app.KVClient.Close()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}
