package bootstrap

import (
	"github.com/pedalsync/linkgate/internal/logger"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/token"
)

// serviceSet holds the business services shared by the handlers and jobs
type serviceSet struct {
	tokens   *services.TokenService
	registry *services.DeviceRegistry
	users    *services.UserService
	flow     *services.DeviceFlowService
}

// initializeServices creates all business logic services
func initializeServices(app *Application) serviceSet {
	cfg := app.Config
	log := app.Log

	provider := token.NewLocalTokenProvider(cfg, app.Clock)
	limiter := services.NewRateLimiter(app.CounterStore, cfg.MinPollInterval)

	tokens := services.NewTokenService(
		app.DB,
		provider,
		app.RefreshStore,
		app.AuditService,
		app.MetricsRecorder,
		app.Clock,
		logger.With(log, logger.Fields{"service": "token"}),
	)
	registry := services.NewDeviceRegistry(
		app.DB,
		tokens,
		app.AuditService,
		app.MetricsRecorder,
		app.Clock,
		logger.With(log, logger.Fields{"service": "registry"}),
	)
	users := services.NewUserService(
		app.DB,
		app.IdentityVerifier,
		app.UserCache,
		cfg.UserCacheTTL,
		logger.With(log, logger.Fields{"service": "user"}),
	)
	flow := services.NewDeviceFlowService(
		app.DB,
		cfg,
		limiter,
		tokens,
		registry,
		users,
		app.AuditService,
		app.MetricsRecorder,
		app.Clock,
		logger.With(log, logger.Fields{"service": "device_flow"}),
	)

	return serviceSet{
		tokens:   tokens,
		registry: registry,
		users:    users,
		flow:     flow,
	}
}
