package bootstrap

import (
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/handlers"
	"github.com/pedalsync/linkgate/internal/logger"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	device  *handlers.DeviceHandler
	session *handlers.SessionHandler
	account *handlers.AccountHandler
	health  *handlers.HealthHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(app *Application) handlerSet {
	log := logger.With(app.Log, logger.Fields{"component": "http"})

	checks := map[string]handlers.HealthChecker{
		"database": app.DB,
		"kv":       app.RefreshStore,
	}
	if app.Config.UserCacheType != config.UserCacheTypeMemory {
		checks["user_cache"] = app.UserCache
	}

	return handlerSet{
		device:  handlers.NewDeviceHandler(app.Services.flow, log),
		session: handlers.NewSessionHandler(app.Services.tokens, app.Services.flow, log),
		account: handlers.NewAccountHandler(app.Services.registry, app.Services.users, log),
		health:  handlers.NewHealthHandler(checks, log),
	}
}
