package bootstrap

import (
	"net/http"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/logger"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/middleware"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(app *Application) (*gin.Engine, error) {
	cfg := app.Config
	log := app.Log

	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(logger.GinMiddleware(log), recovery(log))
	r.Use(util.RequestMetadataMiddleware())

	r.NoRoute(func(c *gin.Context) {
		util.RespondError(c, http.StatusNotFound, "not_found", "No such endpoint")
	})

	// Health check endpoint
	r.GET("/health", app.HandlerSet.health.Health)

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg, log)

	// Setup rate limiting
	rateLimiters, err := setupRateLimiting(cfg, app.MetricsRecorder, app.RateLimitRedisClient, log)
	if err != nil {
		return nil, err
	}

	// Setup all routes
	setupAllRoutes(r, app.HandlerSet, middleware.RequireAccessToken(app.Services.tokens), rateLimiters)

	logServerStartup(cfg, log)
	return r, nil
}

// recovery turns panics into a server_error envelope; the stack trace only
// goes to the log.
func recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("recovered from panic")
		util.AbortWithError(c, http.StatusInternalServerError, "server_error", "An internal error occurred")
	})
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, log zerolog.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info().Msg("Prometheus metrics endpoint disabled")
	case cfg.MetricsToken != "":
		log.Info().Msg("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Info().Msg("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	h handlerSet,
	requireAuth gin.HandlerFunc,
	rateLimiters rateLimitMiddlewares,
) {
	a := r.Group("/auth")

	// Device-code linking. Head units call code and token anonymously; the
	// signed-in rider approves with their own access token.
	device := a.Group("/device")
	{
		device.POST("/code", rateLimiters.deviceCode, h.device.DeviceCode)
		device.POST("/token", rateLimiters.token, h.device.Token)
		device.POST("/authorize", rateLimiters.authorize, requireAuth, h.device.Authorize)
		device.GET("/verify", h.device.Verify)
	}

	// Sessions
	a.POST("/refresh", rateLimiters.refresh, h.session.Refresh)
	a.POST("/logout", h.session.Logout)
	a.POST("/mobile", rateLimiters.mobile, h.session.Mobile)

	// Account routes (require an access token)
	account := a.Group("")
	account.Use(requireAuth)
	{
		account.POST("/logout/all", h.session.LogoutAll)
		account.GET("/devices", h.account.ListDevices)
		account.DELETE("/devices/:id", h.account.UnlinkDevice)
		account.GET("/me", h.account.Me)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	gin.SetMode(ginModeMap[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config, log zerolog.Logger) {
	log.Info().
		Str("addr", cfg.ServerAddr).
		Str("environment", cfg.Environment).
		Str("verification_uri", cfg.BaseURL+"/link").
		Bool("mobile_sign_in", cfg.IdentityAPIURL != "").
		Msg("linkgate server starting")
}
