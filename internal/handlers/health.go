package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is anything with a liveness probe, such as the store or a cache.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports whether the service's backing stores respond.
type HealthHandler struct {
	checks map[string]HealthChecker
	log    zerolog.Logger
}

// NewHealthHandler builds a handler probing every named dependency.
func NewHealthHandler(checks map[string]HealthChecker, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

// Health handles GET /health. It answers 503 when any dependency fails.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	components := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			h.log.Warn().Err(err).Str("component", name).Msg("health check failed")
			components[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	c.JSON(status, util.Envelope{
		Success: status == http.StatusOK,
		Data:    components,
	})
}
