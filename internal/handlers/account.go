package handlers

import (
	"errors"
	"net/http"

	"github.com/pedalsync/linkgate/internal/middleware"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AccountHandler serves the endpoints a signed-in user calls about their
// own account. Every route requires middleware.RequireAccessToken.
type AccountHandler struct {
	registry *services.DeviceRegistry
	users    *services.UserService
	log      zerolog.Logger
}

func NewAccountHandler(
	registry *services.DeviceRegistry,
	users *services.UserService,
	log zerolog.Logger,
) *AccountHandler {
	return &AccountHandler{registry: registry, users: users, log: log}
}

// ListDevices handles GET /auth/devices.
func (h *AccountHandler) ListDevices(c *gin.Context) {
	devices, err := h.registry.ListDevices(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{"devices": devices})
}

// UnlinkDevice handles DELETE /auth/devices/:id.
func (h *AccountHandler) UnlinkDevice(c *gin.Context) {
	revoked, err := h.registry.UnlinkDevice(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{
		"unlinked":       true,
		"revoked_tokens": revoked,
	})
}

// Me handles GET /auth/me.
func (h *AccountHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			util.RespondError(c, http.StatusNotFound, "user_not_found", "The account no longer exists")
			return
		}
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, user.Profile())
}
