package handlers

import (
	"net/http"
	"strings"

	"github.com/pedalsync/linkgate/internal/middleware"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderDeviceID names the device a refresh request comes from.
const HeaderDeviceID = "X-Device-ID"

// SessionHandler serves token refresh, sign-in and sign-out.
type SessionHandler struct {
	tokens *services.TokenService
	flow   *services.DeviceFlowService
	log    zerolog.Logger
}

func NewSessionHandler(
	tokens *services.TokenService,
	flow *services.DeviceFlowService,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{tokens: tokens, flow: flow, log: log}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type mobileRequest struct {
	IDToken    string `json:"id_token"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

func bindRefreshToken(c *gin.Context) (string, bool) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		badRequest(c, "refresh_token is required")
		return "", false
	}
	return strings.TrimSpace(req.RefreshToken), true
}

// Refresh handles POST /auth/refresh. A 403 DEVICE_REVOKED answer tells
// the device it was unlinked and must link again.
func (h *SessionHandler) Refresh(c *gin.Context) {
	refreshToken, ok := bindRefreshToken(c)
	if !ok {
		return
	}

	deviceID := strings.TrimSpace(c.GetHeader(HeaderDeviceID))
	grant, err := h.tokens.Refresh(c.Request.Context(), refreshToken, deviceID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{
		"access_token": grant.AccessToken,
		"token_type":   grant.TokenType,
		"expires_in":   grant.ExpiresIn,
	})
}

// Logout handles POST /auth/logout. Logging out twice is not an error.
func (h *SessionHandler) Logout(c *gin.Context) {
	refreshToken, ok := bindRefreshToken(c)
	if !ok {
		return
	}

	revoked, err := h.tokens.Logout(c.Request.Context(), refreshToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{"revoked": revoked})
}

// LogoutAll handles POST /auth/logout/all for the authenticated caller.
func (h *SessionHandler) LogoutAll(c *gin.Context) {
	revoked, err := h.tokens.LogoutAll(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{"revoked_tokens": revoked})
}

// Mobile handles POST /auth/mobile: direct sign-in with an identity
// provider ID token.
func (h *SessionHandler) Mobile(c *gin.Context) {
	var req mobileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with an id_token")
		return
	}

	result, err := h.flow.SignInWithIDToken(
		c.Request.Context(),
		req.IDToken,
		strings.TrimSpace(req.DeviceID),
		req.DeviceName,
	)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, newTokenResponse(result))
}
