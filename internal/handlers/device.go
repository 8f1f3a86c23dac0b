package handlers

import (
	"net/http"

	"github.com/pedalsync/linkgate/internal/middleware"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DeviceHandler serves the device-code linking endpoints.
type DeviceHandler struct {
	flow *services.DeviceFlowService
	log  zerolog.Logger
}

func NewDeviceHandler(flow *services.DeviceFlowService, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{flow: flow, log: log}
}

type deviceCodeRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type pollRequest struct {
	DeviceCode string `json:"device_code"`
}

// authorizeRequest names the approving account through the bearer token.
// UserID is optional and, when sent, must match it.
type authorizeRequest struct {
	UserCode string `json:"user_code"`
	UserID   string `json:"user_id"`
}

// tokenResponse is returned by every endpoint that signs a user in.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         any    `json:"user"`
}

func newTokenResponse(result *services.LinkResult) tokenResponse {
	return tokenResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    result.Tokens.TokenType,
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         result.User,
	}
}

// DeviceCode handles POST /auth/device/code.
// A head unit calls it to start linking.
func (h *DeviceHandler) DeviceCode(c *gin.Context) {
	var req deviceCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with a device_id")
		return
	}

	issued, err := h.flow.IssueCode(c.Request.Context(), req.DeviceID, req.DeviceName)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{
		"device_code":               issued.DeviceCode,
		"user_code":                 issued.UserCode,
		"verification_uri":          issued.VerificationURI,
		"verification_uri_complete": issued.VerificationURIComplete,
		"expires_in":                issued.ExpiresIn,
		"interval":                  issued.Interval,
	})
}

// Token handles POST /auth/device/token. Pending, slow_down and expired
// answers are ordinary 400 responses the device polls through.
func (h *DeviceHandler) Token(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with a device_code")
		return
	}

	result, err := h.flow.PollToken(c.Request.Context(), req.DeviceCode)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, newTokenResponse(result))
}

// Authorize handles POST /auth/device/authorize, called with the rider's
// access token once they have confirmed the code. The code is bound to the
// token's subject.
func (h *DeviceHandler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with user_code")
		return
	}

	userID := middleware.GetUserID(c)
	if req.UserID != "" && req.UserID != userID {
		util.RespondError(c, http.StatusForbidden, codeForbidden, "user_id does not match the signed-in account")
		return
	}

	dc, err := h.flow.Authorize(c.Request.Context(), req.UserCode, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{
		"device_name": dc.DeviceName,
		"authorized":  true,
	})
}

// Verify handles GET /auth/device/verify?code=.
func (h *DeviceHandler) Verify(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		badRequest(c, "code is required")
		return
	}

	dc, err := h.flow.VerifyCode(c.Request.Context(), code, c.ClientIP())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	util.RespondOK(c, http.StatusOK, gin.H{
		"device_name": dc.DeviceName,
		"valid":       true,
	})
}
