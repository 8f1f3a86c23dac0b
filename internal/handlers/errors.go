package handlers

import (
	"errors"
	"net/http"

	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	codeInvalidRequest = "invalid_request"
	codeServerError    = "server_error"
	codeForbidden      = "forbidden"
)

type errorMapping struct {
	err         error
	status      int
	description string
}

// errorMappings translates service errors into envelope codes. The code is
// the error's own text, so the order only matters for wrapped chains.
var errorMappings = []errorMapping{
	{services.ErrSlowDown, http.StatusBadRequest, "Polling too fast; increase the interval by 5 seconds"},
	{services.ErrAuthorizationPending, http.StatusBadRequest, "The user has not yet entered the code"},
	{services.ErrExpiredToken, http.StatusBadRequest, "The device code has expired; request a new one"},
	{services.ErrInvalidCode, http.StatusBadRequest, "The code is unknown or has expired"},
	{services.ErrCodeAlreadyUsed, http.StatusBadRequest, "The code has already been used"},
	{services.ErrRateLimited, http.StatusTooManyRequests, "Too many attempts; try again later"},
	{services.ErrInvalidToken, http.StatusUnauthorized, "The token is invalid, expired or revoked"},
	{services.ErrDeviceRevoked, http.StatusForbidden, "This device was unlinked; link it again"},
	{services.ErrDeviceNotFound, http.StatusNotFound, "No such device is linked to this account"},
	{services.ErrIdentityProvider, http.StatusBadGateway, "The identity provider could not be reached"},
}

// respondError converts err into the error envelope. Validation errors
// carry their own description; unexpected errors are logged and reported
// as server_error without details.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	if errors.Is(err, services.ErrInvalidRequest) {
		util.RespondError(c, http.StatusBadRequest, codeInvalidRequest, validationMessage(err))
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			util.RespondError(c, m.status, m.err.Error(), m.description)
			return
		}
	}

	log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	util.RespondError(c, http.StatusInternalServerError, codeServerError, "An internal error occurred")
}

// validationMessage strips the "invalid_request: " prefix.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := services.ErrInvalidRequest.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func badRequest(c *gin.Context, description string) {
	util.RespondError(c, http.StatusBadRequest, codeInvalidRequest, description)
}
