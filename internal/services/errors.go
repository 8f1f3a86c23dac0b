package services

import (
	"errors"
	"fmt"
)

// Error values double as the machine-readable codes returned to clients.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrSlowDown             = errors.New("slow_down")
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrExpiredToken         = errors.New("expired_token")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrCodeAlreadyUsed      = errors.New("code_already_used")
	ErrRateLimited          = errors.New("rate_limit_exceeded")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrDeviceRevoked        = errors.New("DEVICE_REVOKED")
	ErrDeviceNotFound       = errors.New("device_not_found")
	ErrUserNotFound         = errors.New("user not found")
	ErrIdentityProvider     = errors.New("identity_provider_error")
)

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
