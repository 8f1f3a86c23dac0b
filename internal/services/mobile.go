package services

import (
	"context"
	"strings"

	"github.com/pedalsync/linkgate/internal/models"
)

// SignInWithIDToken signs a mobile app in directly with an ID token from
// the identity provider. When deviceID is given the session is bound to it
// and the device is linked, exactly as after a successful poll.
func (s *DeviceFlowService) SignInWithIDToken(
	ctx context.Context,
	idToken, deviceID, deviceName string,
) (*LinkResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, invalidRequest("id_token is required")
	}
	if deviceID != "" && !validID(deviceID) {
		return nil, invalidRequest("device_id must be between %d and %d characters", minIDLength, maxIDLength)
	}
	if deviceID != "" {
		deviceName = displayName(deviceName)
	}

	user, err := s.users.SignInWithIDToken(ctx, idToken)
	if err != nil {
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventMobileSignIn,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceUser,
			Action:       "mobile sign-in rejected",
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	pair, err := s.tokens.IssueTokens(ctx, user, deviceID, deviceName, GrantMobile)
	if err != nil {
		return nil, err
	}

	if deviceID != "" {
		if _, err := s.registry.Link(ctx, user.ID, deviceID, deviceName); err != nil {
			return nil, err
		}
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventMobileSignIn,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.Email,
		Action:       "mobile sign-in",
		Success:      true,
	})
	return &LinkResult{Tokens: pair, User: user.Profile()}, nil
}
