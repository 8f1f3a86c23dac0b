package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"
	"github.com/pedalsync/linkgate/internal/token"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	refreshKeyPrefix = "refresh:"
	// refreshKeySuffixLen characters from the end of a refresh token identify
	// its record; the tail of a JWT is signature bytes.
	refreshKeySuffixLen = 16

	GrantDeviceCode = "device_code"
	GrantMobile     = "mobile"

	revokeReasonLogout        = "logout"
	revokeReasonLogoutAll     = "logout_all"
	revokeReasonDeviceUnlink  = "device_unlinked"
	revokeReasonDeviceRevoked = "device_revoked"
)

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // access token lifetime in seconds
}

// AccessGrant is the result of exchanging a refresh token.
type AccessGrant struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// TokenService issues signed tokens and owns the refresh-token records
// that make refresh tokens revocable.
type TokenService struct {
	store    *store.Store
	provider *token.LocalTokenProvider
	kv       cache.Cache[string]
	audit    *AuditService
	metrics  metrics.Recorder
	clock    clockwork.Clock
	log      zerolog.Logger
}

func NewTokenService(
	s *store.Store,
	provider *token.LocalTokenProvider,
	kv cache.Cache[string],
	auditService *AuditService,
	m metrics.Recorder,
	clock clockwork.Clock,
	log zerolog.Logger,
) *TokenService {
	return &TokenService{
		store:    s,
		provider: provider,
		kv:       kv,
		audit:    auditService,
		metrics:  m,
		clock:    clock,
		log:      log,
	}
}

// keySegment escapes the separator so one user's prefix can never match
// another user's keys.
var keySegment = strings.NewReplacer("%", "%25", ":", "%3A")

func refreshKey(userID, refreshToken string) string {
	suffix := refreshToken
	if len(suffix) > refreshKeySuffixLen {
		suffix = suffix[len(suffix)-refreshKeySuffixLen:]
	}
	return userRefreshPrefix(userID) + suffix
}

func userRefreshPrefix(userID string) string {
	return refreshKeyPrefix + keySegment.Replace(userID) + ":"
}

func identityOf(user *models.User) token.Identity {
	return token.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}
}

// CreateTokens signs an access and a refresh token for user. Nothing is
// stored; see StoreRefreshRecord.
func (s *TokenService) CreateTokens(user *models.User) (*TokenPair, error) {
	id := identityOf(user)

	access, err := s.provider.GenerateAccessToken(id)
	if err != nil {
		return nil, err
	}
	refresh, err := s.provider.GenerateRefreshToken(id)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access.TokenString,
		RefreshToken: refresh.TokenString,
		TokenType:    access.TokenType,
		ExpiresIn:    int(s.provider.AccessTTL().Seconds()),
	}, nil
}

// StoreRefreshRecord makes refreshToken usable and binds it to a device.
func (s *TokenService) StoreRefreshRecord(
	ctx context.Context,
	userID, refreshToken, deviceID, deviceName string,
) error {
	record, err := json.Marshal(models.RefreshTokenRecord{
		CreatedAt:  s.clock.Now().UTC(),
		DeviceID:   deviceID,
		DeviceName: deviceName,
	})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, refreshKey(userID, refreshToken), string(record), s.provider.RefreshTTL())
}

// IssueTokens creates a token pair and stores its refresh record.
func (s *TokenService) IssueTokens(
	ctx context.Context,
	user *models.User,
	deviceID, deviceName, grantType string,
) (*TokenPair, error) {
	pair, err := s.CreateTokens(user)
	if err != nil {
		return nil, err
	}
	if err := s.StoreRefreshRecord(ctx, user.ID, pair.RefreshToken, deviceID, deviceName); err != nil {
		return nil, fmt.Errorf("failed to store refresh token record: %w", err)
	}

	s.metrics.RecordTokenIssued(grantType)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAccessTokenIssued,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceToken,
		ResourceID:   deviceID,
		ResourceName: deviceName,
		Action:       "token pair issued",
		Details:      models.AuditDetails{"grant_type": grantType},
		Success:      true,
	})
	return pair, nil
}

// VerifyAccessToken returns the claims of a valid access token, or an error
// matching ErrInvalidToken for anything else.
func (s *TokenService) VerifyAccessToken(tokenString string) (*token.Claims, error) {
	claims, err := s.provider.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyRefreshToken checks the signature, issuer, audience and expiry of
// a refresh token. Revocation is checked separately by Refresh.
func (s *TokenService) VerifyRefreshToken(tokenString string) (*token.Claims, error) {
	claims, err := s.provider.ValidateRefreshToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// RevokeRefreshToken deletes the record of one refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, userID, refreshToken string) error {
	return s.kv.Delete(ctx, refreshKey(userID, refreshToken))
}

// RevokeAllRefreshTokens deletes every refresh record of userID.
func (s *TokenService) RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error) {
	keys, err := s.kv.Keys(ctx, userRefreshPrefix(userID))
	if err != nil {
		return 0, err
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	s.metrics.RecordTokensRevoked(revokeReasonLogoutAll, len(keys))
	return len(keys), nil
}

// RevokeRefreshTokensForDevice deletes the refresh records of userID bound
// to deviceID and returns how many went. Records that cannot be parsed are
// skipped.
func (s *TokenService) RevokeRefreshTokensForDevice(
	ctx context.Context,
	userID, deviceID string,
) (int, error) {
	keys, err := s.kv.Keys(ctx, userRefreshPrefix(userID))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	values, err := s.kv.MGet(ctx, keys)
	if err != nil {
		return 0, err
	}

	var matched []string
	for key, raw := range values {
		var record models.RefreshTokenRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.log.Warn().Str("key", key).Msg("skipping malformed refresh token record")
			continue
		}
		if record.DeviceID == deviceID {
			matched = append(matched, key)
		}
	}

	if err := s.kv.Delete(ctx, matched...); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Refresh exchanges a live refresh token for a new access token. When the
// device the token is bound to (the X-Device-ID header wins over the stored
// record) is no longer linked, the refresh token is revoked and
// ErrDeviceRevoked returned.
func (s *TokenService) Refresh(
	ctx context.Context,
	refreshToken, headerDeviceID string,
) (*AccessGrant, error) {
	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.metrics.RecordTokenRefresh("invalid")
		return nil, err
	}
	userID := claims.Subject
	key := refreshKey(userID, refreshToken)

	var record models.RefreshTokenRecord
	raw, err := s.kv.Get(ctx, key)
	found := err == nil
	switch {
	case found:
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.log.Warn().Str("user_id", userID).Msg("refresh token record is malformed")
		}
	case !errors.Is(err, cache.ErrCacheMiss):
		s.metrics.RecordTokenRefresh("error")
		return nil, fmt.Errorf("failed to read refresh token record: %w", err)
	}

	// The device check runs before the revocation check so that a device
	// whose tokens went with its unlinking still learns it was unlinked.
	deviceID := headerDeviceID
	if deviceID == "" {
		deviceID = record.DeviceID
	}
	if deviceID != "" {
		if err := s.checkDeviceLinked(ctx, userID, deviceID, key, found); err != nil {
			return nil, err
		}
	}

	if !found {
		s.metrics.RecordTokenRefresh("invalid")
		return nil, fmt.Errorf("%w: refresh token has been revoked", ErrInvalidToken)
	}

	access, err := s.provider.GenerateAccessToken(claims.Identity())
	if err != nil {
		s.metrics.RecordTokenRefresh("error")
		return nil, err
	}

	s.metrics.RecordTokenRefresh("success")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRefreshed,
		ActorUserID:  userID,
		ResourceType: models.ResourceToken,
		ResourceID:   deviceID,
		Action:       "access token refreshed",
		Success:      true,
	})

	return &AccessGrant{
		AccessToken: access.TokenString,
		TokenType:   access.TokenType,
		ExpiresIn:   int(s.provider.AccessTTL().Seconds()),
	}, nil
}

func (s *TokenService) checkDeviceLinked(
	ctx context.Context,
	userID, deviceID, key string,
	recordExists bool,
) error {
	_, err := s.store.GetDevice(ctx, userID, deviceID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		s.metrics.RecordTokenRefresh("error")
		return fmt.Errorf("failed to look up device: %w", err)
	}

	if recordExists {
		if err := s.kv.Delete(ctx, key); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("failed to revoke refresh token of unlinked device")
		} else {
			s.metrics.RecordTokensRevoked(revokeReasonDeviceRevoked, 1)
		}
	}
	s.metrics.RecordTokenRefresh("device_revoked")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceRevoked,
		Severity:     models.SeverityWarning,
		ActorUserID:  userID,
		ResourceType: models.ResourceDevice,
		ResourceID:   deviceID,
		Action:       "refresh attempted from unlinked device",
		Success:      false,
	})
	return ErrDeviceRevoked
}

// Logout revokes one refresh token. It reports false when the token was
// not a valid refresh token or had already been revoked.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return false, nil
	}

	key := refreshKey(claims.Subject, refreshToken)
	if _, err := s.kv.Get(ctx, key); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	if err := s.RevokeRefreshToken(ctx, claims.Subject, refreshToken); err != nil {
		return false, err
	}

	s.metrics.RecordTokensRevoked(revokeReasonLogout, 1)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRevoked,
		ActorUserID:  claims.Subject,
		ResourceType: models.ResourceToken,
		Action:       "refresh token revoked on logout",
		Success:      true,
	})
	return true, nil
}

// LogoutAll revokes every refresh token of userID.
func (s *TokenService) LogoutAll(ctx context.Context, userID string) (int, error) {
	revoked, err := s.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenRevoked,
		ActorUserID:  userID,
		ResourceType: models.ResourceUser,
		ResourceID:   userID,
		Action:       "all refresh tokens revoked",
		Details:      models.AuditDetails{"revoked": revoked},
		Success:      true,
	})
	return revoked, nil
}
