package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	minIDLength       = 8
	maxIDLength       = 64
	maxDeviceNameLen  = 255
	userCodeAttempts  = 5
	verificationPath  = "/link"
	pollResultSuccess = "success"
)

// IssuedCode is what a device receives when it starts linking.
type IssuedCode struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int
	Interval                int
	Reused                  bool
}

// LinkResult is returned to a device once its code has been authorized.
type LinkResult struct {
	Tokens *TokenPair
	User   models.Profile
}

// DeviceFlowService runs the device-code linking state machine:
// issue, verify, authorize, poll.
type DeviceFlowService struct {
	store    *store.Store
	config   *config.Config
	limiter  *RateLimiter
	tokens   *TokenService
	registry *DeviceRegistry
	users    *UserService
	audit    *AuditService
	metrics  metrics.Recorder
	clock    clockwork.Clock
	log      zerolog.Logger
}

func NewDeviceFlowService(
	s *store.Store,
	cfg *config.Config,
	limiter *RateLimiter,
	tokens *TokenService,
	registry *DeviceRegistry,
	users *UserService,
	auditService *AuditService,
	m metrics.Recorder,
	clock clockwork.Clock,
	log zerolog.Logger,
) *DeviceFlowService {
	return &DeviceFlowService{
		store:    s,
		config:   cfg,
		limiter:  limiter,
		tokens:   tokens,
		registry: registry,
		users:    users,
		audit:    auditService,
		metrics:  m,
		clock:    clock,
		log:      log,
	}
}

func validID(id string) bool {
	return len(id) >= minIDLength && len(id) <= maxIDLength
}

func (s *DeviceFlowService) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *DeviceFlowService) issued(dc *models.DeviceCode, now time.Time, reused bool) *IssuedCode {
	uri := strings.TrimRight(s.config.BaseURL, "/") + verificationPath
	return &IssuedCode{
		DeviceCode:              dc.DeviceCode,
		UserCode:                dc.UserCode,
		VerificationURI:         uri,
		VerificationURIComplete: uri + "?code=" + dc.UserCode,
		ExpiresIn:               dc.RemainingSeconds(now),
		Interval:                s.config.PollingInterval,
		Reused:                  reused,
	}
}

// IssueCode starts linking deviceID. A device that already has an
// unexpired request gets the same codes back with the time left on them.
func (s *DeviceFlowService) IssueCode(ctx context.Context, deviceID, deviceName string) (*IssuedCode, error) {
	if !validID(deviceID) {
		return nil, invalidRequest("device_id must be between %d and %d characters", minIDLength, maxIDLength)
	}
	deviceName = strings.TrimSpace(deviceName)
	if len(deviceName) > maxDeviceNameLen {
		return nil, invalidRequest("device_name must be at most %d characters", maxDeviceNameLen)
	}

	now := s.now()
	if _, err := s.store.DeleteExpiredDeviceCodesForDevice(ctx, deviceID, now); err != nil {
		s.metrics.RecordDeviceCodeGenerated("error")
		return nil, fmt.Errorf("failed to purge expired device codes: %w", err)
	}

	active, err := s.store.GetActiveDeviceCodeForDevice(ctx, deviceID, now)
	switch {
	case err == nil:
		s.metrics.RecordDeviceCodeGenerated("reused")
		return s.issued(active, now, true), nil
	case !errors.Is(err, store.ErrRecordNotFound):
		s.metrics.RecordDeviceCodeGenerated("error")
		return nil, fmt.Errorf("failed to look up active device code: %w", err)
	}

	dc, err := s.createDeviceCode(ctx, deviceID, displayName(deviceName), now)
	if err != nil {
		s.metrics.RecordDeviceCodeGenerated("error")
		return nil, err
	}

	s.metrics.RecordDeviceCodeGenerated("created")
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceCodeGenerated,
		ResourceType: models.ResourceDeviceCode,
		ResourceID:   deviceID,
		ResourceName: dc.DeviceName,
		Action:       "device code issued",
		Details:      models.AuditDetails{"device_code": dc.DeviceCode},
		Success:      true,
	})
	return s.issued(dc, now, false), nil
}

// createDeviceCode inserts a new request, drawing a fresh user code when
// the unique index reports a collision with another live request.
func (s *DeviceFlowService) createDeviceCode(
	ctx context.Context,
	deviceID, deviceName string,
	now time.Time,
) (*models.DeviceCode, error) {
	for attempt := 1; ; attempt++ {
		userCode, err := GenerateUserCode()
		if err != nil {
			return nil, err
		}

		dc := &models.DeviceCode{
			DeviceCode: GenerateDeviceCode(),
			UserCode:   userCode,
			DeviceID:   deviceID,
			DeviceName: deviceName,
			Status:     models.DeviceCodeStatusPending,
			ExpiresAt:  now.Add(s.config.DeviceCodeExpiration),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err = s.store.CreateDeviceCode(ctx, dc)
		if err == nil {
			return dc, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) || attempt >= userCodeAttempts {
			return nil, fmt.Errorf("failed to create device code: %w", err)
		}
		s.log.Warn().Int("attempt", attempt).Msg("user code collision, retrying")
	}
}

// PollToken is called by the device until the user has authorized it.
// Unknown and expired device codes both yield ErrExpiredToken.
func (s *DeviceFlowService) PollToken(ctx context.Context, deviceCode string) (*LinkResult, error) {
	if !IsDeviceCodeFormat(deviceCode) {
		s.metrics.RecordPoll("invalid_request")
		return nil, invalidRequest("device_code is malformed")
	}

	tooFast, err := s.limiter.CheckPollInterval(ctx, deviceCode)
	if err != nil {
		s.log.Warn().Err(err).Msg("poll interval check failed, allowing poll")
	}
	if tooFast {
		s.metrics.RecordPoll("slow_down")
		return nil, ErrSlowDown
	}

	now := s.now()
	dc, err := s.store.GetDeviceCodeByDeviceCode(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordPoll("expired_token")
			return nil, ErrExpiredToken
		}
		s.metrics.RecordPoll("error")
		return nil, fmt.Errorf("failed to look up device code: %w", err)
	}

	if dc.IsExpired(now) {
		s.purge(ctx, dc)
		s.metrics.RecordPoll("expired_token")
		return nil, ErrExpiredToken
	}

	if dc.IsPending() {
		s.metrics.RecordPoll("authorization_pending")
		return nil, ErrAuthorizationPending
	}

	if dc.UserID == nil || *dc.UserID == "" {
		s.metrics.RecordPoll("error")
		s.log.Error().Int64("id", dc.ID).Msg("device code authorized without a user")
		return nil, fmt.Errorf("device code %d is authorized without a user", dc.ID)
	}

	result, err := s.completeLink(ctx, dc)
	if errors.Is(err, ErrExpiredToken) {
		s.metrics.RecordPoll("expired_token")
		return nil, err
	}
	if err != nil {
		s.metrics.RecordPoll("error")
		return nil, err
	}
	s.metrics.RecordPoll(pollResultSuccess)
	return result, nil
}

func (s *DeviceFlowService) completeLink(ctx context.Context, dc *models.DeviceCode) (*LinkResult, error) {
	user, err := s.users.GetUser(ctx, *dc.UserID)
	if errors.Is(err, ErrUserNotFound) {
		// The account went away after approving; the device has to start over.
		s.purge(ctx, dc)
		return nil, ErrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load authorizing user: %w", err)
	}

	// Claiming the row first means two racing polls cannot both get tokens.
	if err := s.store.DeleteDeviceCode(ctx, dc.ID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("failed to consume device code: %w", err)
	}

	pair, err := s.tokens.IssueTokens(ctx, user, dc.DeviceID, dc.DeviceName, GrantDeviceCode)
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.Link(ctx, user.ID, dc.DeviceID, dc.DeviceName); err != nil {
		if revokeErr := s.tokens.RevokeRefreshToken(ctx, user.ID, pair.RefreshToken); revokeErr != nil {
			s.log.Error().Err(revokeErr).Str("user_id", user.ID).Msg("failed to revoke refresh token of failed link")
		}
		return nil, err
	}

	return &LinkResult{Tokens: pair, User: user.Profile()}, nil
}

func (s *DeviceFlowService) purge(ctx context.Context, dc *models.DeviceCode) {
	err := s.store.DeleteDeviceCode(ctx, dc.ID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		s.log.Warn().Err(err).Int64("id", dc.ID).Msg("failed to delete expired device code")
	}
}

// lookupUserCode finds the live request for a user-typed code.
func (s *DeviceFlowService) lookupUserCode(
	ctx context.Context,
	input string,
	now time.Time,
) (*models.DeviceCode, error) {
	userCode, ok := NormalizeUserCode(input)
	if !ok {
		return nil, invalidRequest("code must look like ABCD-1234")
	}

	dc, err := s.store.GetDeviceCodeByUserCode(ctx, userCode)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up user code: %w", err)
	}

	if dc.IsExpired(now) {
		s.purge(ctx, dc)
		return nil, ErrInvalidCode
	}
	return dc, nil
}

// Authorize binds the request behind userCode to userID. The update is a
// single conditional statement; success is only reported after re-reading
// the row and seeing it authorized for userID.
func (s *DeviceFlowService) Authorize(ctx context.Context, userCode, userID string) (*models.DeviceCode, error) {
	if !validID(userID) {
		return nil, invalidRequest("user_id must be between %d and %d characters", minIDLength, maxIDLength)
	}

	now := s.now()
	dc, err := s.lookupUserCode(ctx, userCode, now)
	if err != nil {
		return nil, err
	}
	if dc.IsAuthorized() {
		return nil, ErrCodeAlreadyUsed
	}

	// A request bound to a missing account could never be redeemed and
	// would shadow the device's next code request until it expired.
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, invalidRequest("user_id does not match an account")
		}
		return nil, fmt.Errorf("failed to load authorizing user: %w", err)
	}

	err = s.store.AuthorizeDeviceCode(ctx, dc.UserCode, userID, now)
	if err != nil && !errors.Is(err, store.ErrDeviceCodeNotPending) {
		return nil, fmt.Errorf("failed to authorize device code: %w", err)
	}
	if errors.Is(err, store.ErrDeviceCodeNotPending) {
		// Lost a race or expired in between; the re-read below decides which.
		current, lookupErr := s.lookupUserCode(ctx, dc.UserCode, now)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if current.IsAuthorized() {
			return nil, ErrCodeAlreadyUsed
		}
		return nil, fmt.Errorf("device code %d was not updated", dc.ID)
	}

	confirmed, err := s.store.GetDeviceCodeByUserCode(ctx, dc.UserCode)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm authorization: %w", err)
	}
	if !confirmed.IsAuthorized() || confirmed.UserID == nil || *confirmed.UserID != userID {
		return nil, fmt.Errorf("%w: authorization could not be confirmed", ErrCodeAlreadyUsed)
	}

	s.metrics.RecordDeviceCodeAuthorized(now.Sub(dc.CreatedAt))
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceCodeAuthorized,
		ActorUserID:  userID,
		ResourceType: models.ResourceDeviceCode,
		ResourceID:   confirmed.DeviceID,
		ResourceName: confirmed.DeviceName,
		Action:       "device code authorized",
		Success:      true,
	})
	return confirmed, nil
}

// VerifyCode checks a user code before the web UI asks the user to sign in.
// Attempts are limited per client IP.
func (s *DeviceFlowService) VerifyCode(ctx context.Context, code, clientIP string) (*models.DeviceCode, error) {
	exceeded, err := s.limiter.CheckRateLimit(
		ctx,
		"verify:"+clientIP,
		s.config.VerifyRateLimit,
		s.config.VerifyRateWindow,
	)
	if err != nil {
		s.log.Warn().Err(err).Msg("verify rate limit check failed, allowing request")
	}
	if exceeded {
		s.metrics.RecordDeviceCodeValidation("rate_limited")
		s.metrics.RecordRateLimitExceeded("verify")
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventRateLimitExceeded,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceDeviceCode,
			Action:       "user code verification throttled",
			Success:      false,
		})
		return nil, ErrRateLimited
	}

	dc, err := s.lookupUserCode(ctx, code, s.now())
	if err != nil {
		s.metrics.RecordDeviceCodeValidation("invalid")
		return nil, err
	}
	if dc.IsAuthorized() {
		s.metrics.RecordDeviceCodeValidation("already_used")
		return nil, ErrCodeAlreadyUsed
	}

	s.metrics.RecordDeviceCodeValidation("valid")
	return dc, nil
}

// CleanupExpired deletes every expired request.
func (s *DeviceFlowService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredDeviceCodes(ctx, s.now())
}
