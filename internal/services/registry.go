package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const defaultDeviceName = "Head unit"

// DeviceRegistry manages the devices linked to each account.
type DeviceRegistry struct {
	store   *store.Store
	tokens  *TokenService
	audit   *AuditService
	metrics metrics.Recorder
	clock   clockwork.Clock
	log     zerolog.Logger
}

func NewDeviceRegistry(
	s *store.Store,
	tokens *TokenService,
	auditService *AuditService,
	m metrics.Recorder,
	clock clockwork.Clock,
	log zerolog.Logger,
) *DeviceRegistry {
	return &DeviceRegistry{
		store:   s,
		tokens:  tokens,
		audit:   auditService,
		metrics: m,
		clock:   clock,
		log:     log,
	}
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultDeviceName
	}
	return name
}

// Link registers deviceID for userID, or renames it and marks it as just
// synced when it is already linked.
func (r *DeviceRegistry) Link(ctx context.Context, userID, deviceID, deviceName string) (*models.Device, error) {
	now := r.clock.Now().UTC()
	device := &models.Device{
		ID:        deviceID,
		UserID:    userID,
		Name:      displayName(deviceName),
		Type:      models.DeviceTypeHeadUnit,
		LastSync:  now,
		CreatedAt: now,
	}
	if err := r.store.UpsertDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to link device: %w", err)
	}

	r.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceLinked,
		ActorUserID:  userID,
		ResourceType: models.ResourceDevice,
		ResourceID:   deviceID,
		ResourceName: device.Name,
		Action:       "device linked",
		Success:      true,
	})
	return device, nil
}

func (r *DeviceRegistry) GetDevice(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	device, err := r.store.GetDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound
	}
	return device, err
}

// ListDevices returns the devices of userID, most recently synced first.
func (r *DeviceRegistry) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	devices, err := r.store.ListDevices(ctx, userID)
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []models.Device{}
	}
	return devices, nil
}

// UnlinkDevice removes the device and revokes the refresh tokens bound to it.
// Revocation failures are logged, not returned: the refresh endpoint
// rejects tokens of unlinked devices on their next use anyway.
func (r *DeviceRegistry) UnlinkDevice(ctx context.Context, userID, deviceID string) (int, error) {
	if err := r.store.DeleteDevice(ctx, userID, deviceID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return 0, ErrDeviceNotFound
		}
		return 0, fmt.Errorf("failed to unlink device: %w", err)
	}

	revoked, err := r.tokens.RevokeRefreshTokensForDevice(ctx, userID, deviceID)
	if err != nil {
		r.log.Error().
			Err(err).
			Str("user_id", userID).
			Str("device_id", deviceID).
			Msg("failed to revoke refresh tokens of unlinked device")
	}

	r.metrics.RecordDeviceUnlinked()
	r.metrics.RecordTokensRevoked(revokeReasonDeviceUnlink, revoked)
	r.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceUnlinked,
		ActorUserID:  userID,
		ResourceType: models.ResourceDevice,
		ResourceID:   deviceID,
		Action:       "device unlinked",
		Details:      models.AuditDetails{"revoked": revoked},
		Success:      true,
	})
	return revoked, nil
}
