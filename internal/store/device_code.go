package store

import (
	"context"
	"time"

	"github.com/pedalsync/linkgate/internal/models"
)

func (s *Store) CreateDeviceCode(ctx context.Context, dc *models.DeviceCode) error {
	return translate(s.db.WithContext(ctx).Create(dc).Error)
}

func (s *Store) GetDeviceCodeByDeviceCode(ctx context.Context, deviceCode string) (*models.DeviceCode, error) {
	var dc models.DeviceCode
	if err := s.db.WithContext(ctx).Where("device_code = ?", deviceCode).First(&dc).Error; err != nil {
		return nil, translate(err)
	}
	return &dc, nil
}

func (s *Store) GetDeviceCodeByUserCode(ctx context.Context, userCode string) (*models.DeviceCode, error) {
	var dc models.DeviceCode
	if err := s.db.WithContext(ctx).Where("user_code = ?", userCode).First(&dc).Error; err != nil {
		return nil, translate(err)
	}
	return &dc, nil
}

// GetActiveDeviceCodeForDevice returns the newest unexpired request for a
// physical device, pending or authorized.
func (s *Store) GetActiveDeviceCodeForDevice(
	ctx context.Context,
	deviceID string,
	now time.Time,
) (*models.DeviceCode, error) {
	var dc models.DeviceCode
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND expires_at > ?", deviceID, now).
		Order("created_at DESC").
		First(&dc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &dc, nil
}

// DeleteExpiredDeviceCodesForDevice purges the expired requests of one device.
func (s *Store) DeleteExpiredDeviceCodesForDevice(
	ctx context.Context,
	deviceID string,
	now time.Time,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("device_id = ? AND expires_at <= ?", deviceID, now).
		Delete(&models.DeviceCode{})
	return result.RowsAffected, result.Error
}

// AuthorizeDeviceCode flips a pending, unexpired request to authorized in a
// single conditional statement. Zero affected rows means another request got
// there first or the code is no longer usable.
func (s *Store) AuthorizeDeviceCode(ctx context.Context, userCode, userID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.DeviceCode{}).
		Where("user_code = ? AND status = ? AND expires_at > ?",
			userCode, models.DeviceCodeStatusPending, now).
		Updates(map[string]any{
			"status":     models.DeviceCodeStatusAuthorized,
			"user_id":    userID,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeviceCodeNotPending
	}
	return nil
}

// DeleteDeviceCode removes one request. ErrRecordNotFound when another
// caller already removed it, which makes the delete usable as a one-time claim.
func (s *Store) DeleteDeviceCode(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.DeviceCode{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteExpiredDeviceCodes removes every expired request and reports how many went.
func (s *Store) DeleteExpiredDeviceCodes(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.DeviceCode{})
	return result.RowsAffected, result.Error
}

// CountActiveDeviceCodes counts unexpired requests, pending or authorized.
func (s *Store) CountActiveDeviceCodes(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DeviceCode{}).
		Where("expires_at > ?", now).
		Count(&count).Error
	return count, err
}

// CountPendingDeviceCodes counts unexpired requests still waiting for a user.
func (s *Store) CountPendingDeviceCodes(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DeviceCode{}).
		Where("status = ? AND expires_at > ?", models.DeviceCodeStatusPending, now).
		Count(&count).Error
	return count, err
}
