package store

import (
	"context"

	"github.com/pedalsync/linkgate/internal/models"

	"gorm.io/gorm/clause"
)

// UpsertDevice inserts a linked device, or refreshes its name and last sync
// time when the (id, user_id) pair is already registered.
func (s *Store) UpsertDevice(ctx context.Context, device *models.Device) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_sync"}),
		}).
		Create(device).Error
}

func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", deviceID, userID).
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (s *Store) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_sync DESC").
		Find(&devices).Error
	return devices, err
}

// DeleteDevice removes one linked device. ErrRecordNotFound when absent.
func (s *Store) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", deviceID, userID).
		Delete(&models.Device{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *Store) CountDevices(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Device{}).Count(&count).Error
	return count, err
}
