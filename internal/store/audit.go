package store

import (
	"context"
	"time"

	"github.com/pedalsync/linkgate/internal/models"
)

func (s *Store) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// CreateAuditLogBatch writes a batch in chunks of 100 rows.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// ListAuditLogsByResource returns the newest entries for one resource first.
func (s *Store) ListAuditLogsByResource(
	ctx context.Context,
	resourceType models.ResourceType,
	resourceID string,
	limit int,
) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("event_time DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *Store) DeleteOldAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
