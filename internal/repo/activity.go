package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type ActivityRepo struct {
	DB *gorm.DB
}

func (r *ActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *ActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.ActivityLog, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.ActivityLog{}).Where("user_id = ?", userID)
	return r.page(ctx, q, offset, limit)
}

func (r *ActivityRepo) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, offset, limit int) ([]models.ActivityLog, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.ActivityLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	return r.page(ctx, q, offset, limit)
}

// ListAll powers the admin firehose with optional entity type and action
// filters.
func (r *ActivityRepo) ListAll(ctx context.Context, entityType, action string, offset, limit int) ([]models.ActivityLog, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.ActivityLog{})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if action != "" {
		q = q.Where("action = ?", action)
	}
	return r.page(ctx, q, offset, limit)
}

func (r *ActivityRepo) page(ctx context.Context, q *gorm.DB, offset, limit int) ([]models.ActivityLog, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ActivityLog
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}
