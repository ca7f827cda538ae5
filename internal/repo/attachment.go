package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type AttachmentRepo struct {
	DB *gorm.DB
}

func (r *AttachmentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	var att models.Attachment
	if err := r.DB.WithContext(ctx).First(&att, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *AttachmentRepo) Create(ctx context.Context, att *models.Attachment) error {
	return r.DB.WithContext(ctx).Create(att).Error
}

func (r *AttachmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Delete(&models.Attachment{}, "id = ?", id).Error
}

func (r *AttachmentRepo) ListByTask(ctx context.Context, taskID uuid.UUID, offset, limit int) ([]models.Attachment, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Attachment{}).Where("task_id = ?", taskID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var atts []models.Attachment
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&atts).Error
	return atts, total, err
}
