package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type CommentRepo struct {
	DB *gorm.DB
}

func (r *CommentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.DB.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	return r.DB.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepo) Update(ctx context.Context, comment *models.Comment) error {
	return r.DB.WithContext(ctx).Save(comment).Error
}

func (r *CommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id).Error
}

func (r *CommentRepo) ListByTask(ctx context.Context, taskID uuid.UUID, offset, limit int) ([]models.Comment, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Comment{}).Where("task_id = ?", taskID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&comments).Error
	return comments, total, err
}
