package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type TaskRepo struct {
	DB *gorm.DB
}

// TaskFilter mirrors the query parameters of the task list endpoints.
type TaskFilter struct {
	Status          string
	Priority        string
	AssignedToID    *uuid.UUID
	TeamID          *uuid.UUID
	IncludeArchived bool
	DueDateFrom     *time.Time
	DueDateTo       *time.Time
	Search          string
	Offset          int
	Limit           int

	// Visibility scope: when OwnerID is set, only tasks owned by, assigned
	// to, or shared with a team of that user are returned. Admin listings
	// leave it nil.
	OwnerID *uuid.UUID
	TeamIDs []uuid.UUID
}

func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.DB.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepo) Create(ctx context.Context, task *models.Task) error {
	return r.DB.WithContext(ctx).Create(task).Error
}

func (r *TaskRepo) Update(ctx context.Context, task *models.Task) error {
	return r.DB.WithContext(ctx).Save(task).Error
}

// Archive is the delete operation; tasks are never removed from the table.
func (r *TaskRepo) Archive(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Update("is_archived", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepo) List(ctx context.Context, f TaskFilter) ([]models.Task, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Task{})

	if !f.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedToID)
	}
	if f.TeamID != nil {
		q = q.Where("team_id = ?", *f.TeamID)
	}
	if f.DueDateFrom != nil {
		q = q.Where("due_date >= ?", *f.DueDateFrom)
	}
	if f.DueDateTo != nil {
		q = q.Where("due_date <= ?", *f.DueDateTo)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	if f.OwnerID != nil {
		if len(f.TeamIDs) > 0 {
			q = q.Where("owner_id = ? OR assigned_to_id = ? OR team_id IN ?",
				*f.OwnerID, *f.OwnerID, f.TeamIDs)
		} else {
			q = q.Where("owner_id = ? OR assigned_to_id = ?", *f.OwnerID, *f.OwnerID)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&tasks).Error
	return tasks, total, err
}

func (r *TaskRepo) ListByTeam(ctx context.Context, teamID uuid.UUID, offset, limit int, includeArchived bool) ([]models.Task, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Task{}).Where("team_id = ?", teamID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	return tasks, total, err
}

// ListByIDs preserves the order of ids, which carries the search ranking.
func (r *TaskRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tasks []models.Task
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	ordered := make([]models.Task, 0, len(tasks))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

func (r *TaskRepo) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.Task{}).Count(&total).Error
	return total, err
}

func (r *TaskRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.DB.WithContext(ctx).Model(&models.Task{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
