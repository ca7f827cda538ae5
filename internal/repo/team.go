package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type TeamRepo struct {
	DB *gorm.DB
}

func (r *TeamRepo) Get(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.DB.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *TeamRepo) GetWithMembers(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	err := r.DB.WithContext(ctx).Preload("Members").First(&team, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// Create inserts the team and its owner's manager membership atomically.
func (r *TeamRepo) Create(ctx context.Context, team *models.Team) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: team.OwnerID,
			Role:   models.TeamRoleManager,
		}).Error
	})
}

func (r *TeamRepo) Update(ctx context.Context, team *models.Team) error {
	return r.DB.WithContext(ctx).Save(team).Error
}

func (r *TeamRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).
			Where("team_id = ?", id).
			Update("team_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, "id = ?", id).Error
	})
}

// GetMember returns nil without error when the user is not a member.
func (r *TeamRepo) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.DB.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// MemberRole resolves the principal's team role for the guard; empty string
// when not a member.
func (r *TeamRepo) MemberRole(ctx context.Context, teamID, userID uuid.UUID) (string, error) {
	member, err := r.GetMember(ctx, teamID, userID)
	if err != nil || member == nil {
		return "", err
	}
	return member.Role, nil
}

func (r *TeamRepo) AddMember(ctx context.Context, member *models.TeamMember) error {
	return r.DB.WithContext(ctx).Create(member).Error
}

func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	res := r.DB.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TeamRepo) UpdateMemberRole(ctx context.Context, teamID, userID uuid.UUID, role string) error {
	res := r.DB.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TeamRepo) ListForUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Team, int64, error) {
	base := r.DB.WithContext(ctx).Model(&models.Team{}).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var teams []models.Team
	err := base.Order("teams.created_at DESC").Offset(offset).Limit(limit).Find(&teams).Error
	return teams, total, err
}

// UserTeamIDs returns the ids of every team the user belongs to, used to
// scope task visibility.
func (r *TeamRepo) UserTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB.WithContext(ctx).Model(&models.TeamMember{}).
		Where("user_id = ?", userID).
		Pluck("team_id", &ids).Error
	return ids, err
}

func (r *TeamRepo) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.Team{}).Count(&total).Error
	return total, err
}
