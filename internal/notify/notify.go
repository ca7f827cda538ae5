// Package notify persists notifications and fans them out over the
// websocket hub when the recipient is connected.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

type Service struct {
	Repo *repo.NotificationRepo
	Hub  *ws.Hub
}

type pushPayload struct {
	ID          string     `json:"id"`
	Message     string     `json:"message"`
	Type        string     `json:"notification_type"`
	ReferenceID *uuid.UUID `json:"reference_id"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notify writes the notification and pushes it to live connections. A push
// failure never fails the calling request.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, typ, message string, referenceID *uuid.UUID) {
	n := &models.Notification{
		UserID:      userID,
		Message:     message,
		Type:        typ,
		ReferenceID: referenceID,
	}
	if err := s.Repo.Create(ctx, n); err != nil {
		logging.FromContext(ctx).Error("notification write failed",
			"user_id", userID, "type", typ, "error", err)
		return
	}

	if s.Hub != nil && s.Hub.IsConnected(userID) {
		s.Hub.Push(userID, "notification", pushPayload{
			ID:          n.ID.String(),
			Message:     n.Message,
			Type:        n.Type,
			ReferenceID: n.ReferenceID,
			CreatedAt:   n.CreatedAt,
		})
	}
}

func (s *Service) TaskAssigned(ctx context.Context, assigneeID, taskID uuid.UUID, taskTitle, assignerName string) {
	s.Notify(ctx, assigneeID, models.NotificationTaskAssigned,
		fmt.Sprintf("%s assigned you to task: %q", assignerName, taskTitle), &taskID)
}

func (s *Service) TaskUpdated(ctx context.Context, ownerID, taskID uuid.UUID, taskTitle, updaterName string) {
	s.Notify(ctx, ownerID, models.NotificationTaskUpdated,
		fmt.Sprintf("%s updated task: %q", updaterName, taskTitle), &taskID)
}

func (s *Service) CommentAdded(ctx context.Context, taskOwnerID, taskID uuid.UUID, taskTitle, commenterName string) {
	s.Notify(ctx, taskOwnerID, models.NotificationCommentAdded,
		fmt.Sprintf("%s commented on task: %q", commenterName, taskTitle), &taskID)
}

func (s *Service) TeamInvite(ctx context.Context, userID, teamID uuid.UUID, teamName, inviterName string) {
	s.Notify(ctx, userID, models.NotificationTeamInvite,
		fmt.Sprintf("%s added you to team: %q", inviterName, teamName), &teamID)
}

func (s *Service) TeamRemoved(ctx context.Context, userID, teamID uuid.UUID, teamName string) {
	s.Notify(ctx, userID, models.NotificationTeamRemoved,
		fmt.Sprintf("you have been removed from team: %q", teamName), &teamID)
}
