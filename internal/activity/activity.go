// Package activity writes the immutable audit trail and mirrors each entry
// to the Kafka event stream.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster-pro/taskmaster/internal/events"
	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
)

type Service struct {
	Repo     *repo.ActivityRepo
	Producer *events.Producer
}

type event struct {
	Action     string         `json:"action"`
	UserID     uuid.UUID      `json:"user_id"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Log records an audit entry. Failures are logged and swallowed so an audit
// write never breaks the request that triggered it.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, meta map[string]any) {
	var metaJSON string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metaJSON = string(b)
		}
	}

	entry := &models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       metaJSON,
	}
	if err := s.Repo.Create(ctx, entry); err != nil {
		logging.FromContext(ctx).Error("activity log write failed",
			"action", action, "entity_type", entityType, "error", err)
		return
	}

	if err := s.Producer.Publish(ctx, entityID.String(), event{
		Action:     action,
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
		OccurredAt: entry.CreatedAt,
	}); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "action", action, "error", err)
	}
}
