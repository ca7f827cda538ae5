package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	TeamRoleMember  = "member"
	TeamRoleManager = "manager"

	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"

	TaskPriorityLow      = "low"
	TaskPriorityMedium   = "medium"
	TaskPriorityHigh     = "high"
	TaskPriorityCritical = "critical"

	NotificationTaskAssigned  = "task_assigned"
	NotificationTaskUpdated   = "task_updated"
	NotificationTaskCompleted = "task_completed"
	NotificationCommentAdded  = "comment_added"
	NotificationTeamInvite    = "team_invite"
	NotificationTeamRemoved   = "team_removed"
	NotificationSystem        = "system"
)

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return true
	}
	return false
}

func ValidTeamRole(r string) bool {
	return r == TeamRoleMember || r == TeamRoleManager
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null"          json:"-"`
	FullName     string    `gorm:"size:255"                   json:"full_name"`
	Role         string    `gorm:"size:20;not null;default:user" json:"role"`
	IsActive     bool      `gorm:"not null;default:true"      json:"is_active"`
	IsVerified   bool      `gorm:"not null;default:false"     json:"is_verified"`
	AvatarURL    string    `gorm:"size:500"                   json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores only the sha256 hash of the opaque secret handed to the
// client. The raw secret never touches the database.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Revoked   bool      `gorm:"not null;default:false"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Team struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Name        string    `gorm:"size:200;not null"        json:"name"`
	Description string    `gorm:"size:1000"                json:"description"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type TeamMember struct {
	TeamID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"team_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role     string    `gorm:"size:20;not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

type Task struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"       json:"id"`
	Title        string         `gorm:"size:500;not null"          json:"title"`
	Description  string         `gorm:"type:text"                  json:"description"`
	Status       string         `gorm:"size:20;index;not null;default:pending" json:"status"`
	Priority     string         `gorm:"size:20;index;not null;default:medium"  json:"priority"`
	DueDate      *time.Time     `gorm:"index"                      json:"due_date"`
	OwnerID      uuid.UUID      `gorm:"type:uuid;index;not null"   json:"owner_id"`
	AssignedToID *uuid.UUID     `gorm:"type:uuid;index"            json:"assigned_to_id"`
	TeamID       *uuid.UUID     `gorm:"type:uuid;index"            json:"team_id"`
	Tags         pq.StringArray `gorm:"type:text[]"                json:"tags"`
	IsArchived   bool           `gorm:"index;not null;default:false" json:"is_archived"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Content   string    `gorm:"type:text;not null"       json:"content"`
	TaskID    uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;index;not null" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Filename   string    `gorm:"size:500;not null"        json:"filename"`
	FileURL    string    `gorm:"size:2000;not null"       json:"file_url"`
	FileSize   int64     `gorm:"not null"                 json:"file_size"`
	MimeType   string    `gorm:"size:200;not null"        json:"mime_type"`
	TaskID     uuid.UUID `gorm:"type:uuid;index;not null" json:"task_id"`
	UploadedBy uuid.UUID `gorm:"type:uuid;index;not null" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Message     string     `gorm:"size:1000;not null"       json:"message"`
	Type        string     `gorm:"size:50;not null;default:system" json:"type"`
	IsRead      bool       `gorm:"index;not null;default:false" json:"is_read"`
	ReferenceID *uuid.UUID `gorm:"type:uuid"                json:"reference_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// ActivityLog rows are append-only; nothing in the codebase updates them.
type ActivityLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Action     string    `gorm:"size:200;index;not null"  json:"action"`
	EntityType string    `gorm:"size:100;index:idx_activity_entity;not null" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;index:idx_activity_entity;not null" json:"entity_id"`
	Meta       string    `gorm:"type:text"                json:"meta,omitempty"`
	CreatedAt  time.Time `gorm:"index"                    json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// All lists every model for AutoMigrate in tests and dev bootstrap.
func All() []any {
	return []any{
		&User{}, &RefreshToken{}, &Team{}, &TeamMember{}, &Task{},
		&Comment{}, &Attachment{}, &Notification{}, &ActivityLog{},
	}
}
