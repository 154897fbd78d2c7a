package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityTaskCreated   ActivityType = "TASK_CREATED"
	ActivityTaskUpdated   ActivityType = "TASK_UPDATED"
	ActivityTaskCompleted ActivityType = "TASK_COMPLETED"
	ActivityTaskDeleted   ActivityType = "TASK_DELETED"
	ActivityCommentAdded  ActivityType = "COMMENT_ADDED"
)

// Activity is an append-only audit record inside a workspace.
type Activity struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID    `json:"workspace_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID    `json:"user_id" gorm:"type:uuid;not null"`
	User        *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TaskID      *uuid.UUID   `json:"task_id" gorm:"type:uuid;index"`
	Task        *Task        `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	ProjectID   *uuid.UUID   `json:"project_id" gorm:"type:uuid;index"`
	Type        ActivityType `json:"type" gorm:"type:varchar(32);not null"`
	Description string       `json:"description" gorm:"not null"`
	Metadata    string       `json:"metadata" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"index"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&a.ID)
}

type NotificationType string

const (
	NotificationMention NotificationType = "MENTION"
	NotificationDueSoon NotificationType = "DUE_SOON"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title     string           `json:"title" gorm:"not null"`
	Message   string           `json:"message" gorm:"type:text;not null"`
	Link      string           `json:"link"`
	Read      bool             `json:"read" gorm:"not null;index"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&n.ID)
}
