package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/lifecycle"
)

type Task struct {
	ID          uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID        `json:"workspace_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	ProjectID   *uuid.UUID       `json:"project_id" gorm:"type:uuid;index"`
	Project     *Project         `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Title       string           `json:"title" gorm:"not null"`
	Notes       *string          `json:"notes"`
	DueAt       *time.Time       `json:"due_at" gorm:"index"`
	Priority    int              `json:"priority" gorm:"not null"`
	Status      lifecycle.Status `json:"status" gorm:"type:varchar(16);not null;index"`
	CompletedAt *time.Time       `json:"completed_at"`

	// Responsible is the display label; ResponsibleID points at the
	// workspace participant it was resolved to.
	Responsible   *string    `json:"responsible" gorm:"type:varchar(100)"`
	ResponsibleID *uuid.UUID `json:"responsible_id" gorm:"type:uuid;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.Status == "" {
		t.Status = lifecycle.InitialStatus(t.ProjectID != nil)
	}
	return ensureID(&t.ID)
}

func (t *Task) State() lifecycle.State {
	return lifecycle.State{Status: t.Status, CompletedAt: t.CompletedAt}
}

func (t *Task) Presented() lifecycle.Presented {
	return lifecycle.Present(t.Status, t.ProjectID != nil)
}

type Comment struct {
	ID       uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID   uuid.UUID   `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID   uuid.UUID   `json:"user_id" gorm:"type:uuid;not null"`
	User     *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Content  string      `json:"content" gorm:"type:text;not null"`
	Mentions []uuid.UUID `json:"mentions" gorm:"type:text;serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&c.ID)
}
