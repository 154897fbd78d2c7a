package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID       `json:"workspace_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Name        string          `json:"name" gorm:"not null"`
	Color       *string         `json:"color" gorm:"type:varchar(7)"`
	Members     []ProjectMember `json:"members,omitempty" gorm:"foreignKey:ProjectID"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&p.ID)
}

// ProjectMember grants a user read access to one project.
type ProjectMember struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID uuid.UUID `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:idx_project_member"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_project_member;index"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&m.ID)
}
