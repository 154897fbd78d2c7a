package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleMember MemberRole = "MEMBER"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDenied   InvitationStatus = "DENIED"
)

type Workspace struct {
	ID   uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name string    `json:"name" gorm:"not null"`

	// UserID is nil only inside the registration transaction, between
	// creating the workspace and creating its owner.
	UserID *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`

	Members []WorkspaceMember `json:"members,omitempty" gorm:"foreignKey:WorkspaceID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&w.ID)
}

func (w *Workspace) OwnedBy(userID uuid.UUID) bool {
	return w.UserID != nil && *w.UserID == userID
}

type WorkspaceMember struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID  `json:"workspace_id" gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member;index"`
	Role        MemberRole `json:"role" gorm:"type:varchar(16);not null"`
	InvitedBy   *uuid.UUID `json:"invited_by" gorm:"type:uuid"`
	User        *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.Role == "" {
		m.Role = MemberRoleMember
	}
	return ensureID(&m.ID)
}

type WorkspaceInvitation struct {
	ID          uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID uuid.UUID        `json:"workspace_id" gorm:"type:uuid;not null;uniqueIndex:idx_workspace_invitation"`
	UserID      uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_workspace_invitation;index"`
	InvitedBy   uuid.UUID        `json:"invited_by" gorm:"type:uuid;not null"`
	Status      InvitationStatus `json:"status" gorm:"type:varchar(16);not null"`
	Workspace   *Workspace       `json:"workspace,omitempty" gorm:"foreignKey:WorkspaceID"`
	User        *User            `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Inviter     *User            `json:"inviter,omitempty" gorm:"foreignKey:InvitedBy"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (i *WorkspaceInvitation) BeforeCreate(tx *gorm.DB) error {
	if i.Status == "" {
		i.Status = InvitationPending
	}
	return ensureID(&i.ID)
}
