package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
)

type User struct {
	ID           uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid"`
	Email        string      `json:"email" gorm:"uniqueIndex;not null"`
	Name         string      `json:"name" gorm:"not null"`
	PasswordHash string      `json:"-" gorm:"not null"`
	Role         access.Role `json:"role" gorm:"type:varchar(16);not null"`

	// WorkspaceID is the workspace this user owns, not the ones it belongs to.
	WorkspaceID *uuid.UUID `json:"workspace_id" gorm:"type:uuid;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = access.RoleUser
	}
	return ensureID(&u.ID)
}

func (u *User) IsAdmin() bool {
	return u.Role == access.RoleAdmin
}

func (u *User) Identity() access.Identity {
	return access.Identity{UserID: u.ID, Role: u.Role}
}

// Handle is the part of the email before the @, used to match mentions.
func (u *User) Handle() string {
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// UserSummary is the public slice of a user embedded in other responses.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

func (u *User) Summary() *UserSummary {
	if u == nil || u.ID == uuid.Nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Token is a refresh token issued at login.
type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;uniqueIndex;not null"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&t.ID)
}

// TeamMember links an admin to a user the admin manages.
type TeamMember struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	AdminID   uuid.UUID `json:"admin_id" gorm:"type:uuid;not null;uniqueIndex:idx_team_admin_user"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_team_admin_user"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&m.ID)
}

func ensureID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	generated, err := uuid.NewV4()
	if err != nil {
		return err
	}
	*id = generated
	return nil
}
