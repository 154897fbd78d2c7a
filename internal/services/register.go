package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
)

type RegistrationRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=8"`
}

type RegisterService interface {
	RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error)
	EnsureAdmin(ctx context.Context, req RegistrationRequest) (*models.User, error)
	BackfillWorkspaces(ctx context.Context) (int, error)
}

type RegisterServiceImpl struct {
	db         *gorm.DB
	bcryptCost int
}

func NewRegisterService(db *gorm.DB, bcryptCost int) *RegisterServiceImpl {
	return &RegisterServiceImpl{db: db, bcryptCost: bcryptCost}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Invalid("email", "must be a valid email address")
	}
	return email, nil
}

func (s *RegisterServiceImpl) validate(req RegistrationRequest) (RegistrationRequest, error) {
	var err error
	if req.Email, err = normalizeEmail(req.Email); err != nil {
		return req, err
	}
	if req.Name, err = requireText("name", req.Name, 100); err != nil {
		return req, err
	}
	if len(req.Password) < 8 {
		return req, apperr.Invalid("password", "must be at least 8 characters")
	}
	return req, nil
}

func (s *RegisterServiceImpl) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// RegisterUser creates the user together with the workspace they own. Either
// both rows exist afterwards or neither does.
func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	workspace := models.Workspace{Name: fmt.Sprintf("%s's Workspace", req.Name)}
	if err := tx.Create(&workspace).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	var existing int64
	if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if existing > 0 {
		tx.Rollback()
		return nil, apperr.Conflict("email already registered")
	}

	user := models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashedPassword,
		Role:         access.RoleUser,
		WorkspaceID:  &workspace.ID,
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		if isDuplicate(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}

	if err := tx.Model(&workspace).Update("user_id", user.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// EnsureAdmin registers req as an administrator, or promotes and re-keys the
// existing account with that email.
func (s *RegisterServiceImpl) EnsureAdmin(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, err := s.RegisterUser(ctx, req)
		if err != nil {
			return nil, err
		}
		user = *created
	default:
		return nil, err
	}

	hashedPassword, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"role":          access.RoleAdmin,
		"password_hash": hashedPassword,
	}).Error
	if err != nil {
		return nil, err
	}
	user.Role = access.RoleAdmin
	user.PasswordHash = hashedPassword
	return &user, nil
}

// BackfillWorkspaces gives every user without a workspace their own, and
// moves projects and tasks they created outside any workspace into it.
func (s *RegisterServiceImpl) BackfillWorkspaces(ctx context.Context) (int, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("workspace_id IS NULL").Find(&users).Error; err != nil {
		return 0, err
	}

	migrated := 0
	for i := range users {
		user := users[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			workspace := models.Workspace{
				Name:   fmt.Sprintf("%s's Workspace", user.Name),
				UserID: &user.ID,
			}
			if err := tx.Create(&workspace).Error; err != nil {
				return err
			}
			if err := tx.Model(&user).Update("workspace_id", workspace.ID).Error; err != nil {
				return err
			}
			orphaned := "user_id = ? AND (workspace_id IS NULL OR workspace_id = ?)"
			if err := tx.Model(&models.Project{}).Where(orphaned, user.ID, uuid.Nil).Update("workspace_id", workspace.ID).Error; err != nil {
				return err
			}
			return tx.Model(&models.Task{}).Where(orphaned, user.ID, uuid.Nil).Update("workspace_id", workspace.ID).Error
		})
		if err != nil {
			return migrated, fmt.Errorf("backfill workspace for %s: %w", user.Email, err)
		}
		migrated++
	}
	return migrated, nil
}
