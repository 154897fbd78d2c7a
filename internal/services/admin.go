package services

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
)

type AdminUserUpdate struct {
	Email    Optional[string]      `json:"email"`
	Name     Optional[string]      `json:"name"`
	Password Optional[string]      `json:"password"`
	Role     Optional[access.Role] `json:"role"`
}

type TeamInput struct {
	Email string `json:"email" binding:"required,email"`
}

type AdminService interface {
	ListUsers(ctx context.Context, id access.Identity) ([]models.User, error)
	UpdateUser(ctx context.Context, id access.Identity, userID uuid.UUID, in AdminUserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id access.Identity, userID uuid.UUID) error
	ListTeam(ctx context.Context, id access.Identity) ([]models.TeamMember, error)
	AddTeamMember(ctx context.Context, id access.Identity, email string) (*models.TeamMember, error)
	RemoveTeamMember(ctx context.Context, id access.Identity, teamMemberID uuid.UUID) error
}

type AdminServiceImpl struct {
	db         *gorm.DB
	access     AccessService
	bcryptCost int
}

func NewAdminService(db *gorm.DB, accessSvc AccessService, bcryptCost int) *AdminServiceImpl {
	return &AdminServiceImpl{db: db, access: accessSvc, bcryptCost: bcryptCost}
}

func requireAdmin(id access.Identity) error {
	if err := access.RequireIdentity(id); err != nil {
		return err
	}
	if !access.IsAdmin(id) {
		return apperr.Denied("administrator role required")
	}
	return nil
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context, id access.Identity) ([]models.User, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	users := []models.User{}
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (s *AdminServiceImpl) UpdateUser(ctx context.Context, id access.Identity, userID uuid.UUID, in AdminUserUpdate) (*models.User, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Email.Set {
		if in.Email.Value == nil {
			return nil, apperr.Invalid("email", "cannot be null")
		}
		email, err := normalizeEmail(*in.Email.Value)
		if err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if in.Name.Set {
		if in.Name.Value == nil {
			return nil, apperr.Invalid("name", "cannot be null")
		}
		name, err := requireText("name", *in.Name.Value, 100)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Password.Set {
		if in.Password.Value == nil || len(*in.Password.Value) < 8 {
			return nil, apperr.Invalid("password", "must be at least 8 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password.Value), s.bcryptCost)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = string(hashed)
	}
	if in.Role.Set {
		if in.Role.Value == nil || !in.Role.Value.Valid() {
			return nil, apperr.Invalid("role", "must be ADMIN or USER")
		}
		updates["role"] = *in.Role.Value
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "user")
		}
		if email, ok := updates["email"]; ok {
			var taken int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, userID).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return apperr.Conflict("email already in use")
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("email already in use")
			}
			return err
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account together with the workspace it owns and
// everything the account created.
func (s *AdminServiceImpl) DeleteUser(ctx context.Context, id access.Identity, userID uuid.UUID) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	if userID == id.UserID {
		return apperr.Invalid("id", "you cannot delete your own account")
	}

	var affected []uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "user")
		}

		var owned []uuid.UUID
		if err := tx.Model(&models.Workspace{}).Where("user_id = ?", userID).Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) > 0 {
			if err := tx.Model(&models.WorkspaceMember{}).Where("workspace_id IN ?", owned).Pluck("user_id", &affected).Error; err != nil {
				return err
			}
		}

		steps := []struct {
			model interface{}
			query string
			args  []interface{}
		}{
			{&models.Comment{}, "user_id = ? OR task_id IN (SELECT id FROM tasks WHERE user_id = ? OR workspace_id IN ?)", []interface{}{userID, userID, owned}},
			{&models.Task{}, "user_id = ? OR workspace_id IN ?", []interface{}{userID, owned}},
			{&models.ProjectMember{}, "user_id = ? OR project_id IN (SELECT id FROM projects WHERE user_id = ? OR workspace_id IN ?)", []interface{}{userID, userID, owned}},
			{&models.Project{}, "user_id = ? OR workspace_id IN ?", []interface{}{userID, owned}},
			{&models.Activity{}, "user_id = ? OR workspace_id IN ?", []interface{}{userID, owned}},
			{&models.WorkspaceInvitation{}, "user_id = ? OR invited_by = ? OR workspace_id IN ?", []interface{}{userID, userID, owned}},
			{&models.WorkspaceMember{}, "user_id = ? OR workspace_id IN ?", []interface{}{userID, owned}},
			{&models.Workspace{}, "user_id = ?", []interface{}{userID}},
			{&models.TeamMember{}, "admin_id = ? OR user_id = ?", []interface{}{userID, userID}},
			{&models.Token{}, "user_id = ?", []interface{}{userID}},
			{&models.Notification{}, "user_id = ?", []interface{}{userID}},
			{&models.FilterPreset{}, "user_id = ?", []interface{}{userID}},
		}
		for _, step := range steps {
			if err := tx.Where(step.query, step.args...).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %T: %w", step.model, err)
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}

	for _, uid := range append(affected, userID) {
		s.access.InvalidateUser(ctx, uid)
	}
	return nil
}

func (s *AdminServiceImpl) ListTeam(ctx context.Context, id access.Identity) ([]models.TeamMember, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	team := []models.TeamMember{}
	err := s.db.WithContext(ctx).Preload("User").Where("admin_id = ?", id.UserID).Order("created_at ASC").Find(&team).Error
	return team, err
}

func (s *AdminServiceImpl) AddTeamMember(ctx context.Context, id access.Identity, email string) (*models.TeamMember, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	if user.ID == id.UserID {
		return nil, apperr.Invalid("email", "you cannot add yourself to your team")
	}

	member := models.TeamMember{AdminID: id.UserID, UserID: user.ID}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict(fmt.Sprintf("%s is already in your team", user.Email))
		}
		return nil, err
	}
	member.User = &user
	return &member, nil
}

func (s *AdminServiceImpl) RemoveTeamMember(ctx context.Context, id access.Identity, teamMemberID uuid.UUID) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("id = ? AND admin_id = ?", teamMemberID, id.UserID).Delete(&models.TeamMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("team member")
	}
	return nil
}
