package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
)

// MemberView is one participant of a workspace. The owner has no membership
// row, so ID is nil for them.
type MemberView struct {
	ID       *uuid.UUID          `json:"id"`
	UserID   uuid.UUID           `json:"user_id"`
	Role     models.MemberRole   `json:"role"`
	User     *models.UserSummary `json:"user"`
	JoinedAt time.Time           `json:"joined_at"`
}

type WorkspaceView struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	UserID    *uuid.UUID   `json:"user_id"`
	IsOwner   bool         `json:"is_owner"`
	Members   []MemberView `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
}

type InviteInput struct {
	Email string `json:"email" binding:"required,email"`
}

type WorkspaceService interface {
	Current(ctx context.Context, id access.Identity) (*WorkspaceView, error)
	ListMembers(ctx context.Context, id access.Identity) ([]MemberView, error)
	Invite(ctx context.Context, id access.Identity, email string) (*models.WorkspaceInvitation, error)
	PendingInvitations(ctx context.Context, id access.Identity) ([]models.WorkspaceInvitation, error)
	AcceptInvitation(ctx context.Context, id access.Identity, invitationID uuid.UUID) (*models.WorkspaceMember, error)
	DenyInvitation(ctx context.Context, id access.Identity, invitationID uuid.UUID) error
	RemoveMember(ctx context.Context, id access.Identity, memberID uuid.UUID) error
}

type WorkspaceServiceImpl struct {
	db     *gorm.DB
	access AccessService
}

func NewWorkspaceService(db *gorm.DB, accessSvc AccessService) *WorkspaceServiceImpl {
	return &WorkspaceServiceImpl{db: db, access: accessSvc}
}

// current resolves the caller's workspace: the one they own, else the
// earliest one they joined.
func (s *WorkspaceServiceImpl) current(ctx context.Context, id access.Identity) (*models.Workspace, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	var ws models.Workspace
	err := s.db.WithContext(ctx).Where("user_id = ?", id.UserID).Order("created_at ASC").First(&ws).Error
	if err == nil {
		return &ws, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", id.UserID).
		Order("workspace_members.created_at ASC").
		First(&ws).Error
	if err != nil {
		return nil, notFound(err, "workspace")
	}
	return &ws, nil
}

func (s *WorkspaceServiceImpl) Current(ctx context.Context, id access.Identity) (*WorkspaceView, error) {
	ws, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, ws)
	if err != nil {
		return nil, err
	}
	return &WorkspaceView{
		ID:        ws.ID,
		Name:      ws.Name,
		UserID:    ws.UserID,
		IsOwner:   ws.OwnedBy(id.UserID),
		Members:   members,
		CreatedAt: ws.CreatedAt,
	}, nil
}

func (s *WorkspaceServiceImpl) ListMembers(ctx context.Context, id access.Identity) ([]MemberView, error) {
	ws, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, ws)
}

func (s *WorkspaceServiceImpl) members(ctx context.Context, ws *models.Workspace) ([]MemberView, error) {
	views := []MemberView{}
	if ws.UserID != nil {
		owner, err := loadUser(ctx, s.db, *ws.UserID)
		if err != nil {
			return nil, err
		}
		views = append(views, MemberView{UserID: owner.ID, Role: models.MemberRoleOwner, User: owner.Summary(), JoinedAt: ws.CreatedAt})
	}

	var rows []models.WorkspaceMember
	err := s.db.WithContext(ctx).Preload("User").Where("workspace_id = ?", ws.ID).Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		memberID := rows[i].ID
		views = append(views, MemberView{
			ID:       &memberID,
			UserID:   rows[i].UserID,
			Role:     rows[i].Role,
			User:     rows[i].User.Summary(),
			JoinedAt: rows[i].CreatedAt,
		})
	}
	return views, nil
}

// Invite asks the user with the given email to join the caller's own
// workspace. A previously answered invitation is reset to pending.
func (s *WorkspaceServiceImpl) Invite(ctx context.Context, id access.Identity, email string) (*models.WorkspaceInvitation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var ws models.Workspace
	if err := s.db.WithContext(ctx).Where("user_id = ?", id.UserID).Order("created_at ASC").First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Denied("only workspace owners may invite")
		}
		return nil, err
	}

	var invitee models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&invitee).Error; err != nil {
		return nil, notFound(err, "user")
	}
	if invitee.ID == id.UserID {
		return nil, apperr.Invalid("email", "you cannot invite yourself")
	}

	var invitation models.WorkspaceInvitation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members int64
		if err := tx.Model(&models.WorkspaceMember{}).Where("workspace_id = ? AND user_id = ?", ws.ID, invitee.ID).Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			return apperr.Conflict(fmt.Sprintf("%s is already a member", invitee.Email))
		}

		err := tx.Where("workspace_id = ? AND user_id = ?", ws.ID, invitee.ID).First(&invitation).Error
		switch {
		case err == nil && invitation.Status == models.InvitationPending:
			return apperr.Conflict(fmt.Sprintf("%s already has a pending invitation", invitee.Email))
		case err == nil:
			invitation.Status = models.InvitationPending
			invitation.InvitedBy = id.UserID
			return tx.Model(&invitation).Updates(map[string]interface{}{
				"status":     models.InvitationPending,
				"invited_by": id.UserID,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			invitation = models.WorkspaceInvitation{WorkspaceID: ws.ID, UserID: invitee.ID, InvitedBy: id.UserID}
			if err := tx.Create(&invitation).Error; err != nil {
				if isDuplicate(err) {
					return apperr.Conflict(fmt.Sprintf("%s already has a pending invitation", invitee.Email))
				}
				return err
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	invitation.Workspace = &ws
	invitation.User = &invitee
	return &invitation, nil
}

func (s *WorkspaceServiceImpl) PendingInvitations(ctx context.Context, id access.Identity) ([]models.WorkspaceInvitation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	invitations := []models.WorkspaceInvitation{}
	err := s.db.WithContext(ctx).
		Preload("Workspace").
		Preload("Inviter").
		Where("user_id = ? AND status = ?", id.UserID, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	return invitations, err
}

// pendingFor loads an invitation addressed to the caller. Anyone else's
// invitation reads as missing.
func pendingFor(ctx context.Context, tx *gorm.DB, id access.Identity, invitationID uuid.UUID) (*models.WorkspaceInvitation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	var invitation models.WorkspaceInvitation
	if err := tx.WithContext(ctx).Where("id = ? AND user_id = ?", invitationID, id.UserID).First(&invitation).Error; err != nil {
		return nil, notFound(err, "invitation")
	}
	if invitation.Status != models.InvitationPending {
		return nil, apperr.Conflict(fmt.Sprintf("invitation is already %s", invitation.Status))
	}
	return &invitation, nil
}

func (s *WorkspaceServiceImpl) AcceptInvitation(ctx context.Context, id access.Identity, invitationID uuid.UUID) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := pendingFor(ctx, tx, id, invitationID)
		if err != nil {
			return err
		}
		if err := tx.Model(invitation).Update("status", models.InvitationAccepted).Error; err != nil {
			return err
		}

		err = tx.Where("workspace_id = ? AND user_id = ?", invitation.WorkspaceID, id.UserID).First(&member).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		invitedBy := invitation.InvitedBy
		member = models.WorkspaceMember{
			WorkspaceID: invitation.WorkspaceID,
			UserID:      id.UserID,
			Role:        models.MemberRoleMember,
			InvitedBy:   &invitedBy,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	s.access.InvalidateUser(ctx, id.UserID)
	return &member, nil
}

func (s *WorkspaceServiceImpl) DenyInvitation(ctx context.Context, id access.Identity, invitationID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := pendingFor(ctx, tx, id, invitationID)
		if err != nil {
			return err
		}
		return tx.Model(invitation).Update("status", models.InvitationDenied).Error
	})
}

func (s *WorkspaceServiceImpl) RemoveMember(ctx context.Context, id access.Identity, memberID uuid.UUID) error {
	if err := access.RequireIdentity(id); err != nil {
		return err
	}

	var member models.WorkspaceMember
	if err := s.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		return notFound(err, "member")
	}
	_, rel, err := s.access.WorkspaceRelation(ctx, id, member.WorkspaceID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("member")
		}
		return err
	}
	if !rel.WorkspaceOwner {
		return apperr.Denied("only the workspace owner may remove members")
	}

	if err := s.db.WithContext(ctx).Delete(&member).Error; err != nil {
		return err
	}
	s.access.InvalidateUser(ctx, member.UserID)
	return nil
}
