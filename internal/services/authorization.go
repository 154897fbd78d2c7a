package services

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
)

// AccessService loads the facts access predicates decide on. Lookups of a
// resource the caller cannot read fail with apperr.ErrNotFound, exactly as
// if it did not exist.
type AccessService interface {
	AccessibleWorkspaceIDs(ctx context.Context, id access.Identity) ([]uuid.UUID, error)
	WorkspaceRelation(ctx context.Context, id access.Identity, workspaceID uuid.UUID) (*models.Workspace, access.Relation, error)
	ProjectRelation(ctx context.Context, id access.Identity, projectID uuid.UUID) (*models.Project, access.Relation, error)
	TaskRelation(ctx context.Context, id access.Identity, taskID uuid.UUID) (*models.Task, access.Relation, error)
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

type AccessServiceImpl struct {
	db *gorm.DB
}

// NewAccessService works on a plain handle or on a transaction.
func NewAccessService(db *gorm.DB) AccessService {
	return &AccessServiceImpl{db: db}
}

func (s *AccessServiceImpl) AccessibleWorkspaceIDs(ctx context.Context, id access.Identity) ([]uuid.UUID, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Workspace{}).
		Where("user_id = ? OR id IN (SELECT workspace_id FROM workspace_members WHERE user_id = ?)", id.UserID, id.UserID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *AccessServiceImpl) WorkspaceRelation(ctx context.Context, id access.Identity, workspaceID uuid.UUID) (*models.Workspace, access.Relation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, access.Relation{}, err
	}

	var ws models.Workspace
	if err := s.db.WithContext(ctx).First(&ws, "id = ?", workspaceID).Error; err != nil {
		return nil, access.Relation{}, notFound(err, "workspace")
	}

	rel, err := s.workspaceRelation(ctx, id.UserID, &ws)
	if err != nil {
		return nil, access.Relation{}, err
	}
	rel.ResourceOwner = rel.WorkspaceOwner

	if !access.CanAccess(rel) {
		return nil, rel, apperr.NotFound("workspace")
	}
	return &ws, rel, nil
}

func (s *AccessServiceImpl) ProjectRelation(ctx context.Context, id access.Identity, projectID uuid.UUID) (*models.Project, access.Relation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, access.Relation{}, err
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		return nil, access.Relation{}, notFound(err, "project")
	}

	rel, err := s.workspaceRelationByID(ctx, id.UserID, project.WorkspaceID)
	if err != nil {
		return nil, access.Relation{}, err
	}
	rel.ResourceOwner = project.UserID == id.UserID
	if rel.ProjectMember, err = s.isProjectMember(ctx, project.ID, id.UserID); err != nil {
		return nil, access.Relation{}, err
	}

	if !access.CanAccessProject(rel) {
		return nil, rel, apperr.NotFound("project")
	}
	return &project, rel, nil
}

// TaskRelation admits explicit project grants as read access to the tasks of
// that project. Callers that write must check access.CanAccess themselves.
func (s *AccessServiceImpl) TaskRelation(ctx context.Context, id access.Identity, taskID uuid.UUID) (*models.Task, access.Relation, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, access.Relation{}, err
	}

	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		return nil, access.Relation{}, notFound(err, "task")
	}

	rel, err := s.workspaceRelationByID(ctx, id.UserID, task.WorkspaceID)
	if err != nil {
		return nil, access.Relation{}, err
	}
	rel.ResourceOwner = task.UserID == id.UserID
	if task.ProjectID != nil && !access.CanAccess(rel) {
		if rel.ProjectMember, err = s.isProjectMember(ctx, *task.ProjectID, id.UserID); err != nil {
			return nil, access.Relation{}, err
		}
	}

	if !access.CanAccessProject(rel) {
		return nil, rel, apperr.NotFound("task")
	}
	return &task, rel, nil
}

func (s *AccessServiceImpl) InvalidateUser(ctx context.Context, userID uuid.UUID) {}

func (s *AccessServiceImpl) workspaceRelationByID(ctx context.Context, userID, workspaceID uuid.UUID) (access.Relation, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).First(&ws, "id = ?", workspaceID).Error; err != nil {
		return access.Relation{}, notFound(err, "workspace")
	}
	return s.workspaceRelation(ctx, userID, &ws)
}

func (s *AccessServiceImpl) workspaceRelation(ctx context.Context, userID uuid.UUID, ws *models.Workspace) (access.Relation, error) {
	rel := access.Relation{WorkspaceOwner: ws.OwnedBy(userID)}
	if rel.WorkspaceOwner {
		return rel, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", ws.ID, userID).
		Count(&count).Error
	if err != nil {
		return rel, err
	}
	rel.WorkspaceMember = count > 0
	return rel, nil
}

func (s *AccessServiceImpl) isProjectMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

// workspaceParticipants returns the owner and every member of a workspace.
func workspaceParticipants(ctx context.Context, db *gorm.DB, workspaceID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := db.WithContext(ctx).
		Where("id = (SELECT user_id FROM workspaces WHERE id = ?) OR id IN (SELECT user_id FROM workspace_members WHERE workspace_id = ?)", workspaceID, workspaceID).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

func loadUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
