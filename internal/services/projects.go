package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
)

const maxProjectNameLength = 60

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type ProjectView struct {
	models.Project
	TaskCount int64 `json:"task_count"`
	IsOwner   bool  `json:"is_owner"`
}

type ProjectInput struct {
	Name  string  `json:"name" binding:"required"`
	Color *string `json:"color"`
}

type UpdateProjectInput struct {
	Name  Optional[string] `json:"name"`
	Color Optional[string] `json:"color"`
}

type AddProjectMemberInput struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type ProjectService interface {
	ListProjects(ctx context.Context, id access.Identity) ([]ProjectView, error)
	CreateProject(ctx context.Context, id access.Identity, in ProjectInput) (*ProjectView, error)
	GetProject(ctx context.Context, id access.Identity, projectID uuid.UUID) (*ProjectView, error)
	UpdateProject(ctx context.Context, id access.Identity, projectID uuid.UUID, in UpdateProjectInput) (*ProjectView, error)
	DeleteProject(ctx context.Context, id access.Identity, projectID uuid.UUID) error
	ListMembers(ctx context.Context, id access.Identity, projectID uuid.UUID) ([]models.ProjectMember, error)
	AddMember(ctx context.Context, id access.Identity, projectID, userID uuid.UUID) (*models.ProjectMember, error)
	RemoveMember(ctx context.Context, id access.Identity, projectID, userID uuid.UUID) error
}

type ProjectServiceImpl struct {
	db     *gorm.DB
	access AccessService
}

func NewProjectService(db *gorm.DB, accessSvc AccessService) *ProjectServiceImpl {
	return &ProjectServiceImpl{db: db, access: accessSvc}
}

func validColor(color *string) (*string, error) {
	if color == nil || strings.TrimSpace(*color) == "" {
		return nil, nil
	}
	c := strings.TrimSpace(*color)
	if !colorPattern.MatchString(c) {
		return nil, apperr.Invalid("color", "must look like #RRGGBB")
	}
	return &c, nil
}

func (s *ProjectServiceImpl) ListProjects(ctx context.Context, id access.Identity) ([]ProjectView, error) {
	ids, err := s.access.AccessibleWorkspaceIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	var projects []models.Project
	err = s.db.WithContext(ctx).
		Where("workspace_id IN ? OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)", ids, id.UserID).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return s.withCounts(ctx, id, projects)
}

type projectCount struct {
	ProjectID uuid.UUID
	Count     int64
}

func (s *ProjectServiceImpl) withCounts(ctx context.Context, id access.Identity, projects []models.Project) ([]ProjectView, error) {
	views := make([]ProjectView, 0, len(projects))
	if len(projects) == 0 {
		return views, nil
	}

	projectIDs := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
	}

	var counts []projectCount
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("project_id, COUNT(*) AS count").
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byProject := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byProject[c.ProjectID] = c.Count
	}

	for _, p := range projects {
		views = append(views, ProjectView{Project: p, TaskCount: byProject[p.ID], IsOwner: p.UserID == id.UserID})
	}
	return views, nil
}

func (s *ProjectServiceImpl) CreateProject(ctx context.Context, id access.Identity, in ProjectInput) (*ProjectView, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	name, err := requireText("name", in.Name, maxProjectNameLength)
	if err != nil {
		return nil, err
	}
	color, err := validColor(in.Color)
	if err != nil {
		return nil, err
	}

	caller, err := loadUser(ctx, s.db, id.UserID)
	if err != nil {
		return nil, err
	}
	if caller.WorkspaceID == nil {
		return nil, apperr.Conflict("account has no workspace")
	}

	project := models.Project{WorkspaceID: *caller.WorkspaceID, UserID: id.UserID, Name: name, Color: color}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &ProjectView{Project: project, IsOwner: true}, nil
}

func (s *ProjectServiceImpl) GetProject(ctx context.Context, id access.Identity, projectID uuid.UUID) (*ProjectView, error) {
	project, _, err := s.access.ProjectRelation(ctx, id, projectID)
	if err != nil {
		return nil, err
	}
	views, err := s.withCounts(ctx, id, []models.Project{*project})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ProjectServiceImpl) editable(ctx context.Context, acc AccessService, id access.Identity, projectID uuid.UUID) (*models.Project, error) {
	project, rel, err := acc.ProjectRelation(ctx, id, projectID)
	if err != nil {
		return nil, err
	}
	if !access.CanEditProject(rel) {
		return nil, apperr.Denied("only the project owner may change a project")
	}
	return project, nil
}

func (s *ProjectServiceImpl) UpdateProject(ctx context.Context, id access.Identity, projectID uuid.UUID, in UpdateProjectInput) (*ProjectView, error) {
	updates := map[string]interface{}{}
	if in.Name.Set {
		if in.Name.Value == nil {
			return nil, apperr.Invalid("name", "cannot be null")
		}
		name, err := requireText("name", *in.Name.Value, maxProjectNameLength)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Color.Set {
		color, err := validColor(in.Color.Value)
		if err != nil {
			return nil, err
		}
		updates["color"] = nullable(color)
	}

	project, err := s.editable(ctx, s.access, id, projectID)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetProject(ctx, id, projectID)
}

// DeleteProject moves the project's tasks back to the inbox of their
// workspace before removing the project and its grants.
func (s *ProjectServiceImpl) DeleteProject(ctx context.Context, id access.Identity, projectID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.editable(ctx, NewAccessService(tx), id, projectID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Where("project_id = ?", project.ID).Update("project_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
}

func (s *ProjectServiceImpl) ListMembers(ctx context.Context, id access.Identity, projectID uuid.UUID) ([]models.ProjectMember, error) {
	if _, _, err := s.access.ProjectRelation(ctx, id, projectID); err != nil {
		return nil, err
	}
	members := []models.ProjectMember{}
	err := s.db.WithContext(ctx).Preload("User").Where("project_id = ?", projectID).Order("created_at ASC").Find(&members).Error
	return members, err
}

// AddMember grants userID read access to the project. Administrators may
// only grant access to users in their own team.
func (s *ProjectServiceImpl) AddMember(ctx context.Context, id access.Identity, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	project, err := s.editable(ctx, s.access, id, projectID)
	if err != nil {
		return nil, err
	}
	if userID == id.UserID {
		return nil, apperr.Invalid("user_id", "project owners already have access")
	}
	user, err := loadUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	if access.IsAdmin(id) {
		var inTeam int64
		err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
			Where("admin_id = ? AND user_id = ?", id.UserID, userID).
			Count(&inTeam).Error
		if err != nil {
			return nil, err
		}
		if inTeam == 0 {
			return nil, apperr.Denied("user is not in your team")
		}
	}

	member := models.ProjectMember{ProjectID: project.ID, UserID: user.ID}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict(fmt.Sprintf("%s is already a project member", user.Email))
		}
		return nil, err
	}
	member.User = user
	return &member, nil
}

func (s *ProjectServiceImpl) RemoveMember(ctx context.Context, id access.Identity, projectID, userID uuid.UUID) error {
	project, err := s.editable(ctx, s.access, id, projectID)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("project_id = ? AND user_id = ?", project.ID, userID).Delete(&models.ProjectMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("project member")
	}
	return nil
}
