package services

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/models"
)

type ActivityFilter struct {
	WorkspaceID string `form:"workspace_id"`
	TaskID      string `form:"task_id"`
	ProjectID   string `form:"project_id"`
	Limit       int    `form:"limit"`
}

type ActivityService interface {
	List(ctx context.Context, id access.Identity, filter ActivityFilter) ([]models.Activity, error)
}

type ActivityServiceImpl struct {
	db     *gorm.DB
	access AccessService
}

func NewActivityService(db *gorm.DB, accessSvc AccessService) *ActivityServiceImpl {
	return &ActivityServiceImpl{db: db, access: accessSvc}
}

func (s *ActivityServiceImpl) List(ctx context.Context, id access.Identity, filter ActivityFilter) ([]models.Activity, error) {
	ids, err := s.access.AccessibleWorkspaceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	activities := []models.Activity{}
	if len(ids) == 0 {
		return activities, nil
	}

	q := s.db.WithContext(ctx).Preload("User").Where("workspace_id IN ?", ids)
	if filter.WorkspaceID != "" {
		wsID, err := parseID("workspace_id", filter.WorkspaceID)
		if err != nil {
			return nil, err
		}
		q = q.Where("workspace_id = ?", wsID)
	}
	if filter.TaskID != "" {
		taskID, err := parseID("task_id", filter.TaskID)
		if err != nil {
			return nil, err
		}
		q = q.Where("task_id = ?", taskID)
	}
	if filter.ProjectID != "" {
		projectID, err := parseID("project_id", filter.ProjectID)
		if err != nil {
			return nil, err
		}
		q = q.Where("project_id = ?", projectID)
	}

	err = q.Order("created_at DESC").Limit(clampLimit(filter.Limit, 50, 200)).Find(&activities).Error
	return activities, err
}

type activityEntry struct {
	workspaceID uuid.UUID
	userID      uuid.UUID
	taskID      *uuid.UUID
	projectID   *uuid.UUID
	kind        models.ActivityType
	description string
	metadata    map[string]interface{}
}

// recordActivity appends one activity row on db, which is normally the
// transaction of the mutation being recorded.
func recordActivity(db *gorm.DB, e activityEntry) error {
	var metadata string
	if len(e.metadata) > 0 {
		raw, err := json.Marshal(e.metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	return db.Create(&models.Activity{
		WorkspaceID: e.workspaceID,
		UserID:      e.userID,
		TaskID:      e.taskID,
		ProjectID:   e.projectID,
		Type:        e.kind,
		Description: e.description,
		Metadata:    metadata,
	}).Error
}

func taskActivity(task *models.Task, userID uuid.UUID, kind models.ActivityType, description string, metadata map[string]interface{}) activityEntry {
	taskID := task.ID
	return activityEntry{
		workspaceID: task.WorkspaceID,
		userID:      userID,
		taskID:      &taskID,
		projectID:   task.ProjectID,
		kind:        kind,
		description: description,
		metadata:    metadata,
	}
}
