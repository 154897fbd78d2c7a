package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/models"
)

type SearchResult struct {
	Tasks    []TaskView       `json:"tasks"`
	Projects []models.Project `json:"projects"`
}

type SearchService interface {
	Search(ctx context.Context, id access.Identity, query string, limit int) (*SearchResult, error)
}

type SearchServiceImpl struct {
	db     *gorm.DB
	access AccessService
}

func NewSearchService(db *gorm.DB, accessSvc AccessService) *SearchServiceImpl {
	return &SearchServiceImpl{db: db, access: accessSvc}
}

// Search matches task titles and notes and project names across the
// caller's workspaces, case-insensitively.
func (s *SearchServiceImpl) Search(ctx context.Context, id access.Identity, query string, limit int) (*SearchResult, error) {
	ids, err := s.access.AccessibleWorkspaceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Tasks: []TaskView{}, Projects: []models.Project{}}
	if len(ids) == 0 || strings.TrimSpace(query) == "" {
		return result, nil
	}

	limit = clampLimit(limit, 20, 100)
	pattern := likePattern(query)

	var tasks []models.Task
	err = s.db.WithContext(ctx).
		Preload("Project").
		Where("workspace_id IN ?", ids).
		Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(notes) LIKE ? ESCAPE '\\')", pattern, pattern).
		Order("updated_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		result.Tasks = append(result.Tasks, NewTaskView(&tasks[i]))
	}

	err = s.db.WithContext(ctx).
		Where("workspace_id IN ?", ids).
		Where("LOWER(name) LIKE ? ESCAPE '\\'", pattern).
		Order("name ASC").
		Limit(limit).
		Find(&result.Projects).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}
