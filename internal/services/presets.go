package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/lifecycle"
	"teamtasks/backend/internal/models"
)

const maxPresetNameLength = 100

type FilterPresetInput struct {
	Name    string              `json:"name" binding:"required"`
	Filters *models.TaskFilters `json:"filters" binding:"required"`
}

type UpdateFilterPresetInput struct {
	Name    Optional[string]             `json:"name"`
	Filters Optional[models.TaskFilters] `json:"filters"`
}

// FilterPresetService manages the caller's saved task filters. Presets are
// private: another user's preset reads as NotFound.
type FilterPresetService interface {
	ListPresets(ctx context.Context, id access.Identity) ([]models.FilterPreset, error)
	CreatePreset(ctx context.Context, id access.Identity, in FilterPresetInput) (*models.FilterPreset, error)
	UpdatePreset(ctx context.Context, id access.Identity, presetID uuid.UUID, in UpdateFilterPresetInput) (*models.FilterPreset, error)
	DeletePreset(ctx context.Context, id access.Identity, presetID uuid.UUID) error
}

type FilterPresetServiceImpl struct {
	db *gorm.DB
}

func NewFilterPresetService(db *gorm.DB) *FilterPresetServiceImpl {
	return &FilterPresetServiceImpl{db: db}
}

func loadPreset(ctx context.Context, db *gorm.DB, userID, presetID uuid.UUID) (*models.FilterPreset, error) {
	var preset models.FilterPreset
	if err := db.WithContext(ctx).First(&preset, "id = ? AND user_id = ?", presetID, userID).Error; err != nil {
		return nil, notFound(err, "filter preset")
	}
	return &preset, nil
}

// validFilters trims every value and rejects anything ListTasks would reject.
func validFilters(f models.TaskFilters) (models.TaskFilters, error) {
	f = models.TaskFilters{
		Status:      strings.TrimSpace(f.Status),
		ProjectID:   strings.TrimSpace(f.ProjectID),
		View:        strings.TrimSpace(f.View),
		Search:      strings.TrimSpace(f.Search),
		Priority:    strings.TrimSpace(f.Priority),
		Responsible: strings.TrimSpace(f.Responsible),
		DateFrom:    strings.TrimSpace(f.DateFrom),
		DateTo:      strings.TrimSpace(f.DateTo),
	}

	if f.Status != "" {
		if _, err := lifecycle.Persist(f.Status); err != nil {
			return f, err
		}
	}
	if f.ProjectID != "" {
		if _, err := parseID("project_id", f.ProjectID); err != nil {
			return f, err
		}
	}
	switch strings.ToLower(f.View) {
	case "", "today", "upcoming", "completed":
	default:
		return f, apperr.Invalid("view", "must be one of today, upcoming, completed")
	}
	if f.Priority != "" {
		p, err := strconv.Atoi(f.Priority)
		if err != nil {
			return f, apperr.Invalid("priority", "must be an integer")
		}
		if err := validPriority(p); err != nil {
			return f, err
		}
	}
	if f.DateFrom != "" {
		if _, err := parseDay("date_from", f.DateFrom, false); err != nil {
			return f, err
		}
	}
	if f.DateTo != "" {
		if _, err := parseDay("date_to", f.DateTo, true); err != nil {
			return f, err
		}
	}
	return f, nil
}

// withPreset fills every field left empty in the query from the preset.
func (f TaskFilter) withPreset(saved models.TaskFilters) TaskFilter {
	pick := func(explicit, fallback string) string {
		if strings.TrimSpace(explicit) != "" {
			return explicit
		}
		return fallback
	}
	f.Status = pick(f.Status, saved.Status)
	f.ProjectID = pick(f.ProjectID, saved.ProjectID)
	f.View = pick(f.View, saved.View)
	f.Search = pick(f.Search, saved.Search)
	f.Priority = pick(f.Priority, saved.Priority)
	f.Responsible = pick(f.Responsible, saved.Responsible)
	f.DateFrom = pick(f.DateFrom, saved.DateFrom)
	f.DateTo = pick(f.DateTo, saved.DateTo)
	return f
}

func (s *FilterPresetServiceImpl) ListPresets(ctx context.Context, id access.Identity) ([]models.FilterPreset, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	presets := []models.FilterPreset{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("created_at DESC").
		Find(&presets).Error
	return presets, err
}

func (s *FilterPresetServiceImpl) CreatePreset(ctx context.Context, id access.Identity, in FilterPresetInput) (*models.FilterPreset, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}
	name, err := requireText("name", in.Name, maxPresetNameLength)
	if err != nil {
		return nil, err
	}
	if in.Filters == nil {
		return nil, apperr.Invalid("filters", "is required")
	}
	filters, err := validFilters(*in.Filters)
	if err != nil {
		return nil, err
	}

	preset := models.FilterPreset{UserID: id.UserID, Name: name, Filters: filters}
	if err := s.db.WithContext(ctx).Create(&preset).Error; err != nil {
		return nil, err
	}
	return &preset, nil
}

func (s *FilterPresetServiceImpl) UpdatePreset(ctx context.Context, id access.Identity, presetID uuid.UUID, in UpdateFilterPresetInput) (*models.FilterPreset, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	var name string
	if in.Name.Set {
		if in.Name.Value == nil {
			return nil, apperr.Invalid("name", "cannot be null")
		}
		var err error
		if name, err = requireText("name", *in.Name.Value, maxPresetNameLength); err != nil {
			return nil, err
		}
	}
	var filters models.TaskFilters
	if in.Filters.Set {
		if in.Filters.Value == nil {
			return nil, apperr.Invalid("filters", "cannot be null")
		}
		var err error
		if filters, err = validFilters(*in.Filters.Value); err != nil {
			return nil, err
		}
	}

	preset, err := loadPreset(ctx, s.db, id.UserID, presetID)
	if err != nil {
		return nil, err
	}
	if !in.Name.Set && !in.Filters.Set {
		return preset, nil
	}
	if in.Name.Set {
		preset.Name = name
	}
	if in.Filters.Set {
		preset.Filters = filters
	}
	if err := s.db.WithContext(ctx).Save(preset).Error; err != nil {
		return nil, err
	}
	return preset, nil
}

func (s *FilterPresetServiceImpl) DeletePreset(ctx context.Context, id access.Identity, presetID uuid.UUID) error {
	if err := access.RequireIdentity(id); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", presetID, id.UserID).
		Delete(&models.FilterPreset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("filter preset")
	}
	return nil
}
