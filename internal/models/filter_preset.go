package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TaskFilters is the saved form of a task list query. Values keep the raw
// query-string form and are validated when the preset is saved.
type TaskFilters struct {
	Status      string `json:"status,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	View        string `json:"view,omitempty"`
	Search      string `json:"search,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Responsible string `json:"responsible,omitempty"`
	DateFrom    string `json:"date_from,omitempty"`
	DateTo      string `json:"date_to,omitempty"`
}

// FilterPreset is a named task filter owned by one user.
type FilterPreset struct {
	ID        uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	Name      string      `json:"name" gorm:"type:varchar(100);not null"`
	Filters   TaskFilters `json:"filters" gorm:"type:text;not null;serializer:json"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (p *FilterPreset) BeforeCreate(tx *gorm.DB) error {
	return ensureID(&p.ID)
}
