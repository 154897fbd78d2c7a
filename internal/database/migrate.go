package database

import (
	"gorm.io/gorm"

	"teamtasks/backend/internal/models"
)

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}
