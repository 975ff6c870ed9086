package db

import (
	"fmt"

	"github.com/nsawada/reqtrack/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Task{},
		&models.TaskHistory{},
		&models.Comment{},
		&models.Artifact{},
		&models.TaskArtifactLink{},
		&models.TaskSummary{},
		&models.Review{},
		&models.ReviewComment{},
		&models.ReviewResponse{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
