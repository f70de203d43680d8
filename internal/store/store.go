package store

import (
	"fmt"

	"gorm.io/gorm"

	"taglens/internal/models"
)

// DefaultKnowledgeBaseName is the name of the knowledge base documents
// land in when no knowledge base is specified.
const DefaultKnowledgeBaseName = "default"

// AutoMigrate creates or updates the schema for every model.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.KnowledgeBase{},
		&models.TagDefinition{},
		&models.Document{},
		&models.IngestJob{},
		&models.ExtractionResult{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
