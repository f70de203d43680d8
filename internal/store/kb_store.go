package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taglens/internal/models"
	"taglens/pkg/logger"
)

// KnowledgeBaseStore manages knowledge base rows.
type KnowledgeBaseStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewKnowledgeBaseStore creates a KnowledgeBaseStore.
func NewKnowledgeBaseStore(db *gorm.DB) *KnowledgeBaseStore {
	return &KnowledgeBaseStore{db: db, log: logger.New("kb_store")}
}

// EnsureDefault creates the default knowledge base if it does not exist
// and returns it. Safe to call on every startup.
func (s *KnowledgeBaseStore) EnsureDefault(ctx context.Context) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := s.db.WithContext(ctx).Where("is_default = ?", true).First(&kb).Error
	if err == nil {
		return &kb, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up default knowledge base: %w", err)
	}

	kb = models.KnowledgeBase{Name: DefaultKnowledgeBaseName, IsDefault: true}
	if err := s.db.WithContext(ctx).Create(&kb).Error; err != nil {
		return nil, fmt.Errorf("failed to create default knowledge base: %w", err)
	}
	s.log.WithField("id", kb.ID).Info("created default knowledge base")
	return &kb, nil
}

// Create adds a knowledge base with the given name.
func (s *KnowledgeBaseStore) Create(ctx context.Context, name string) (*models.KnowledgeBase, error) {
	if name == "" {
		return nil, fmt.Errorf("knowledge base name is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.KnowledgeBase{}).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check knowledge base name: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("knowledge base '%s': %w", name, ErrDuplicateName)
	}

	kb := models.KnowledgeBase{Name: name}
	if err := s.db.WithContext(ctx).Create(&kb).Error; err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return &kb, nil
}

// Get returns the knowledge base with the given ID.
func (s *KnowledgeBaseStore) Get(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := s.db.WithContext(ctx).First(&kb, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("knowledge base '%s': %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch knowledge base: %w", err)
	}
	return &kb, nil
}

// List returns all knowledge bases ordered by creation time.
func (s *KnowledgeBaseStore) List(ctx context.Context) ([]models.KnowledgeBase, error) {
	var kbs []models.KnowledgeBase
	if err := s.db.WithContext(ctx).Order("created_at").Find(&kbs).Error; err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	return kbs, nil
}

// Delete removes a knowledge base. The default knowledge base is
// protected, and a knowledge base must be emptied of documents first.
func (s *KnowledgeBaseStore) Delete(ctx context.Context, id string) error {
	kb, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if kb.IsDefault {
		return ErrDefaultKnowledgeBase
	}

	var docCount int64
	if err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("knowledge_base_id = ?", id).Count(&docCount).Error; err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if docCount > 0 {
		return fmt.Errorf("knowledge base '%s' holds %d documents: %w", id, docCount, ErrKnowledgeBaseNotEmpty)
	}

	if err := s.db.WithContext(ctx).Delete(&models.KnowledgeBase{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete knowledge base '%s': %w", id, err)
	}
	return nil
}
