package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taglens/internal/models"
)

// ResultStore manages extraction results. The table is append-only; the
// newest row per (tag, document) pair is the current value.
type ResultStore struct {
	db *gorm.DB
}

// NewResultStore creates a ResultStore.
func NewResultStore(db *gorm.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Append inserts one extraction outcome.
func (s *ResultStore) Append(ctx context.Context, res *models.ExtractionResult) error {
	if err := s.db.WithContext(ctx).Create(res).Error; err != nil {
		return fmt.Errorf("failed to record extraction result: %w", err)
	}
	return nil
}

// Latest returns the most recent result for a (tag, document) pair.
func (s *ResultStore) Latest(ctx context.Context, tagID, documentID string) (*models.ExtractionResult, error) {
	var res models.ExtractionResult
	err := s.db.WithContext(ctx).
		Where("tag_id = ? AND document_id = ?", tagID, documentID).
		Order("created_at DESC").First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("result for tag '%s' on document '%s': %w", tagID, documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch extraction result: %w", err)
	}
	return &res, nil
}

// ListByDocument returns every result recorded for a document, newest
// first.
func (s *ResultStore) ListByDocument(ctx context.Context, documentID string) ([]models.ExtractionResult, error) {
	var results []models.ExtractionResult
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list extraction results: %w", err)
	}
	return results, nil
}
