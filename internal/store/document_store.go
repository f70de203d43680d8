package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taglens/internal/models"
)

// DocumentStore manages document rows.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a document row in the queued state.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	if doc.Status == "" {
		doc.Status = models.StatusQueued
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Get returns the document with the given ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document '%s': %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}

// ListByKnowledgeBase returns the documents of one knowledge base,
// newest first.
func (s *DocumentStore) ListByKnowledgeBase(ctx context.Context, kbID string) ([]models.Document, error) {
	var docs []models.Document
	if err := s.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus moves the document to the given lifecycle state.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update document status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document '%s': %w", id, ErrNotFound)
	}
	return nil
}

// SetParsed records the parsed artifact location and derived metadata,
// and marks the document completed.
func (s *DocumentStore) SetParsed(ctx context.Context, id, parsedPath string, meta *models.DocumentMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode document metadata: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"parsed_path": parsedPath,
			"metadata":    string(payload),
			"status":      models.StatusCompleted,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize document '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document '%s': %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a document together with its job and extraction results.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Document{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete document '%s': %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("document '%s': %w", id, ErrNotFound)
		}
		if err := tx.Delete(&models.IngestJob{}, "document_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete job of document '%s': %w", id, err)
		}
		if err := tx.Delete(&models.ExtractionResult{}, "document_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete results of document '%s': %w", id, err)
		}
		return nil
	})
}
