package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taglens/internal/models"
)

// TagStore manages tag definitions.
type TagStore struct {
	db *gorm.DB
}

// NewTagStore creates a TagStore.
func NewTagStore(db *gorm.DB) *TagStore {
	return &TagStore{db: db}
}

// ValidateTag checks the type/options contract: choice types require a
// non-empty options list, text_input forbids one.
func ValidateTag(tag *models.TagDefinition) error {
	if tag.Name == "" {
		return fmt.Errorf("tag name is required")
	}

	switch tag.Type {
	case models.TagTypeSingleChoice, models.TagTypeMultipleChoice:
		opts, err := DecodeOptions(tag.Options)
		if err != nil {
			return fmt.Errorf("tag options must be a JSON string array: %w", err)
		}
		if len(opts) == 0 {
			return fmt.Errorf("tag type '%s' requires a non-empty options list", tag.Type)
		}
	case models.TagTypeTextInput:
		opts, err := DecodeOptions(tag.Options)
		if err != nil {
			return fmt.Errorf("tag options must be a JSON string array: %w", err)
		}
		if len(opts) > 0 {
			return fmt.Errorf("tag type '%s' does not take options", tag.Type)
		}
	default:
		return fmt.Errorf("unknown tag type: '%s'", tag.Type)
	}
	return nil
}

// DecodeOptions parses the JSON options column. An empty column decodes
// to no options.
func DecodeOptions(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// Create validates and inserts a tag definition. Tag names are unique;
// the extraction prompt addresses tags by name.
func (s *TagStore) Create(ctx context.Context, tag *models.TagDefinition) error {
	if err := ValidateTag(tag); err != nil {
		return err
	}
	if err := s.checkName(ctx, tag.Name, ""); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// Update validates and saves changes to an existing tag definition.
func (s *TagStore) Update(ctx context.Context, tag *models.TagDefinition) error {
	if err := ValidateTag(tag); err != nil {
		return err
	}
	if err := s.checkName(ctx, tag.Name, tag.ID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.TagDefinition{}).
		Where("id = ?", tag.ID).
		Updates(map[string]any{
			"name":        tag.Name,
			"type":        tag.Type,
			"description": tag.Description,
			"options":     tag.Options,
			"required":    tag.Required,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update tag '%s': %w", tag.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tag '%s': %w", tag.ID, ErrNotFound)
	}
	return nil
}

// checkName rejects a tag name already taken by another tag.
func (s *TagStore) checkName(ctx context.Context, name, selfID string) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.TagDefinition{}).Where("name = ?", name)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check tag name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("tag '%s': %w", name, ErrDuplicateName)
	}
	return nil
}

// Get returns the tag with the given ID.
func (s *TagStore) Get(ctx context.Context, id string) (*models.TagDefinition, error) {
	var tag models.TagDefinition
	err := s.db.WithContext(ctx).First(&tag, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tag '%s': %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tag: %w", err)
	}
	return &tag, nil
}

// GetMany returns the tags with the given IDs, erroring on any miss.
func (s *TagStore) GetMany(ctx context.Context, ids []string) ([]models.TagDefinition, error) {
	var tags []models.TagDefinition
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	if len(tags) != len(ids) {
		found := make(map[string]bool, len(tags))
		for _, t := range tags {
			found[t.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, fmt.Errorf("tag '%s': %w", id, ErrNotFound)
			}
		}
	}
	return tags, nil
}

// List returns all tag definitions ordered by creation time.
func (s *TagStore) List(ctx context.Context) ([]models.TagDefinition, error) {
	var tags []models.TagDefinition
	if err := s.db.WithContext(ctx).Order("created_at").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Delete removes a tag definition and its extraction results.
func (s *TagStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.TagDefinition{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete tag '%s': %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("tag '%s': %w", id, ErrNotFound)
		}
		if err := tx.Delete(&models.ExtractionResult{}, "tag_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete results of tag '%s': %w", id, err)
		}
		return nil
	})
}
