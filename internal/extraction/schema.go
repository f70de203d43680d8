package extraction

import (
	"fmt"
	"strings"

	"taglens/internal/models"
	"taglens/internal/store"
)

// tagSchema is one tag definition prepared for prompting and value
// normalization.
type tagSchema struct {
	Tag     models.TagDefinition
	Options []string
}

func buildSchemas(tags []models.TagDefinition) ([]tagSchema, error) {
	schemas := make([]tagSchema, 0, len(tags))
	for _, tag := range tags {
		opts, err := store.DecodeOptions(tag.Options)
		if err != nil {
			return nil, fmt.Errorf("tag '%s' has malformed options: %w", tag.ID, err)
		}
		schemas = append(schemas, tagSchema{Tag: tag, Options: opts})
	}
	return schemas, nil
}

// describe renders one tag as a schema line for the prompt.
func (s tagSchema) describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("- %q: type=%s", s.Tag.Name, s.Tag.Type))
	if s.Tag.Description != "" {
		sb.WriteString(fmt.Sprintf(", meaning: %s", s.Tag.Description))
	}
	switch s.Tag.Type {
	case models.TagTypeSingleChoice:
		sb.WriteString(fmt.Sprintf(", pick exactly one of: %s", strings.Join(s.Options, " | ")))
	case models.TagTypeMultipleChoice:
		sb.WriteString(fmt.Sprintf(", pick any of: %s", strings.Join(s.Options, " | ")))
	case models.TagTypeTextInput:
		sb.WriteString(", free text")
	}
	return sb.String()
}

// query is the retrieval query derived from the tag definition.
func (s tagSchema) query() string {
	if s.Tag.Description != "" {
		return s.Tag.Name + ": " + s.Tag.Description
	}
	return s.Tag.Name
}

// normalize clamps raw extracted values to the tag's contract. Values a
// choice tag does not allow are dropped; a single-choice or text tag
// with nothing left yields nil.
func (s tagSchema) normalize(values []string) any {
	switch s.Tag.Type {
	case models.TagTypeSingleChoice:
		for _, v := range values {
			if containsString(s.Options, v) {
				return v
			}
		}
		return nil
	case models.TagTypeMultipleChoice:
		var kept []string
		for _, v := range values {
			if containsString(s.Options, v) && !containsString(kept, v) {
				kept = append(kept, v)
			}
		}
		if kept == nil {
			kept = []string{}
		}
		return kept
	default:
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				return v
			}
		}
		return nil
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
