package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document and job lifecycle states. Both state machines share the same
// vocabulary: queued -> processing -> completed | failed.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job processing modes.
const (
	ModeQueue     = "queue"
	ModeImmediate = "immediate"
)

// Tag definition types.
const (
	TagTypeSingleChoice   = "single_choice"
	TagTypeMultipleChoice = "multiple_choice"
	TagTypeTextInput      = "text_input"
)

// KnowledgeBase groups documents. Exactly one knowledge base is marked
// default at any time.
type KnowledgeBase struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	IsDefault bool      `gorm:"default:false" json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Documents []Document `gorm:"foreignKey:KnowledgeBaseID" json:"-"`
}

// TagDefinition is a user-defined field to be extracted from documents.
// Options is a JSON array of allowed values; it is required and non-empty
// iff Type is single_choice or multiple_choice.
type TagDefinition struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Type        string    `gorm:"size:32;not null" json:"type"`
	Description string    `gorm:"type:text" json:"description"`
	Options     string    `gorm:"type:text" json:"options"`
	Required    bool      `gorm:"default:false" json:"required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is one uploaded file. It is created on upload and mutated only
// by the ingestion scheduler.
type Document struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	KnowledgeBaseID string    `gorm:"size:36;not null;index" json:"knowledge_base_id"`
	Filename        string    `gorm:"size:512;not null" json:"filename"`
	FileType        string    `gorm:"size:32;not null" json:"file_type"`
	RawPath         string    `gorm:"size:1024;not null" json:"raw_path"`
	ParsedPath      string    `gorm:"size:1024" json:"parsed_path"`
	Status          string    `gorm:"size:32;not null;default:queued" json:"status"`
	Metadata        string    `gorm:"type:text" json:"metadata"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DocumentMetadata is the derived-count payload serialized into
// Document.Metadata once ingestion completes.
type DocumentMetadata struct {
	Title      string `json:"title"`
	WordCount  int    `json:"word_count"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
}

// IngestJob tracks one attempt-bounded unit of ingestion work bound to
// one document. At most one job exists per document for its lifetime.
type IngestJob struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	DocumentID     string     `gorm:"size:36;not null;uniqueIndex" json:"document_id"`
	Status         string     `gorm:"size:32;not null;default:queued;index" json:"status"`
	Attempts       int        `gorm:"default:0" json:"attempts"`
	MaxAttempts    int        `gorm:"default:3" json:"max_attempts"`
	ErrorMsg       string     `gorm:"type:text" json:"error_msg"`
	WorkerID       string     `gorm:"size:128" json:"worker_id"`
	ProcessingMode string     `gorm:"size:32;not null;default:queue" json:"processing_mode"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ExtractionResult is one extraction outcome for a (tag, document) pair.
// The table is append-only; the most recent row per pair is the current value.
type ExtractionResult struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	TagID          string    `gorm:"size:36;not null;index:idx_tag_document" json:"tag_id"`
	DocumentID     string    `gorm:"size:36;not null;index:idx_tag_document" json:"document_id"`
	Result         string    `gorm:"type:text" json:"result"`
	RetrievalTrace string    `gorm:"type:text" json:"retrieval_trace"`
	Prompt         string    `gorm:"type:text" json:"prompt"`
	RawResponse    string    `gorm:"type:text" json:"raw_response"`
	ParseFailed    bool      `gorm:"default:false" json:"parse_failed"`
	Timing         string    `gorm:"type:text" json:"timing"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (k *KnowledgeBase) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	return nil
}

func (t *TagDefinition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

func (j *IngestJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

func (r *ExtractionResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
