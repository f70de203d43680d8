package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taglens/internal/models"
)

// JobStore manages ingestion jobs. Claiming is a compare-and-swap on the
// status column so concurrent workers never run the same job.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a queued job for a document. A document has at most one
// job; creating a second one fails on the unique index.
func (s *JobStore) Create(ctx context.Context, job *models.IngestJob) error {
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
	if job.ProcessingMode == "" {
		job.ProcessingMode = models.ModeQueue
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create ingest job: %w", err)
	}
	return nil
}

// Get returns the job with the given ID.
func (s *JobStore) Get(ctx context.Context, id string) (*models.IngestJob, error) {
	var job models.IngestJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ingest job '%s': %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ingest job: %w", err)
	}
	return &job, nil
}

// GetByDocument returns the job bound to a document.
func (s *JobStore) GetByDocument(ctx context.Context, documentID string) (*models.IngestJob, error) {
	var job models.IngestJob
	err := s.db.WithContext(ctx).First(&job, "document_id = ?", documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job for document '%s': %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ingest job: %w", err)
	}
	return &job, nil
}

// Claim atomically moves the oldest queued job to processing on behalf of
// workerID and increments its attempt counter. Returns nil when no queued
// job exists or another worker won the race.
func (s *JobStore) Claim(ctx context.Context, workerID string) (*models.IngestJob, error) {
	var job models.IngestJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusQueued).
		Order("created_at").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queued job: %w", err)
	}
	return s.ClaimByID(ctx, job.ID, workerID)
}

// ClaimByID claims one specific job with the same compare-and-swap as
// Claim. Returns nil when the job is not queued, including when another
// worker claimed it first.
func (s *JobStore) ClaimByID(ctx context.Context, id, workerID string) (*models.IngestJob, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", id, models.StatusQueued).
		Updates(map[string]any{
			"status":     models.StatusProcessing,
			"worker_id":  workerID,
			"attempts":   gorm.Expr("attempts + 1"),
			"started_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim job '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Not queued anymore, or lost the race to another worker.
		return nil, nil
	}

	return s.Get(ctx, id)
}

// RequeueStale moves processing jobs whose worker has been silent longer
// than lockTimeout back to queued. Returns the number of requeued jobs.
func (s *JobStore) RequeueStale(ctx context.Context, lockTimeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-lockTimeout)
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("status = ? AND started_at < ?", models.StatusProcessing, cutoff).
		Updates(map[string]any{
			"status":    models.StatusQueued,
			"worker_id": "",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Requeue puts a processing job back in the queue, recording the error
// that interrupted the attempt. Used for automatic in-budget retries.
func (s *JobStore) Requeue(ctx context.Context, id, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]any{
			"status":    models.StatusQueued,
			"worker_id": "",
			"error_msg": errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to requeue job '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ingest job '%s': %w", id, ErrNotFound)
	}
	return nil
}

// Retry requeues a failed job. Jobs that already spent their attempt
// budget are rejected; attempts are never reset.
func (s *JobStore) Retry(ctx context.Context, id string) (*models.IngestJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusFailed {
		return nil, fmt.Errorf("job '%s' is %s: %w", id, job.Status, ErrJobNotRetryable)
	}
	if job.Attempts >= job.MaxAttempts {
		return nil, fmt.Errorf("job '%s' used %d of %d attempts: %w",
			id, job.Attempts, job.MaxAttempts, ErrRetryExhausted)
	}

	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", id, models.StatusFailed).
		Updates(map[string]any{
			"status":      models.StatusQueued,
			"error_msg":   "",
			"worker_id":   "",
			"finished_at": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to requeue job '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("job '%s' is no longer failed: %w", id, ErrJobNotRetryable)
	}
	return s.Get(ctx, id)
}

// MarkCompleted finishes a job successfully.
func (s *JobStore) MarkCompleted(ctx context.Context, id string) error {
	return s.finish(ctx, id, models.StatusCompleted, "")
}

// MarkFailed finishes a job with an error message.
func (s *JobStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.finish(ctx, id, models.StatusFailed, errMsg)
}

func (s *JobStore) finish(ctx context.Context, id, status, errMsg string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"error_msg":   errMsg,
			"finished_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish job '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ingest job '%s': %w", id, ErrNotFound)
	}
	return nil
}
