package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"taglens/internal/models"
	"taglens/internal/parser"
	"taglens/internal/splitter"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

// ObjectStore is the slice of object storage the pipeline needs.
// Satisfied by the MinIO file store.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Options bound the scheduler's behavior.
type Options struct {
	MaxAttempts  int
	ParsedPrefix string
	DefaultMode  string
}

// Scheduler owns the document ingestion pipeline: fetch, parse, chunk,
// embed, index. Document and job state transitions happen only here.
type Scheduler struct {
	docs    *store.DocumentStore
	jobs    *store.JobStore
	objects ObjectStore
	split   *splitter.Splitter
	indexer *Indexer
	vectors vectorstore.VectorStore
	opts    Options
	log     *logger.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(docs *store.DocumentStore, jobs *store.JobStore, objects ObjectStore,
	split *splitter.Splitter, indexer *Indexer, vectors vectorstore.VectorStore, opts Options) *Scheduler {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ParsedPrefix == "" {
		opts.ParsedPrefix = "parsed"
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = models.ModeQueue
	}
	return &Scheduler{
		docs:    docs,
		jobs:    jobs,
		objects: objects,
		split:   split,
		indexer: indexer,
		vectors: vectors,
		opts:    opts,
		log:     logger.New("scheduler"),
	}
}

// Enqueue creates the ingestion job for a freshly uploaded document. In
// immediate mode the job runs synchronously before Enqueue returns.
func (s *Scheduler) Enqueue(ctx context.Context, doc *models.Document, mode string) (*models.IngestJob, error) {
	if mode == "" {
		mode = s.opts.DefaultMode
	}
	if mode != models.ModeQueue && mode != models.ModeImmediate {
		return nil, fmt.Errorf("unknown processing mode: '%s'", mode)
	}

	job := &models.IngestJob{
		DocumentID:     doc.ID,
		MaxAttempts:    s.opts.MaxAttempts,
		ProcessingMode: mode,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if mode == models.ModeImmediate {
		// Run this job inline, re-claiming it after each in-budget
		// requeue so Enqueue only returns once it completed or failed.
		// Only this job is touched; queued jobs of other documents stay
		// in the queue.
		for {
			claimed, err := s.jobs.ClaimByID(ctx, job.ID, "immediate")
			if err != nil {
				return nil, err
			}
			if claimed == nil {
				break
			}
			s.Run(ctx, claimed)
		}
		return s.jobs.Get(ctx, job.ID)
	}
	return job, nil
}

// Retry requeues a failed document for another ingestion attempt.
func (s *Scheduler) Retry(ctx context.Context, documentID string) (*models.IngestJob, error) {
	job, err := s.jobs.GetByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	requeued, err := s.jobs.Retry(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, documentID, models.StatusQueued); err != nil {
		return nil, err
	}
	return requeued, nil
}

// Purge removes everything the pipeline produced for a document: its
// vectors and its stored raw and parsed files. The database rows are the
// caller's to delete.
func (s *Scheduler) Purge(ctx context.Context, doc *models.Document) error {
	if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if doc.RawPath != "" {
		if err := s.objects.Remove(ctx, doc.RawPath); err != nil {
			return err
		}
	}
	if doc.ParsedPath != "" {
		if err := s.objects.Remove(ctx, doc.ParsedPath); err != nil {
			return err
		}
	}
	return nil
}

// Run executes one claimed job to completion. Transient failures put the
// job back in the queue while the attempt budget lasts; parse failures
// and an exhausted budget fail the job for good.
func (s *Scheduler) Run(ctx context.Context, job *models.IngestJob) {
	log := s.log.WithPayload(map[string]any{
		"job":      job.ID,
		"document": job.DocumentID,
		"attempt":  job.Attempts,
	})
	log.Info("starting ingestion job")

	if err := s.docs.UpdateStatus(ctx, job.DocumentID, models.StatusProcessing); err != nil {
		s.fail(ctx, job, err, false)
		return
	}

	if err := s.process(ctx, job); err != nil {
		var perr *parser.ParseError
		permanent := errors.As(err, &perr)
		s.fail(ctx, job, err, !permanent)
		return
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID); err != nil {
		log.Errorf("failed to finish job: %v", err)
		return
	}
	log.Info("ingestion job completed")
}

func (s *Scheduler) process(ctx context.Context, job *models.IngestJob) error {
	doc, err := s.docs.Get(ctx, job.DocumentID)
	if err != nil {
		return err
	}

	raw, err := s.objects.Get(ctx, doc.RawPath)
	if err != nil {
		return err
	}

	pages, err := parser.Parse(doc.Filename, raw)
	if err != nil {
		return err
	}

	var chunks []splitter.Chunk
	wordCount := 0
	for _, page := range pages {
		pageChunks, err := s.split.SplitPage(doc.ID, page.Number, page.Text)
		if err != nil {
			return err
		}
		chunks = append(chunks, pageChunks...)
		wordCount += len(strings.Fields(page.Text))
	}

	// The parsed artifact keeps the page structure so it can be
	// re-chunked without re-parsing the source file.
	parsedPath := path.Join(s.opts.ParsedPrefix, doc.ID+".json")
	parsed, err := json.Marshal(map[string]any{"pages": pages})
	if err != nil {
		return fmt.Errorf("failed to encode parsed document: %w", err)
	}
	if err := s.objects.Put(ctx, parsedPath, parsed, "application/json"); err != nil {
		return err
	}

	if err := s.indexer.EmbedAndIndex(ctx, chunks); err != nil {
		return err
	}

	return s.docs.SetParsed(ctx, doc.ID, parsedPath, &models.DocumentMetadata{
		Title:      doc.Filename,
		WordCount:  wordCount,
		PageCount:  len(pages),
		ChunkCount: len(chunks),
	})
}

// fail handles a job error. Retryable errors requeue the job while
// attempts remain; otherwise the job and document are failed and any
// partially written vectors are removed.
func (s *Scheduler) fail(ctx context.Context, job *models.IngestJob, cause error, retryable bool) {
	log := s.log.WithPayload(map[string]any{
		"job":      job.ID,
		"document": job.DocumentID,
		"attempt":  job.Attempts,
	})

	if retryable && job.Attempts < job.MaxAttempts {
		log.Warnf("ingestion attempt failed, requeueing: %v", cause)
		if err := s.jobs.Requeue(ctx, job.ID, cause.Error()); err != nil {
			log.Errorf("failed to requeue job: %v", err)
		}
		if err := s.docs.UpdateStatus(ctx, job.DocumentID, models.StatusQueued); err != nil {
			log.Errorf("failed to requeue document: %v", err)
		}
		return
	}

	log.Errorf("ingestion job failed permanently: %v", cause)
	if err := s.jobs.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Errorf("failed to mark job failed: %v", err)
	}
	if err := s.docs.UpdateStatus(ctx, job.DocumentID, models.StatusFailed); err != nil {
		log.Errorf("failed to mark document failed: %v", err)
	}
	// Drop any vectors written before the failure so a failed document
	// never serves retrieval.
	if err := s.vectors.DeleteByDocument(ctx, job.DocumentID); err != nil {
		log.Errorf("failed to clean up vectors: %v", err)
	}
}
