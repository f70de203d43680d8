package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"taglens/internal/llm"
	"taglens/internal/models"
	"taglens/internal/retrieval"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

// Options bound the extraction engine's behavior.
type Options struct {
	TopK              int
	CompletionTimeout time.Duration
	ParseRetries      int
	BatchConcurrency  int
}

// TagOutcome is the extraction outcome for one tag on one document.
type TagOutcome struct {
	TagID           string `json:"tag_id"`
	TagName         string `json:"tag_name"`
	Value           any    `json:"value"`
	Reasoning       string `json:"reasoning"`
	OriginalContent string `json:"original_content"`
	ParseFailed     bool   `json:"parse_failed"`
	ResultID        string `json:"result_id"`
}

// Engine runs schema-driven extraction: retrieve relevant chunks, prompt
// the model once for all requested tags, parse and clamp the answer, and
// persist one result row per tag.
type Engine struct {
	tags      *store.TagStore
	docs      *store.DocumentStore
	results   *store.ResultStore
	retriever *retrieval.Engine
	model     llm.LLM
	opts      Options
	log       *logger.Logger
}

// NewEngine creates an extraction Engine.
func NewEngine(tags *store.TagStore, docs *store.DocumentStore, results *store.ResultStore,
	retriever *retrieval.Engine, model llm.LLM, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 120 * time.Second
	}
	if opts.ParseRetries <= 0 {
		opts.ParseRetries = 3
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	return &Engine{
		tags:      tags,
		docs:      docs,
		results:   results,
		retriever: retriever,
		model:     model,
		opts:      opts,
		log:       logger.New("extraction"),
	}
}

// ExtractSingle extracts one tag from one document.
func (e *Engine) ExtractSingle(ctx context.Context, documentID, tagID, method string) (*TagOutcome, error) {
	outcomes, err := e.ExtractMulti(ctx, documentID, []string{tagID}, method)
	if err != nil {
		return nil, err
	}
	return &outcomes[0], nil
}

// ExtractMulti extracts several tags from one document with a single
// completion call. Tags the model omits come back with a nil value.
func (e *Engine) ExtractMulti(ctx context.Context, documentID string, tagIDs []string, method string) ([]TagOutcome, error) {
	if len(tagIDs) == 0 {
		return nil, fmt.Errorf("at least one tag is required")
	}

	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusCompleted {
		return nil, fmt.Errorf("document '%s' is %s: %w", documentID, doc.Status, ErrDocumentNotReady)
	}

	tags, err := e.tags.GetMany(ctx, tagIDs)
	if err != nil {
		return nil, err
	}
	// GetMany does not preserve request order.
	byID := make(map[string]models.TagDefinition, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	ordered := make([]models.TagDefinition, 0, len(tagIDs))
	for _, id := range tagIDs {
		ordered = append(ordered, byID[id])
	}
	schemas, err := buildSchemas(ordered)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks, err := e.retrieve(ctx, documentID, schemas, method)
	if err != nil {
		return nil, err
	}
	retrievalDur := time.Since(start)

	prompt := buildPrompt(schemas, chunks)

	completionStart := time.Now()
	raw, payloads, parseErr := e.complete(ctx, prompt)
	if parseErr != nil && !errors.Is(parseErr, errUnparseable) {
		return nil, parseErr
	}
	completionDur := time.Since(completionStart)

	timing, _ := json.Marshal(map[string]int64{
		"retrieval_ms":  retrievalDur.Milliseconds(),
		"completion_ms": completionDur.Milliseconds(),
		"total_ms":      time.Since(start).Milliseconds(),
	})
	trace := encodeTrace(chunks)
	parseFailed := parseErr != nil

	outcomes := make([]TagOutcome, 0, len(schemas))
	for _, schema := range schemas {
		outcome := TagOutcome{
			TagID:       schema.Tag.ID,
			TagName:     schema.Tag.Name,
			ParseFailed: parseFailed,
		}
		if parseFailed {
			// Degraded result: a free-text tag keeps the raw completion
			// so nothing is lost; choice tags stay null.
			if schema.Tag.Type == models.TagTypeTextInput && strings.TrimSpace(raw) != "" {
				outcome.Value = raw
			}
		} else if payload, ok := payloads[schema.Tag.Name]; ok {
			outcome.Value = schema.normalize(stringValues(payload.Values))
			outcome.Reasoning = payload.Reasoning
			outcome.OriginalContent = payload.OriginalContent
		}

		value, _ := json.Marshal(outcome.Value)
		res := &models.ExtractionResult{
			TagID:          schema.Tag.ID,
			DocumentID:     documentID,
			Result:         string(value),
			RetrievalTrace: trace,
			Prompt:         prompt,
			RawResponse:    raw,
			ParseFailed:    parseFailed,
			Timing:         string(timing),
		}
		if err := e.results.Append(ctx, res); err != nil {
			return nil, err
		}
		outcome.ResultID = res.ID
		outcomes = append(outcomes, outcome)
	}

	e.log.WithPayload(map[string]any{
		"document":     documentID,
		"tags":         len(schemas),
		"parse_failed": parseFailed,
	}).Info("extraction finished")
	return outcomes, nil
}

// BatchItem is the per-document outcome of a batch extraction.
type BatchItem struct {
	DocumentID string       `json:"document_id"`
	Outcomes   []TagOutcome `json:"outcomes,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// ExtractBatch runs ExtractMulti across documents on a worker pool. One
// document failing does not stop the others.
func (e *Engine) ExtractBatch(ctx context.Context, documentIDs, tagIDs []string, method string) ([]BatchItem, error) {
	pool, err := ants.NewPool(e.opts.BatchConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction pool: %w", err)
	}
	defer pool.Release()

	items := make([]BatchItem, len(documentIDs))
	var wg sync.WaitGroup
	for i, docID := range documentIDs {
		i, docID := i, docID
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			outcomes, err := e.ExtractMulti(ctx, docID, tagIDs, method)
			item := BatchItem{DocumentID: docID, Outcomes: outcomes}
			if err != nil {
				item.Error = err.Error()
			}
			items[i] = item
		})
		if submitErr != nil {
			wg.Done()
			items[i] = BatchItem{DocumentID: docID, Error: submitErr.Error()}
		}
	}
	wg.Wait()
	return items, nil
}

// retrieve runs one retrieval query per tag and merges the results,
// keeping each chunk once at its best score. The merged set is ordered
// by document position so the prompt reads naturally.
func (e *Engine) retrieve(ctx context.Context, documentID string, schemas []tagSchema, method string) ([]vectorstore.ScoredChunk, error) {
	var mu sync.Mutex
	best := make(map[string]vectorstore.ScoredChunk)

	g, gctx := errgroup.WithContext(ctx)
	for _, schema := range schemas {
		schema := schema
		g.Go(func() error {
			chunks, err := e.retriever.Retrieve(gctx, method, documentID, schema.query(), e.opts.TopK)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, c := range chunks {
				if prev, ok := best[c.ID]; !ok || c.Score > prev.Score {
					best[c.ID] = c
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]vectorstore.ScoredChunk, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].PageNumber != merged[j].PageNumber {
			return merged[i].PageNumber < merged[j].PageNumber
		}
		return merged[i].ChunkIndex < merged[j].ChunkIndex
	})
	return merged, nil
}

// complete calls the model and parses its answer, re-prompting on
// unparseable output up to the retry budget. Backend failures are not
// retried here; timeouts surface as llm.ErrTimeout.
func (e *Engine) complete(ctx context.Context, prompt string) (string, map[string]tagPayload, error) {
	var raw string
	var payloads map[string]tagPayload

	err := retry.Do(
		func() error {
			cctx, cancel := context.WithTimeout(ctx, e.opts.CompletionTimeout)
			defer cancel()

			resp, err := e.model.Generate(cctx, prompt)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			raw = resp

			parsed, err := parseResponse(resp)
			if err != nil {
				e.log.Warnf("completion is not parseable, re-prompting: %v", err)
				return err
			}
			payloads = parsed
			return nil
		},
		retry.Attempts(uint(e.opts.ParseRetries)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return raw, nil, err
		}
		if errors.Is(err, errUnparseable) {
			return raw, nil, err
		}
		return raw, nil, fmt.Errorf("completion failed: %w", err)
	}
	return raw, payloads, nil
}

type traceEntry struct {
	ChunkID    string  `json:"chunk_id"`
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

func encodeTrace(chunks []vectorstore.ScoredChunk) string {
	entries := make([]traceEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = traceEntry{
			ChunkID:    c.ID,
			PageNumber: c.PageNumber,
			ChunkIndex: c.ChunkIndex,
			Score:      c.Score,
			Text:       c.Text,
		}
	}
	raw, _ := json.Marshal(entries)
	return string(raw)
}
