package retrieval

import (
	"context"
	"fmt"
	"sort"

	"taglens/internal/embedding"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

// MethodBasic is dense similarity search over a single document. It is
// the only method currently implemented.
const MethodBasic = "basic"

// knownMethods lists every method name the API accepts. Names mapped to
// false are recognized but not implemented; asking for one fails loudly
// instead of silently degrading to basic search.
var knownMethods = map[string]bool{
	MethodBasic:       true,
	"bm25":            false,
	"query_expansion": false,
	"hyde":            false,
	"parent_document": false,
	"rerank":          false,
}

// UnsupportedMethodError is returned for any method name without an
// implementation, recognized or not.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("retrieval method '%s' is not supported", e.Method)
}

// Engine retrieves document chunks for a query.
type Engine struct {
	embedder embedding.Embedder
	vectors  vectorstore.VectorStore
	log      *logger.Logger
}

// NewEngine creates a retrieval Engine.
func NewEngine(embedder embedding.Embedder, vectors vectorstore.VectorStore) *Engine {
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		log:      logger.New("retrieval"),
	}
}

// Methods returns the accepted method names and whether each is
// implemented.
func Methods() map[string]bool {
	out := make(map[string]bool, len(knownMethods))
	for k, v := range knownMethods {
		out[k] = v
	}
	return out
}

// Retrieve runs the named method against one document and returns the
// topK chunks, best first. An empty method means basic.
func (e *Engine) Retrieve(ctx context.Context, method, documentID, query string, topK int) ([]vectorstore.ScoredChunk, error) {
	if method == "" {
		method = MethodBasic
	}
	if !knownMethods[method] {
		return nil, &UnsupportedMethodError{Method: method}
	}
	return e.basic(ctx, documentID, query, topK)
}

func (e *Engine) basic(ctx context.Context, documentID, query string, topK int) ([]vectorstore.ScoredChunk, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := e.vectors.Query(ctx, documentID, vector, topK)
	if err != nil {
		return nil, err
	}

	// Equal scores are ordered by document position so results are
	// stable across runs.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].PageNumber != chunks[j].PageNumber {
			return chunks[i].PageNumber < chunks[j].PageNumber
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})

	e.log.WithPayload(map[string]any{
		"document": documentID,
		"results":  len(chunks),
	}).Debug("retrieval query served")
	return chunks, nil
}
