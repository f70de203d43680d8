package vectorstore

import (
	"context"

	"taglens/internal/splitter"
)

// ScoredChunk is a retrieved chunk with its similarity score. Higher
// scores mean closer matches.
type ScoredChunk struct {
	splitter.Chunk
	Score float32
}

// VectorStore holds document chunk embeddings and serves similarity
// queries scoped to a single document.
type VectorStore interface {
	// Upsert writes chunks and their vectors; rows with an existing
	// chunk ID are overwritten. chunks and vectors must be parallel.
	Upsert(ctx context.Context, chunks []splitter.Chunk, vectors [][]float32) error
	// Query returns the topK most similar chunks of documentID.
	Query(ctx context.Context, documentID string, vector []float32, topK int) ([]ScoredChunk, error)
	// DeleteByDocument removes every chunk of documentID.
	DeleteByDocument(ctx context.Context, documentID string) error
}
