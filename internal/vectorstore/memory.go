package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"taglens/internal/splitter"
)

// MemoryStore is an in-process VectorStore with exact cosine search.
// Used in tests and single-node setups without a Milvus deployment.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

type memoryRow struct {
	chunk  splitter.Chunk
	vector []float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]memoryRow)}
}

// Upsert writes chunks and their vectors, overwriting by chunk ID.
func (s *MemoryStore) Upsert(_ context.Context, chunks []splitter.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		s.rows[c.ID] = memoryRow{chunk: c, vector: vec}
	}
	return nil
}

// Query returns the topK most similar chunks of documentID, ties broken
// by page number then chunk index.
func (s *MemoryStore) Query(_ context.Context, documentID string, vector []float32, topK int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []ScoredChunk
	for _, row := range s.rows {
		if row.chunk.DocumentID != documentID {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: row.chunk, Score: cosine(vector, row.vector)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].PageNumber != scored[j].PageNumber {
			return scored[i].PageNumber < scored[j].PageNumber
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteByDocument removes every chunk of documentID.
func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.chunk.DocumentID == documentID {
			delete(s.rows, id)
		}
	}
	return nil
}

// Count reports the stored row count for documentID.
func (s *MemoryStore) Count(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.rows {
		if row.chunk.DocumentID == documentID {
			n++
		}
	}
	return n
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
