package ingest

import (
	"context"
	"fmt"

	"taglens/internal/embedding"
	"taglens/internal/splitter"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

// Indexer embeds chunks and writes them to the vector store, consulting
// the vector cache first so only cache misses hit the backend.
type Indexer struct {
	embedder embedding.Embedder
	vectors  vectorstore.VectorStore
	cache    VectorCache
	log      *logger.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder embedding.Embedder, vectors vectorstore.VectorStore, cache VectorCache) *Indexer {
	return &Indexer{
		embedder: embedder,
		vectors:  vectors,
		cache:    cache,
		log:      logger.New("indexer"),
	}
}

// EmbedAndIndex embeds every chunk and upserts the results. Cache misses
// are embedded in one batch call and written back to the cache.
func (ix *Indexer) EmbedAndIndex(ctx context.Context, chunks []splitter.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, len(chunks))
	var missIdx []int
	var missTexts []string
	for i, c := range chunks {
		key := CacheKey(ix.embedder.Name(), c.Text)
		if vec, ok, err := ix.cache.Get(ctx, key); err != nil {
			return err
		} else if ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, c.Text)
	}

	if len(missTexts) > 0 {
		embedded, err := ix.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return fmt.Errorf("failed to embed %d chunks: %w", len(missTexts), err)
		}
		for j, i := range missIdx {
			vectors[i] = embedded[j]
			key := CacheKey(ix.embedder.Name(), chunks[i].Text)
			if err := ix.cache.Set(ctx, key, embedded[j]); err != nil {
				ix.log.WithField("chunk", chunks[i].ID).Warnf("failed to cache embedding: %v", err)
			}
		}
	}

	ix.log.WithPayload(map[string]any{
		"chunks": len(chunks),
		"missed": len(missTexts),
	}).Debug("embedded chunk batch")

	return ix.vectors.Upsert(ctx, chunks, vectors)
}
