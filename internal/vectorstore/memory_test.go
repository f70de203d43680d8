package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taglens/internal/splitter"
)

func chunk(docID string, page, idx int, text string) splitter.Chunk {
	return splitter.Chunk{
		ID:         splitter.ChunkID(docID, page, idx),
		DocumentID: docID,
		PageNumber: page,
		ChunkIndex: idx,
		Text:       text,
	}
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c := chunk("doc-1", 1, 0, "old text")
	require.NoError(t, s.Upsert(ctx, []splitter.Chunk{c}, [][]float32{{1, 0}}))

	c.Text = "new text"
	require.NoError(t, s.Upsert(ctx, []splitter.Chunk{c}, [][]float32{{1, 0}}))

	assert.Equal(t, 1, s.Count("doc-1"))
	res, err := s.Query(ctx, "doc-1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "new text", res[0].Text)
}

func TestMemoryStoreQueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	chunks := []splitter.Chunk{
		chunk("doc-1", 1, 0, "exact match"),
		chunk("doc-1", 2, 0, "orthogonal"),
		chunk("doc-2", 1, 0, "other document"),
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 0}}
	require.NoError(t, s.Upsert(ctx, chunks, vectors))

	res, err := s.Query(ctx, "doc-1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "exact match", res[0].Text)
	assert.InDelta(t, 1.0, float64(res[0].Score), 1e-6)
	assert.Equal(t, "orthogonal", res[1].Text)
}

func TestMemoryStoreQueryTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	chunks := []splitter.Chunk{
		chunk("doc-1", 2, 1, "page two"),
		chunk("doc-1", 1, 1, "page one second"),
		chunk("doc-1", 1, 0, "page one first"),
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	require.NoError(t, s.Upsert(ctx, chunks, vectors))

	res, err := s.Query(ctx, "doc-1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "page one first", res[0].Text)
	assert.Equal(t, "page one second", res[1].Text)
}

func TestMemoryStoreDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	chunks := []splitter.Chunk{
		chunk("doc-1", 1, 0, "a"),
		chunk("doc-2", 1, 0, "b"),
	}
	require.NoError(t, s.Upsert(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))

	require.NoError(t, s.DeleteByDocument(ctx, "doc-1"))
	assert.Equal(t, 0, s.Count("doc-1"))
	assert.Equal(t, 1, s.Count("doc-2"))
}

func TestMemoryStoreMismatchedInput(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []splitter.Chunk{chunk("doc-1", 1, 0, "a")}, nil)
	assert.Error(t, err)
}
