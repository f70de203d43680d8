package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1_p3_c0", ChunkID("doc-1", 3, 0))
	assert.Equal(t, "doc-1_p3_c7", ChunkID("doc-1", 3, 7))
}

func TestSplitPageDeterministic(t *testing.T) {
	s := New(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)

	first, err := s.SplitPage("doc-1", 1, text)
	require.NoError(t, err)
	second, err := s.SplitPage("doc-1", 1, text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NotEmpty(t, first)

	seen := make(map[string]bool)
	for i, c := range first {
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, 1, c.PageNumber)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, ChunkID("doc-1", 1, i), c.ID)
		assert.False(t, seen[c.ID], "duplicate chunk id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestSplitPageEmpty(t *testing.T) {
	s := New(1000, 200)

	chunks, err := s.SplitPage("doc-1", 1, "")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = s.SplitPage("doc-1", 1, "  \n\t  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitPageShortText(t *testing.T) {
	s := New(1000, 200)

	chunks, err := s.SplitPage("doc-1", 2, "short page")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1_p2_c0", chunks[0].ID)
	assert.Equal(t, "short page", chunks[0].Text)
}
