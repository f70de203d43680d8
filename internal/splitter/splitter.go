package splitter

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one splitter output unit, addressable by a deterministic ID so
// re-ingesting the same document overwrites its previous vectors.
type Chunk struct {
	ID         string
	DocumentID string
	PageNumber int
	ChunkIndex int
	Text       string
}

// ChunkID derives the stable identifier of a chunk from its position.
func ChunkID(documentID string, pageNumber, chunkIndex int) string {
	return fmt.Sprintf("%s_p%d_c%d", documentID, pageNumber, chunkIndex)
}

// Splitter cuts page text into overlapping chunks. Separator order prefers
// paragraph and sentence boundaries, including CJK sentence punctuation.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// New creates a Splitter with the given target chunk size and overlap,
// both measured in characters.
func New(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", "。", "！", "？", " ", ""}),
		),
	}
}

// SplitPage splits one page of a document into chunks. Whitespace-only
// pages yield no chunks.
func (s *Splitter) SplitPage(documentID string, pageNumber int, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := s.inner.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split page %d of document '%s': %w", pageNumber, documentID, err)
	}

	chunks := make([]Chunk, 0, len(parts))
	idx := 0
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, pageNumber, idx),
			DocumentID: documentID,
			PageNumber: pageNumber,
			ChunkIndex: idx,
			Text:       part,
		})
		idx++
	}
	return chunks, nil
}
