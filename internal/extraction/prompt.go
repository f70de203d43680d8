package extraction

import (
	"fmt"
	"strings"

	"taglens/internal/vectorstore"
)

// buildPrompt composes the extraction prompt: excerpted document context,
// the tag schema, and the response contract. The model must answer with
// one JSON object keyed by tag name, each entry carrying values,
// reasoning, and the supporting original text.
func buildPrompt(schemas []tagSchema, chunks []vectorstore.ScoredChunk) string {
	var sb strings.Builder

	sb.WriteString("You extract structured field values from a document.\n\n")
	sb.WriteString("Document excerpts:\n")
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("[page %d, chunk %d]\n%s\n\n", c.PageNumber, c.ChunkIndex, c.Text))
	}

	sb.WriteString("Fields to extract:\n")
	for _, s := range schemas {
		sb.WriteString(s.describe())
		sb.WriteString("\n")
	}

	sb.WriteString("\nAnswer with a single JSON object and nothing else. ")
	sb.WriteString("Use the exact field names as keys. Each value must be an object of the form:\n")
	sb.WriteString(`{"values": ["..."], "reasoning": "why these values", "original_content": "the exact supporting text"}` + "\n")
	sb.WriteString("If the excerpts do not answer a field, use an empty values list and explain in reasoning.\n")

	return sb.String()
}
