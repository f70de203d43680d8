package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// parseText handles plain text and Markdown, which is already the
// pipeline's canonical representation. The whole file is one page.
func parseText(filename string, data []byte) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Filename: filename, Format: "text",
			Err: fmt.Errorf("content is not valid UTF-8")}
	}
	return renumber([]string{string(data)}), nil
}

// parseCSV renders the records as tab-separated lines on a single page.
func parseCSV(filename string, data []byte) ([]Page, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "csv", Err: err}
	}

	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(strings.Join(rec, "\t"))
		sb.WriteString("\n")
	}
	return renumber([]string{sb.String()}), nil
}

// parseJSON validates the payload and keeps it as indented text so field
// names survive into the chunks.
func parseJSON(filename string, data []byte) ([]Page, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &ParseError{Filename: filename, Format: "json", Err: err}
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "json", Err: err}
	}
	return renumber([]string{string(pretty)}), nil
}
