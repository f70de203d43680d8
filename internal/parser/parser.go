package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Page is one unit of parsed document text. Page numbers start at 1. For
// PDFs they are the source page numbers; for other formats they are
// assigned sequentially after empty pages are dropped.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ParseError marks a permanently unparseable document. Ingestion jobs
// that hit one are failed without retry.
type ParseError struct {
	Filename string
	Format   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse '%s' as %s: %v", e.Filename, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SupportedExtensions lists the file extensions the parser accepts,
// without the leading dot.
var SupportedExtensions = []string{"pdf", "docx", "txt", "md", "markdown", "csv", "xlsx", "html", "htm", "json"}

// Supported reports whether filename has a parseable extension.
func Supported(filename string) bool {
	ext := normalizeExt(filename)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse dispatches on the file extension and returns the non-empty pages
// of the document. A document whose pages are all empty yields an empty
// slice and no error.
func Parse(filename string, data []byte) ([]Page, error) {
	ext := normalizeExt(filename)
	switch ext {
	case "pdf":
		return parsePDF(filename, data)
	case "docx":
		return parseDOCX(filename, data)
	case "txt", "md", "markdown":
		return parseText(filename, data)
	case "csv":
		return parseCSV(filename, data)
	case "xlsx":
		return parseXLSX(filename, data)
	case "html", "htm":
		return parseHTML(filename, data)
	case "json":
		return parseJSON(filename, data)
	default:
		return nil, &ParseError{Filename: filename, Format: ext,
			Err: fmt.Errorf("unsupported file extension")}
	}
}

func normalizeExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// renumber drops whitespace-only pages and assigns sequential page
// numbers starting at 1.
func renumber(texts []string) []Page {
	pages := make([]Page, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		pages = append(pages, Page{Number: len(pages) + 1, Text: t})
	}
	return pages
}
