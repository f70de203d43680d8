package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// parsePDF extracts plain text page by page. Source page numbers are
// preserved so chunk IDs stay aligned with the original layout; pages
// that carry no extractable text are skipped.
func parsePDF(filename string, data []byte) ([]Page, error) {
	if !mimetype.Detect(data).Is("application/pdf") {
		return nil, &ParseError{Filename: filename, Format: "pdf",
			Err: fmt.Errorf("content is not a PDF")}
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "pdf", Err: err}
	}

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Per-page extraction trips on some generators; fall back
			// to whole-document extraction as a single page.
			return pdfWholeDocument(filename, r)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

func pdfWholeDocument(filename string, r *pdf.Reader) ([]Page, error) {
	body, err := r.GetPlainText()
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "pdf", Err: err}
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, body); err != nil {
		return nil, &ParseError{Filename: filename, Format: "pdf", Err: err}
	}
	return renumber([]string{sb.String()}), nil
}
