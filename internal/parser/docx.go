package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/unidoc/unioffice/v2/document"
)

// parseDOCX extracts paragraph and table text. Word documents carry no
// reliable page boundaries, so the whole body becomes a single page.
func parseDOCX(filename string, data []byte) ([]Page, error) {
	if !mimetype.Detect(data).Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") {
		return nil, &ParseError{Filename: filename, Format: "docx",
			Err: fmt.Errorf("content is not a DOCX")}
	}

	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "docx", Err: err}
	}
	defer doc.Close()

	var sb strings.Builder
	for _, para := range doc.Paragraphs() {
		var line strings.Builder
		for _, run := range para.Runs() {
			line.WriteString(run.Text())
		}
		if strings.TrimSpace(line.String()) != "" {
			sb.WriteString(line.String())
			sb.WriteString("\n")
		}
	}
	for _, tbl := range doc.Tables() {
		for _, row := range tbl.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				var cellText strings.Builder
				for _, para := range cell.Paragraphs() {
					for _, run := range para.Runs() {
						cellText.WriteString(run.Text())
					}
				}
				cells = append(cells, cellText.String())
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteString("\n")
		}
	}

	return renumber([]string{sb.String()}), nil
}
