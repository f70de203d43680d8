package parser

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// parseHTML converts the markup to Markdown so headings and lists survive
// chunking. The converted body is a single page.
func parseHTML(filename string, data []byte) ([]Page, error) {
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "html", Err: err}
	}
	return renumber([]string{md}), nil
}
