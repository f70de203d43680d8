package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("report.pdf"))
	assert.True(t, Supported("notes.MD"))
	assert.True(t, Supported("table.xlsx"))
	assert.False(t, Supported("image.png"))
	assert.False(t, Supported("archive.zip"))
	assert.False(t, Supported("noext"))
}

func TestParseText(t *testing.T) {
	pages, err := Parse("notes.txt", []byte("hello world\nsecond line"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "hello world")
}

func TestParseTextEmpty(t *testing.T) {
	pages, err := Parse("empty.txt", []byte("   \n\t "))
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestParseMarkdown(t *testing.T) {
	pages, err := Parse("doc.md", []byte("# Title\n\nbody text"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "# Title")
}

func TestParseCSV(t *testing.T) {
	pages, err := Parse("data.csv", []byte("name,city\nAlice,Springfield\nBob,Shelbyville\n"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Alice\tSpringfield")
	assert.Contains(t, pages[0].Text, "Bob\tShelbyville")
}

func TestParseJSON(t *testing.T) {
	pages, err := Parse("obj.json", []byte(`{"company":{"hq":"Springfield"}}`))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, `"hq": "Springfield"`)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := Parse("bad.json", []byte(`{"broken":`))
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "json", perr.Format)
}

func TestParseHTML(t *testing.T) {
	pages, err := Parse("page.html", []byte("<html><body><h1>Title</h1><p>body</p></body></html>"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Title")
	assert.Contains(t, pages[0].Text, "body")
}

func TestParsePDFMismatchedContent(t *testing.T) {
	_, err := Parse("fake.pdf", []byte("just plain text, not a pdf"))
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "pdf", perr.Format)
}

func TestParseDOCXMismatchedContent(t *testing.T) {
	_, err := Parse("fake.docx", []byte("not a zip container"))
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "docx", perr.Format)
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := Parse("image.png", []byte{0x89, 0x50, 0x4e, 0x47})
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
}
