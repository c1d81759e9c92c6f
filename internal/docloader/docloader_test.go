package docloader

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	doc, err := Parse("/tmp/notes.txt", []byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", doc.Name)
	require.Len(t, doc.Chunks, 1)
	assert.Equal(t, 0, doc.Chunks[0].Index)
	assert.Equal(t, "hello world", doc.Chunks[0].Content)
}

func TestParseMarkdownSplitsOnHeadings(t *testing.T) {
	content := "# Title\n\nintro text\n\n## Section A\n\nbody a\n\n## Section B\n\nbody b\n"
	doc, err := Parse("guide.md", []byte(content))
	require.NoError(t, err)

	require.Len(t, doc.Chunks, 3)
	assert.Contains(t, doc.Chunks[0].Content, "# Title")
	assert.Contains(t, doc.Chunks[1].Content, "## Section A")
	assert.Contains(t, doc.Chunks[2].Content, "## Section B")

	for i, chunk := range doc.Chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestParseHTML(t *testing.T) {
	content := `<html><head><title>t</title><style>p{color:red}</style></head>
		<body><script>alert(1)</script><p>first paragraph</p><p>second paragraph</p></body></html>`
	doc, err := Parse("page.html", []byte(content))
	require.NoError(t, err)

	require.NotEmpty(t, doc.Chunks)
	text := doc.Chunks[0].Content
	assert.Contains(t, text, "first paragraph")
	assert.Contains(t, text, "second paragraph")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestParseDOCX(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0"?>
		<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
			<w:body>
				<w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
				<w:p><w:r><w:t>second paragraph</w:t></w:r></w:p>
			</w:body>
		</w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	doc, err := Parse("report.docx", buf.Bytes())
	require.NoError(t, err)

	require.NotEmpty(t, doc.Chunks)
	assert.Contains(t, doc.Chunks[0].Content, "first paragraph")
	assert.Contains(t, doc.Chunks[0].Content, "second paragraph")
}

func TestParseSourceCode(t *testing.T) {
	content := `package main

import "fmt"

func add(a, b int) int {
	return a + b
}

func main() {
	fmt.Println(add(1, 2))
}
`
	doc, err := Parse("main.go", []byte(content))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(doc.Chunks), 2)
	var joined strings.Builder
	for i, chunk := range doc.Chunks {
		assert.Equal(t, i, chunk.Index)
		joined.WriteString(chunk.Content)
		joined.WriteString("\n")
	}
	assert.Contains(t, joined.String(), "func add")
	assert.Contains(t, joined.String(), "func main")
}

func TestParseUnknownBinaryUnsupported(t *testing.T) {
	_, err := Parse("image.bin", []byte{0xFF, 0xFE, 0x00, 0x01, 0x80})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestParseUnknownTextFallsBack(t *testing.T) {
	doc, err := Parse("LICENSE", []byte("plain license text"))
	require.NoError(t, err)
	require.Len(t, doc.Chunks, 1)
	assert.Equal(t, "plain license text", doc.Chunks[0].Content)
}

func TestParseMalformedDOCX(t *testing.T) {
	_, err := Parse("broken.docx", []byte("this is not a zip archive"))
	assert.Error(t, err)
}
