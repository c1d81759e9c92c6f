// Package docloader turns files into named, chunked plain text for
// indexing. It is a pure function over the file name and payload: it
// never touches the storage engine, and its output is consumed by
// higher layers.
package docloader

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported is returned for payloads no loader can handle.
var ErrUnsupported = errors.New("unsupported document type")

// Chunk is one splitter-sized piece of a document.
type Chunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Doc is a parsed document: the file's base name plus its content
// chunks in order.
type Doc struct {
	Name   string  `json:"name"`
	Chunks []Chunk `json:"chunks"`
}

// Parse loads the document at path from data and splits it into
// chunks. Dispatch is by filename extension; unknown extensions fall
// back to plain text when the payload is valid UTF-8.
func Parse(path string, data []byte) (*Doc, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	var (
		content string
		err     error
		md      bool
	)
	switch {
	case ext == ".md" || ext == ".markdown":
		content, err = loadText(data)
		md = true
	case ext == ".txt":
		content, err = loadText(data)
	case ext == ".html" || ext == ".htm":
		content, err = loadHTML(data)
	case ext == ".pdf":
		content, err = loadPDF(data)
	case ext == ".docx":
		content, err = loadDOCX(data)
	case sourceLanguage(ext) != "":
		return parseSource(name, data)
	default:
		if !utf8.Valid(data) {
			return nil, ErrUnsupported
		}
		content, err = loadText(data)
	}
	if err != nil {
		return nil, err
	}

	var pieces []string
	if md {
		pieces = MarkdownSplitter{Text: defaultTextSplitter()}.Split(content)
	} else {
		pieces = defaultTextSplitter().Split(content)
	}

	return &Doc{Name: name, Chunks: toChunks(pieces)}, nil
}

func toChunks(pieces []string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Content: piece})
	}
	return chunks
}

func loadText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrUnsupported
	}
	return string(data), nil
}
