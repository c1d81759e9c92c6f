package docloader

import (
	"strings"
	"unicode/utf8"
)

// sourceExtensions maps file extensions to language names for the
// source-code loader.
var sourceExtensions = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
}

// declPrefixes are the column-zero keywords that open a top-level
// declaration in the supported languages. Splitting on them keeps a
// function or type together in one chunk.
var declPrefixes = []string{
	"func ", "fn ", "pub fn ", "def ", "class ", "struct ", "type ",
	"interface ", "impl ", "enum ", "trait ", "mod ", "module ",
	"function ", "export ", "public ", "private ", "protected ",
	"static ", "const ", "var ", "package ",
}

func sourceLanguage(ext string) string {
	return sourceExtensions[ext]
}

// parseSource splits a source file on top-level declaration
// boundaries; oversized declarations fall through the text splitter.
func parseSource(name string, data []byte) (*Doc, error) {
	if !utf8.Valid(data) {
		return nil, ErrUnsupported
	}

	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			sections = append(sections, current.String())
		}
		current.Reset()
	}

	for _, line := range strings.Split(string(data), "\n") {
		if startsDeclaration(line) && current.Len() > 0 {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	splitter := defaultTextSplitter()
	var pieces []string
	for _, section := range sections {
		pieces = append(pieces, splitter.Split(section)...)
	}

	return &Doc{Name: name, Chunks: toChunks(pieces)}, nil
}

func startsDeclaration(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	for _, prefix := range declPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
