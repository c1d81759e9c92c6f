package docloader

import "strings"

// Splitter defaults. Sized for embedding-friendly chunks: roughly a
// printed page of text with enough overlap to keep sentences whole
// across boundaries.
const (
	defaultChunkSize    = 1600
	defaultChunkOverlap = 200
)

// TextSplitter cuts text into fixed-size windows with overlap,
// preferring to break on whitespace near the window edge.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func defaultTextSplitter() TextSplitter {
	return TextSplitter{ChunkSize: defaultChunkSize, ChunkOverlap: defaultChunkOverlap}
}

// Split returns the chunks of text in order. Every rune of the input
// appears in at least one chunk.
func (s TextSplitter) Split(text string) []string {
	size := s.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	overlap := s.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Back up to the last whitespace inside the window so a
			// word is never cut in half, unless the window holds one
			// unbroken run.
			cut := end
			for cut > start+size/2 && !isSpace(runes[cut-1]) {
				cut--
			}
			if cut > start+size/2 {
				end = cut
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		// Start the overlap on a word boundary too, so the next
		// chunk never opens mid-word.
		for next > start && next < end && !isSpace(runes[next-1]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// MarkdownSplitter splits on heading boundaries first, then feeds
// oversized sections through the text splitter so no chunk exceeds
// the window.
type MarkdownSplitter struct {
	Text TextSplitter
}

// Split returns the markdown's sections as chunks.
func (s MarkdownSplitter) Split(text string) []string {
	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
	}

	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}
		// Heading lines inside code fences are code, not structure.
		if !inFence && isHeading(trimmed) {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, s.Text.Split(section)...)
	}
	return chunks
}

func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level <= 6 && level < len(line) && line[level] == ' '
}
