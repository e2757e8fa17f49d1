package ingest

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChunkSize caps chunk length in bytes.
	DefaultMaxChunkSize = 1000
	// DefaultOverlap is the approximate byte length carried over between
	// adjacent chunks so context survives the boundary. The carried text is
	// the trailing overlap/5 words of the previous chunk.
	DefaultOverlap = 200
)

var paragraphSplit = regexp.MustCompile(`\n\n+`)

// ChunkText splits text into chunks along paragraph boundaries. Paragraphs
// accumulate until adding the next one would exceed maxChunkSize; the chunk
// is then flushed and a word-level tail of it seeds the next chunk. A single
// paragraph longer than maxChunkSize becomes its own oversized chunk rather
// than being split mid-sentence.
func ChunkText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	var chunks []string
	var current string

	for _, paragraph := range paragraphSplit.Split(text, -1) {
		if len(current)+len(paragraph) > maxChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(current))
			words := strings.Split(current, " ")
			keep := overlap / 5
			if keep > len(words) {
				keep = len(words)
			}
			current = strings.Join(words[len(words)-keep:], " ") + "\n\n" + paragraph
		} else {
			if current != "" {
				current += "\n\n"
			}
			current += paragraph
		}
	}

	if trimmed := strings.TrimSpace(current); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}
