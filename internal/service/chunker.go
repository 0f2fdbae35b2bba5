package service

import (
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// Chunker splits story text into bounded chunks along sentence boundaries.
// Identical input always yields an identical chunk sequence.
type Chunker struct {
	maxChunkSize int
}

// NewChunker creates a chunker with the given maximum chunk size in characters.
func NewChunker(maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 512
	}
	return &Chunker{maxChunkSize: maxChunkSize}
}

// Chunk splits text on sentence-terminal punctuation and greedily packs
// sentences into chunks under the size limit. A single sentence longer
// than the limit becomes its own oversized chunk; text is never dropped.
// Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	sentences := sentenceSplitter.Split(text, -1)

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if current.Len()+len(sentence) < c.maxChunkSize {
			current.WriteString(sentence)
			current.WriteString(". ")
			continue
		}

		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteString(". ")
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}
