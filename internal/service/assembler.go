package service

import (
	"strings"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
)

const contextSeparator = "\n\n"

// maxContextResults bounds how many ranked chunks feed the synthesizer.
const maxContextResults = 3

// assembleContext joins the top-ranked chunk texts into a single bounded
// context string. When the bound would be exceeded, the lowest-ranked
// included chunk is truncated rather than dropping a higher-ranked chunk.
func assembleContext(results []domain.SearchResult, maxChars int) string {
	if len(results) > maxContextResults {
		results = results[:maxContextResults]
	}

	var b strings.Builder
	for _, r := range results {
		sep := ""
		if b.Len() > 0 {
			sep = contextSeparator
		}

		remaining := maxChars - b.Len() - len(sep)
		if remaining <= 0 {
			break
		}

		text := r.Text
		if len(text) > remaining {
			text = text[:remaining]
		}
		b.WriteString(sep)
		b.WriteString(text)
	}
	return b.String()
}
