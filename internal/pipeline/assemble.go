package pipeline

import (
	"strings"

	"github.com/doku-labs/dokuchat/internal/domain"
)

// AssembleContext concatenates passage contents in ranking order with a
// blank-line separator and cuts the result at maxChars runes. The cutoff is
// a plain character prefix, not token-aware.
func AssembleContext(results []domain.RetrievalResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Document.Content
	}
	joined := strings.Join(parts, "\n\n")

	runes := []rune(joined)
	if maxChars > 0 && len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return joined
}
