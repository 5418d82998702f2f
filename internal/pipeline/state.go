// Package pipeline runs the question-answering sequence: rewrite, retrieve,
// assemble, synthesize, finalize.
package pipeline

import "github.com/doku-labs/dokuchat/internal/domain"

// Stage names as they appear in diagnostics.
const (
	StageRewriteAndRetrieve    = "rewrite_and_retrieve"
	StageAssembleAndSynthesize = "assemble_and_synthesize"
	StageFinalize              = "finalize"
)

// Answer source tags.
const (
	SourceWiki  = "wiki"
	SourceError = "error"
)

const contextPreviewChars = 500

// DiagnosticEvent records one pipeline stage execution.
type DiagnosticEvent struct {
	Stage          string  `json:"stage"`
	DurationMS     float64 `json:"duration_ms"`
	DocCount       int     `json:"doc_count"`
	ContextPreview string  `json:"context_preview,omitempty"`
}

// State is the working record of a single pipeline run. It is created fresh
// per run and owned by that run alone.
type State struct {
	Query          string
	ChatHistory    string
	RewrittenQuery string
	UsedQuery      string
	ContextDocs    []domain.RetrievalResult
	ContextText    string
	Answer         string
	Source         string
	Diagnostics    []DiagnosticEvent
}

// Output is what a completed run returns to the caller.
type Output struct {
	Answer         string              `json:"answer"`
	Source         string              `json:"source"`
	ContextDocs    []map[string]string `json:"context_docs"`
	Diagnostics    []DiagnosticEvent   `json:"diagnostics"`
	Query          string              `json:"query"`
	RewrittenQuery string              `json:"rewritten_query,omitempty"`
}

// preview caps text for diagnostic events.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) > contextPreviewChars {
		return string(runes[:contextPreviewChars])
	}
	return text
}
