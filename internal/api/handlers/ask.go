package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doku-labs/dokuchat/internal/api"
	"github.com/doku-labs/dokuchat/internal/pipeline"
)

// Pipeline is the invocation surface the handler needs.
type Pipeline interface {
	Run(ctx context.Context, query, chatHistory string) *pipeline.Output
}

type AskHandler struct {
	pipeline Pipeline
}

func NewAskHandler(p Pipeline) *AskHandler {
	return &AskHandler{pipeline: p}
}

type AskRequest struct {
	Query       string `json:"query"`
	ChatHistory string `json:"chat_history,omitempty"`
}

type AskResponse struct {
	Answer         string                     `json:"answer"`
	Source         string                     `json:"source"`
	ContextDocs    []map[string]string        `json:"context_docs"`
	Diagnostics    []pipeline.DiagnosticEvent `json:"diagnostics"`
	Query          string                     `json:"query"`
	RewrittenQuery string                     `json:"rewritten_query,omitempty"`
}

// Ask answers a question against the ingested corpus.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out := h.pipeline.Run(r.Context(), req.Query, req.ChatHistory)

	api.Success(w, http.StatusOK, AskResponse{
		Answer:         out.Answer,
		Source:         out.Source,
		ContextDocs:    out.ContextDocs,
		Diagnostics:    out.Diagnostics,
		Query:          out.Query,
		RewrittenQuery: out.RewrittenQuery,
	})
}
