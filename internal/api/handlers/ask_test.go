package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doku-labs/dokuchat/internal/pipeline"
)

type stubPipeline struct {
	output     *pipeline.Output
	gotQuery   string
	gotHistory string
	calls      int
}

func (s *stubPipeline) Run(ctx context.Context, query, chatHistory string) *pipeline.Output {
	s.calls++
	s.gotQuery = query
	s.gotHistory = chatHistory
	return s.output
}

func TestAsk_Success(t *testing.T) {
	p := &stubPipeline{output: &pipeline.Output{
		Answer:      "Page the on-call engineer.",
		Source:      pipeline.SourceWiki,
		ContextDocs: []map[string]string{{"source": "docs/policy.md", "type": "wiki"}},
		Diagnostics: []pipeline.DiagnosticEvent{{Stage: "rewrite_and_retrieve", DocCount: 1}},
		Query:       "What is the escalation policy?",
	}}
	h := NewAskHandler(p)

	body := `{"query": "What is the escalation policy?", "chat_history": "user: hi\nassistant: hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "What is the escalation policy?", p.gotQuery)
	assert.Equal(t, "user: hi\nassistant: hello", p.gotHistory)

	var resp struct {
		Data AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Page the on-call engineer.", resp.Data.Answer)
	assert.Equal(t, pipeline.SourceWiki, resp.Data.Source)
	require.Len(t, resp.Data.ContextDocs, 1)
	assert.Equal(t, "docs/policy.md", resp.Data.ContextDocs[0]["source"])
	require.Len(t, resp.Data.Diagnostics, 1)
	assert.Equal(t, "rewrite_and_retrieve", resp.Data.Diagnostics[0].Stage)
}

func TestAsk_InvalidBody(t *testing.T) {
	p := &stubPipeline{}
	h := NewAskHandler(p)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, p.calls)
}

func TestAsk_EmptyQuery(t *testing.T) {
	p := &stubPipeline{}
	h := NewAskHandler(p)

	for _, body := range []string{`{}`, `{"query": ""}`, `{"query": "   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.Ask(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Equal(t, 0, p.calls)
}

func TestAsk_ErrorSourcePassesThrough(t *testing.T) {
	p := &stubPipeline{output: &pipeline.Output{
		Answer: "Answer generation failed: model unavailable",
		Source: pipeline.SourceError,
		Query:  "q",
	}}
	h := NewAskHandler(p)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"query": "q"}`))
	w := httptest.NewRecorder()

	h.Ask(w, req)

	// Pipeline failures are reported in-band; the HTTP call itself succeeded.
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.SourceError, resp.Data.Source)
}
