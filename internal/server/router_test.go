package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doku-labs/dokuchat/internal/api/handlers"
	"github.com/doku-labs/dokuchat/internal/pipeline"
)

type stubPipeline struct {
	output *pipeline.Output
}

func (s *stubPipeline) Run(ctx context.Context, query, chatHistory string) *pipeline.Output {
	return s.output
}

func newTestRouter(out *pipeline.Output) http.Handler {
	return NewRouter(RouterConfig{
		AskHandler: handlers.NewAskHandler(&stubPipeline{output: out}),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Ask(t *testing.T) {
	router := newTestRouter(&pipeline.Output{
		Answer: "grounded answer",
		Source: pipeline.SourceWiki,
		Query:  "q",
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"query": "q"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "grounded answer", resp.Data.Answer)
}

func TestRouter_AskRejectsOversizedBody(t *testing.T) {
	router := newTestRouter(nil)

	huge := strings.Repeat("x", 2*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"query": "`+huge+`"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
