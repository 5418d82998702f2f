//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doku-labs/dokuchat/internal/api/handlers"
	"github.com/doku-labs/dokuchat/internal/embedding"
	"github.com/doku-labs/dokuchat/internal/ingest"
	"github.com/doku-labs/dokuchat/internal/lexical"
	"github.com/doku-labs/dokuchat/internal/llm"
	"github.com/doku-labs/dokuchat/internal/pipeline"
	"github.com/doku-labs/dokuchat/internal/retriever"
	"github.com/doku-labs/dokuchat/internal/rewrite"
	"github.com/doku-labs/dokuchat/internal/server"
	"github.com/doku-labs/dokuchat/internal/store"
	"github.com/doku-labs/dokuchat/internal/testutil"
)

const embeddingDim = 32

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	ModelSrv   *httptest.Server
	ServerURL  string
	HTTPClient *http.Client
}

// SetupE2EEnv creates a full test environment: a pgvector container, a stub
// OpenAI-compatible model server and the wired HTTP daemon.
func SetupE2EEnv(t *testing.T, corpusDir string) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	modelSrv := newStubModelServer()
	t.Cleanup(modelSrv.Close)

	embedder, err := embedding.NewClient(embedding.Config{
		Endpoint:  modelSrv.URL,
		Model:     "stub-embed",
		MaxTokens: 512,
	})
	if err != nil {
		t.Fatalf("failed to create embedding client: %v", err)
	}

	vectorStore := store.New(pool)

	processor := ingest.NewProcessor(ingest.Options{
		ChunkSize:      500,
		ChunkOverlap:   50,
		EnableChunking: true,
	})
	docs, err := processor.ProcessDirectory(ctx, corpusDir)
	if err != nil {
		t.Fatalf("failed to process corpus: %v", err)
	}

	indexer := ingest.NewIndexer(embedder, vectorStore)
	if _, err := indexer.BuildCollection(ctx, "wiki", docs); err != nil {
		t.Fatalf("failed to build collection: %v", err)
	}

	lexicalIndex := lexical.NewIndex()
	for i, doc := range docs {
		lexicalIndex.Add(fmt.Sprintf("wiki-%d", i), doc)
	}

	agentCfg := llm.AgentConfig{
		Endpoint:   modelSrv.URL,
		Model:      "stub-chat",
		Timeout:    10 * time.Second,
		MaxRetries: 1,
	}
	chatAgent, err := llm.NewClient(agentCfg)
	if err != nil {
		t.Fatalf("failed to create chat agent: %v", err)
	}
	registry := llm.NewRegistry()
	registry.Register(llm.AgentSynthesizer, chatAgent)
	registry.Register(llm.AgentRewriter, chatAgent)

	hybrid := retriever.New(embedder, vectorStore, lexicalIndex, retriever.Options{
		Collection: "wiki",
		K:          5,
		Threshold:  0.34,
	})

	orchestrator := pipeline.New(rewrite.New(chatAgent, 2), hybrid, registry, pipeline.Options{
		ContextMaxChars: 30000,
	})

	router := server.NewRouter(server.RouterConfig{
		AskHandler: handlers.NewAskHandler(orchestrator),
	})
	apiSrv := httptest.NewServer(router)
	t.Cleanup(apiSrv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		ModelSrv:   modelSrv,
		ServerURL:  apiSrv.URL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Teardown releases container resources.
func (env *E2ETestEnv) Teardown() {
	env.Pool.Close()
	_ = env.PostgresC.Terminate(env.Ctx)
}

// WriteCorpus writes markdown files into a temp dir and returns its path.
func WriteCorpus(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create corpus dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write corpus file: %v", err)
		}
	}
	return dir
}

// newStubModelServer serves OpenAI-compatible /v1/embeddings and
// /v1/chat/completions. Embeddings are bag-of-words projections so that
// texts sharing tokens land near each other; chat answers echo the system
// prompt so assertions can verify grounding.
func newStubModelServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
			Object    string    `json:"object"`
		}
		resp := struct {
			Object string  `json:"object"`
			Data   []datum `json:"data"`
		}{Object: "list"}

		for i, text := range req.Input {
			resp.Data = append(resp.Data, datum{
				Index:     i,
				Embedding: bagOfWordsVector(text),
				Object:    "embedding",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		content := ""
		if len(req.Messages) > 0 {
			content = req.Messages[0].Content
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	return httptest.NewServer(mux)
}

func bagOfWordsVector(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(token, ".,;:!?\"'()")))
		vec[h.Sum32()%embeddingDim]++
	}
	return vec
}
