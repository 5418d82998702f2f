// Package retriever fuses semantic and lexical search into a single ranked
// result list.
package retriever

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/doku-labs/dokuchat/internal/domain"
)

// Fusion weights and the reciprocal-rank constant. The semantic source
// dominates because lexical matching over-rewards exact token repeats.
const (
	semanticWeight = 0.6
	lexicalWeight  = 0.4
	rrfK           = 60
)

// FusionOutcome records which merge path a retrieval took, so callers and
// tests can assert on degradation instead of parsing logs.
type FusionOutcome string

const (
	// FusionApplied means both sources ran and their rankings were merged.
	FusionApplied FusionOutcome = "applied"
	// FusionSkipped means no lexical index is configured and semantic
	// results were returned directly.
	FusionSkipped FusionOutcome = "skipped"
	// FusionDegraded means the lexical source failed and the call fell
	// back to semantic-only results.
	FusionDegraded FusionOutcome = "degraded"
)

// Result is the outcome of one retrieval call.
type Result struct {
	Docs                 []domain.RetrievalResult
	Fusion               FusionOutcome
	UsedOriginalFallback bool
}

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorSearcher is the semantic side of retrieval.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int, threshold float64) ([]domain.RetrievalResult, error)
}

// LexicalSearcher is the keyword side of retrieval. It never blocks on IO.
type LexicalSearcher interface {
	Search(query string, k int) []domain.RetrievalResult
}

// Options configures a Retriever.
type Options struct {
	Collection string
	K          int
	Threshold  float64
}

// Retriever runs semantic plus lexical search and merges the rankings with
// weighted reciprocal rank fusion.
type Retriever struct {
	embedder QueryEmbedder
	store    VectorSearcher
	lexical  LexicalSearcher
	opts     Options
}

// New creates a Retriever. lexical may be nil, in which case every call
// returns semantic results directly. embedder may be nil when no embedding
// model is configured; Retrieve then reports ErrEmbeddingNotConfigured.
func New(embedder QueryEmbedder, store VectorSearcher, lexical LexicalSearcher, opts Options) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		lexical:  lexical,
		opts:     opts,
	}
}

// Retrieve searches with query. When query differs from original and the
// result set comes back empty, the identical retrieval is retried once with
// the original query so an over-narrow rewrite cannot erase all matches.
func (r *Retriever) Retrieve(ctx context.Context, query, original string) (Result, error) {
	if r.embedder == nil {
		return Result{}, domain.ErrEmbeddingNotConfigured
	}

	res, err := r.retrieveOnce(ctx, query)
	if err != nil {
		return Result{}, err
	}

	if len(res.Docs) == 0 && original != "" && original != query {
		log.Printf("retrieval empty for rewritten query, retrying with original query")
		res, err = r.retrieveOnce(ctx, original)
		if err != nil {
			return Result{}, err
		}
		res.UsedOriginalFallback = true
	}

	return res, nil
}

func (r *Retriever) retrieveOnce(ctx context.Context, query string) (Result, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	semantic, err := r.store.Search(ctx, r.opts.Collection, vector, r.opts.K, r.opts.Threshold)
	if err != nil {
		return Result{}, fmt.Errorf("semantic search: %w", err)
	}

	if r.lexical == nil {
		return Result{Docs: semantic, Fusion: FusionSkipped}, nil
	}

	lexical, degraded := r.lexicalSearch(query)
	if degraded {
		return Result{Docs: semantic, Fusion: FusionDegraded}, nil
	}

	fused := fuse(semantic, lexical, r.opts.K)
	return Result{Docs: fused, Fusion: FusionApplied}, nil
}

// lexicalSearch isolates panics from the in-memory index so a lexical
// failure degrades the call instead of killing the request.
func (r *Retriever) lexicalSearch(query string) (results []domain.RetrievalResult, degraded bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("lexical search failed, degrading to semantic-only: %v", rec)
			results = nil
			degraded = true
		}
	}()
	return r.lexical.Search(query, r.opts.K), false
}

// fuse merges two ranked lists with weighted reciprocal rank fusion and
// returns the top k. A document present in both lists accumulates both
// contributions, so it never ranks below its best single-source position
// relative to single-source peers.
func fuse(semantic, lexical []domain.RetrievalResult, k int) []domain.RetrievalResult {
	type fusedDoc struct {
		result domain.RetrievalResult
		score  float64
		order  int
	}

	merged := make(map[string]*fusedDoc)
	order := 0

	accumulate := func(results []domain.RetrievalResult, weight float64) {
		for rank, res := range results {
			contribution := weight / float64(rrfK+rank+1)
			if existing, ok := merged[res.ID]; ok {
				existing.score += contribution
				continue
			}
			merged[res.ID] = &fusedDoc{result: res, score: contribution, order: order}
			order++
		}
	}
	accumulate(semantic, semanticWeight)
	accumulate(lexical, lexicalWeight)

	docs := make([]*fusedDoc, 0, len(merged))
	for _, d := range merged {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(a, b int) bool {
		if docs[a].score != docs[b].score {
			return docs[a].score > docs[b].score
		}
		return docs[a].order < docs[b].order
	})

	if len(docs) > k {
		docs = docs[:k]
	}

	results := make([]domain.RetrievalResult, len(docs))
	for i, d := range docs {
		res := d.result
		res.Score = d.score
		results[i] = res
	}
	return results
}
