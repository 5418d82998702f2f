package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/doku-labs/dokuchat/internal/domain"
)

// DefaultBatchSize is the number of chunks embedded per gateway call.
const DefaultBatchSize = 64

// Embedder produces one vector per input text, same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter persists aligned (id, document, vector) triples.
type VectorWriter interface {
	AddBatch(ctx context.Context, collection string, ids []string, docs []domain.Document, vectors [][]float32) error
}

// Stats summarizes one BuildCollection run.
type Stats struct {
	Total          int
	Added          int
	SkippedBatches int
}

// Indexer embeds documents in fixed-size batches and persists them into a
// named collection.
type Indexer struct {
	embedder  Embedder
	store     VectorWriter
	batchSize int
}

// NewIndexer creates an Indexer with the default batch size.
func NewIndexer(embedder Embedder, store VectorWriter) *Indexer {
	return &Indexer{embedder: embedder, store: store, batchSize: DefaultBatchSize}
}

// BuildCollection embeds docs batch by batch and writes them to collection.
// A batch whose embedding call fails, returns a skewed count, or mixes
// vector dimensions is skipped whole rather than partially applied, so
// persisted triples are never misaligned. IDs derive from the absolute
// position in docs ("<collection>-<index>"), so skipped batches leave gaps
// instead of renumbering survivors.
func (ix *Indexer) BuildCollection(ctx context.Context, collection string, docs []domain.Document) (Stats, error) {
	stats := Stats{Total: len(docs)}

	for start := 0; start < len(docs); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			log.Printf("ingest: skipping batch %d:%d: embedding failed: %v", start, end, err)
			stats.SkippedBatches++
			continue
		}
		if len(vectors) != len(batch) {
			log.Printf("ingest: skipping batch %d:%d: got %d vectors for %d texts", start, end, len(vectors), len(batch))
			stats.SkippedBatches++
			continue
		}
		if !uniformDimensions(vectors) {
			log.Printf("ingest: skipping batch %d:%d: mixed vector dimensions", start, end)
			stats.SkippedBatches++
			continue
		}

		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = fmt.Sprintf("%s-%d", collection, start+i)
		}

		if err := ix.store.AddBatch(ctx, collection, ids, batch, vectors); err != nil {
			return stats, fmt.Errorf("persist batch %d:%d: %w", start, end, err)
		}
		stats.Added += len(batch)
	}

	log.Printf("ingest: added %d/%d documents to collection %q (%d batches skipped)",
		stats.Added, stats.Total, collection, stats.SkippedBatches)
	return stats, nil
}

func uniformDimensions(vectors [][]float32) bool {
	if len(vectors) == 0 {
		return true
	}
	dim := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return false
		}
	}
	return dim > 0
}
