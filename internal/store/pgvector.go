package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/doku-labs/dokuchat/internal/domain"
)

// Store is the persisted semantic index. Chunks live in a single table
// partitioned logically by collection name; similarity is cosine, exposed
// as a score in (0, 1] via 1/(1+distance).
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AddBatch persists aligned (id, document, vector) triples into collection.
// The whole batch is applied in one transaction so a failure never leaves a
// partially written batch behind. Re-used IDs are overwritten.
func (s *Store) AddBatch(ctx context.Context, collection string, ids []string, docs []domain.Document, vectors [][]float32) error {
	if len(ids) != len(docs) || len(docs) != len(vectors) {
		return domain.ErrSkewedBatch
	}
	if len(ids) == 0 {
		return nil
	}

	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return domain.ErrVectorSizeMismatch
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range ids {
		_, err := tx.Exec(ctx,
			`INSERT INTO corpus_chunks (id, collection, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE
			 SET collection = EXCLUDED.collection,
			     content    = EXCLUDED.content,
			     metadata   = EXCLUDED.metadata,
			     embedding  = EXCLUDED.embedding`,
			ids[i],
			collection,
			docs[i].Content,
			docs[i].Metadata,
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", ids[i], err)
		}
	}

	return tx.Commit(ctx)
}

// Search returns up to k chunks from collection whose similarity score
// meets threshold, ordered by score descending. Ties are broken by
// insertion order so identical corpus state and query always produce the
// same ranking.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int, threshold float64) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(vector)
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata, 1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM corpus_chunks
		 WHERE collection = $2
		   AND 1.0 / (1.0 + (embedding <=> $1)) >= $3
		 ORDER BY embedding <=> $1 ASC, seq ASC
		 LIMIT $4`,
		vec, collection, threshold, k,
	)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievalResult
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(&r.ID, &r.Document.Content, &r.Document.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count reports how many chunks collection holds.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM corpus_chunks WHERE collection = $1`, collection,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count collection %s: %w", collection, err)
	}
	return count, nil
}

// DeleteCollection removes every chunk of collection, used before a full
// re-ingestion.
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM corpus_chunks WHERE collection = $1`, collection,
	)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}
