package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doku-labs/dokuchat/internal/domain"
	"github.com/doku-labs/dokuchat/internal/store"
	"github.com/doku-labs/dokuchat/internal/testutil"
)

func setupStore(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("SKIP_INTEGRATION_TESTS") != "" {
		t.Skip("integration tests disabled")
	}

	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() {
		_ = pc.Terminate(ctx)
	})

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	return store.New(pool), ctx
}

func doc(content string) domain.Document {
	return domain.Document{
		Content: content,
		Metadata: map[string]string{
			domain.MetaSource: "test",
			domain.MetaType:   "wiki",
		},
	}
}

func TestStore_AddBatchAndSearch(t *testing.T) {
	s, ctx := setupStore(t)

	ids := []string{"wiki-0", "wiki-1", "wiki-2"}
	docs := []domain.Document{
		doc("postgres stores relational data"),
		doc("redis is an in-memory cache"),
		doc("kafka moves messages between services"),
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	require.NoError(t, s.AddBatch(ctx, "wiki", ids, docs, vectors))

	count, err := s.Count(ctx, "wiki")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := s.Search(ctx, "wiki", []float32{1, 0, 0}, 2, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "wiki-0", results[0].ID)
	assert.Equal(t, "postgres stores relational data", results[0].Document.Content)
	assert.Equal(t, "test", results[0].Document.Metadata[domain.MetaSource])
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	// The orthogonal vectors score exactly 0.5 and are cut by a higher threshold.
	results, err = s.Search(ctx, "wiki", []float32{1, 0, 0}, 5, 0.9)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_SearchIsolatesCollections(t *testing.T) {
	s, ctx := setupStore(t)

	require.NoError(t, s.AddBatch(ctx, "wiki", []string{"wiki-0"}, []domain.Document{doc("alpha")}, [][]float32{{1, 0}}))
	require.NoError(t, s.AddBatch(ctx, "kb", []string{"kb-0"}, []domain.Document{doc("beta")}, [][]float32{{1, 0}}))

	results, err := s.Search(ctx, "wiki", []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "wiki-0", results[0].ID)
}

func TestStore_AddBatchUpsertsByID(t *testing.T) {
	s, ctx := setupStore(t)

	require.NoError(t, s.AddBatch(ctx, "wiki", []string{"wiki-0"}, []domain.Document{doc("first")}, [][]float32{{1, 0}}))
	require.NoError(t, s.AddBatch(ctx, "wiki", []string{"wiki-0"}, []domain.Document{doc("second")}, [][]float32{{0, 1}}))

	count, err := s.Count(ctx, "wiki")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := s.Search(ctx, "wiki", []float32{0, 1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Document.Content)
}

func TestStore_AddBatchRejectsSkew(t *testing.T) {
	s, ctx := setupStore(t)

	err := s.AddBatch(ctx, "wiki", []string{"wiki-0", "wiki-1"}, []domain.Document{doc("only one")}, [][]float32{{1}, {2}})
	assert.ErrorIs(t, err, domain.ErrSkewedBatch)

	err = s.AddBatch(ctx, "wiki",
		[]string{"wiki-0", "wiki-1"},
		[]domain.Document{doc("a"), doc("b")},
		[][]float32{{1, 0}, {1, 0, 0}},
	)
	assert.ErrorIs(t, err, domain.ErrVectorSizeMismatch)

	count, err := s.Count(ctx, "wiki")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_DeleteCollection(t *testing.T) {
	s, ctx := setupStore(t)

	require.NoError(t, s.AddBatch(ctx, "wiki", []string{"wiki-0"}, []domain.Document{doc("alpha")}, [][]float32{{1}}))
	require.NoError(t, s.AddBatch(ctx, "kb", []string{"kb-0"}, []domain.Document{doc("beta")}, [][]float32{{1}}))

	require.NoError(t, s.DeleteCollection(ctx, "wiki"))

	wikiCount, err := s.Count(ctx, "wiki")
	require.NoError(t, err)
	assert.Equal(t, 0, wikiCount)

	kbCount, err := s.Count(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, kbCount)
}
