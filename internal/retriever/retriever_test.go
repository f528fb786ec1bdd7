package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

// keywordEmbedder maps texts onto fixed axes so similarity is predictable.
type keywordEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (e *keywordEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectors[text]
	}
	return out, nil
}

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), []*storage.Chunk{
		{ID: "cats", Content: "cats purr", Embedding: []float32{1, 0, 0}},
		{ID: "dogs", Content: "dogs bark", Embedding: []float32{0, 1, 0}},
		{ID: "fish", Content: "fish swim", Embedding: []float32{0, 0, 1}},
		{ID: "pets", Content: "cats and dogs", Embedding: []float32{0.7, 0.7, 0}},
	}))
	return store
}

func TestQuery_TopKDescending(t *testing.T) {
	embedder := &keywordEmbedder{vectors: map[string][]float32{
		"do cats purr?": {0.9, 0.1, 0},
	}}
	r := New(embedder, seededStore(t), 2)

	results, err := r.Query(context.Background(), "do cats purr?")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats", results[0].ID)
	assert.Equal(t, "pets", results[1].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestQuery_DefaultK(t *testing.T) {
	embedder := &keywordEmbedder{vectors: map[string][]float32{"q": {1, 1, 1}}}
	r := New(embedder, seededStore(t), 0)

	assert.Equal(t, DefaultK, r.K())
	results, err := r.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, DefaultK)
}

func TestQuery_FewerChunksThanK(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), []*storage.Chunk{
		{ID: "only", Embedding: []float32{1, 0}},
	}))
	embedder := &keywordEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	results, err := New(embedder, store, 3).Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQuery_EmptyIndexSkipsEmbedder(t *testing.T) {
	embedder := &keywordEmbedder{err: errors.New("should not be called")}
	r := New(embedder, storage.NewMemoryStore(), 3)

	results, err := r.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, embedder.calls)
}

func TestQuery_EmbedFailure(t *testing.T) {
	embedder := &keywordEmbedder{err: errors.New("provider down")}

	_, err := New(embedder, seededStore(t), 3).Query(context.Background(), "q")
	assert.ErrorContains(t, err, "provider down")
}
