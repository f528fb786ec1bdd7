// Package retriever returns the chunks most similar to a query.
package retriever

import (
	"context"
	"fmt"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

// DefaultK is the number of chunks returned per query.
const DefaultK = 3

// Embedder turns texts into vectors.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever embeds a query and searches the index for its top k chunks.
type Retriever struct {
	embedder Embedder
	store    storage.VectorStore
	k        int
}

// New creates a retriever over store. Non-positive k uses DefaultK.
func New(embedder Embedder, store storage.VectorStore, k int) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		k:        k,
	}
}

// K returns the number of chunks returned per query.
func (r *Retriever) K() int {
	return r.k
}

// Query returns up to k chunks ordered by descending similarity.
// An empty index yields an empty result without embedding the query.
func (r *Retriever) Query(ctx context.Context, text string) ([]*storage.ScoredChunk, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count == 0 {
		return []*storage.ScoredChunk{}, nil
	}

	vectors, err := r.embedder.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, want 1", len(vectors))
	}

	results, err := r.store.Search(ctx, vectors[0], r.k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}
