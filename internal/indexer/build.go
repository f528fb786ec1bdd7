// Package indexer builds the session's vector index and orchestrates
// ingestion from a remote document store.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

var (
	ErrNoContent      = errors.New("no content to index")
	ErrEmbeddingCount = errors.New("embedding count does not match chunk count")
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Build embeds every chunk and stores it. Nothing is stored when embedding
// fails, and the store is reset when storing fails, so the index is either
// complete or empty.
func Build(ctx context.Context, chunks []*storage.Chunk, embedder Embedder, store storage.VectorStore) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCount, len(embeddings), len(chunks))
	}

	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
	}

	if err := store.Upsert(ctx, chunks); err != nil {
		if rErr := store.Reset(ctx); rErr != nil {
			return fmt.Errorf("store chunks: %w", errors.Join(err, fmt.Errorf("reset: %w", rErr)))
		}
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}
