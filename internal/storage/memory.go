package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process vector store using brute-force cosine similarity.
// It is the default index for a single session.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []*Chunk
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
// The vector dimension is fixed by the first upsert.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert appends chunks to the store. All embeddings must share one dimension.
func (s *MemoryStore) Upsert(_ context.Context, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	dim := s.dimension
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrMissingEmbedding, i)
		}
		if dim == 0 {
			dim = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), dim)
		}
	}

	s.dimension = dim
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search ranks every stored chunk against the query embedding.
func (s *MemoryStore) Search(_ context.Context, embedding []float32, limit int) ([]*ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if len(s.chunks) == 0 || limit <= 0 {
		return []*ScoredChunk{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}

	results := make([]*ScoredChunk, len(s.chunks))
	for i, chunk := range s.chunks {
		results[i] = &ScoredChunk{Chunk: chunk, Score: cosine(embedding, chunk.Embedding)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > len(results) {
		limit = len(results)
	}
	return results[:limit], nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Reset drops all chunks and forgets the dimension.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.dimension = 0
	return nil
}

// Health always succeeds unless the store was closed.
func (s *MemoryStore) Health(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the stored chunks.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.closed = true
	return nil
}

// cosine returns the cosine similarity of two equal-length vectors.
// Zero vectors score 0.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
