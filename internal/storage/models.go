package storage

import (
	"context"
	"time"
)

// Document is the extracted text of one downloaded file.
// Documents are immutable once produced and are discarded after chunking.
type Document struct {
	ID          string    // UUID
	Path        string    // Local path the text was extracted from
	Source      string    // Path in the remote store: "Shared Documents/report.pdf"
	Format      string    // File type: "pdf", "docx", ...
	Title       string    // Best-effort title, empty when unknown
	Content     string    // Extracted plain text
	ExtractedAt time.Time // When the text was extracted
}

// Chunk is a contiguous span of a Document's text with its embedding.
type Chunk struct {
	ID         string    // UUID
	DocumentID string    // Links to Document.ID (back-reference only)
	Path       string    // Same as parent document source path
	Index      int       // Position in document (0, 1, 2...)
	Offset     int       // Character offset of Content within the document text
	Content    string    // Chunk text
	Embedding  []float32 // Populated by the indexer
}

// ScoredChunk is a search hit with its cosine similarity.
type ScoredChunk struct {
	*Chunk
	Score float64
}

// VectorStore is a similarity-searchable index of chunks.
// Implementations are populated once per session by the indexer.
type VectorStore interface {
	// Upsert stores chunks with their embeddings.
	Upsert(ctx context.Context, chunks []*Chunk) error
	// Search returns up to limit chunks ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, limit int) ([]*ScoredChunk, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Reset discards every stored chunk.
	Reset(ctx context.Context) error
	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
	Close() error
}
