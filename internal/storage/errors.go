package storage

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrMissingEmbedding  = errors.New("chunk has no embedding")
	ErrClosed            = errors.New("store is closed")
)
