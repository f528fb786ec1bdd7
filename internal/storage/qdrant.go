package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for a Qdrant-backed index.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string // Session-scoped collection name
}

// QdrantStore keeps a session's chunks in a dedicated Qdrant collection.
// The collection is created on first upsert and dropped on Close.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// Collection returns the session collection name.
func (s *QdrantStore) Collection() string {
	return s.collection
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newBackoff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection creates the session collection with cosine distance.
// Idempotent once the dimension is known.
func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	if s.dimension != 0 {
		if s.dimension != dimension {
			return fmt.Errorf("%w: got %d dimensions, collection has %d",
				ErrDimensionMismatch, dimension, s.dimension)
		}
		return nil
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      "document_id",
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field document_id: %w", err)
		}
	}

	s.dimension = dimension
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx))
}

// Upsert stores chunks with embeddings, batched in groups of 100.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	dimension := len(chunks[0].Embedding)
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrMissingEmbedding, i)
		}
		if len(chunk.Embedding) != dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), dimension)
		}
	}

	if err := s.ensureCollection(ctx, dimension); err != nil {
		return err
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id": chunk.DocumentID,
					"path":        chunk.Path,
					"chunk_index": chunk.Index,
					"offset":      chunk.Offset,
					"content":     chunk.Content,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Search performs vector similarity search over the session collection.
func (s *QdrantStore) Search(ctx context.Context, embedding []float32, limit int) ([]*ScoredChunk, error) {
	if s.dimension == 0 || limit <= 0 {
		return []*ScoredChunk{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		scored = append(scored, &ScoredChunk{
			Chunk: &Chunk{
				ID:         result.Id.GetUuid(),
				DocumentID: payload["document_id"].GetStringValue(),
				Path:       payload["path"].GetStringValue(),
				Index:      int(payload["chunk_index"].GetIntegerValue()),
				Offset:     int(payload["offset"].GetIntegerValue()),
				Content:    payload["content"].GetStringValue(),
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// Count returns the number of points in the session collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if s.dimension == 0 {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Reset drops the session collection. It is recreated on the next upsert.
func (s *QdrantStore) Reset(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	s.dimension = 0
	return nil
}

// Close drops the session collection and closes the client connection.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resetErr := s.Reset(ctx)
	if err := s.client.Close(); err != nil {
		return err
	}
	return resetErr
}
