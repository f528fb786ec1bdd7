package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// fakeEmbeddings answers with [len(text), batch position] vectors, listed in
// reverse order, after failing the first rateLimited calls with 429.
func fakeEmbeddings(t *testing.T, rateLimited int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		n := calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		if n <= rateLimited {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`)
			return
		}

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]embeddingData, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embeddingData{
				Object:    "embedding",
				Index:     i,
				Embedding: []float64{float64(len(req.Input[i])), float64(i)},
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateEmbeddings_BatchesInOrder(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddings(t, 0, &calls)
	embedder := NewEmbedder(newTestClient(t, srv), WithBatchSize(2), WithModel("tiny"))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := embedder.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d belongs to %q", i, text)
	}
	assert.Equal(t, int32(3), calls.Load(), "5 texts in batches of 2")
	assert.Equal(t, "tiny", embedder.Model())
}

func TestGenerateEmbeddings_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddings(t, 1, &calls)
	embedder := NewEmbedder(newTestClient(t, srv))

	vectors, err := embedder.GenerateEmbeddings(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateEmbeddings_PermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	embedder := NewEmbedder(newTestClient(t, srv))
	_, err := embedder.GenerateEmbeddings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "non-429 errors are not retried")
}

func TestGenerateEmbeddings_Empty(t *testing.T) {
	embedder := NewEmbedder(&Client{})

	vectors, err := embedder.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
