package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mike-a-ellis/docchat/internal/session"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Session   string `json:"session"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The storage layer implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StatusReporter reports the ingestion status of a session.
type StatusReporter interface {
	Status() session.Status
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It is unhealthy when the index is unreachable or ingestion failed; a
// session still ingesting is healthy.
func NewHealthHandler(index HealthChecker, sess StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Index:     "connected",
			Session:   string(sess.Status()),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if err := index.Health(ctx); err != nil {
			response.Index = "disconnected"
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		if sess.Status() == session.StatusFailed {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}
