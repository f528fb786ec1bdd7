package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/docchat/internal/session"
)

type fakeIndex struct{ err error }

func (f fakeIndex) Health(context.Context) error { return f.err }

type fixedStatus session.Status

func (s fixedStatus) Status() session.Status { return session.Status(s) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name      string
		index     error
		status    session.Status
		wantCode  int
		wantState string
		wantIndex string
	}{
		{"ready", nil, session.StatusComplete, http.StatusOK, "healthy", "connected"},
		{"ingesting", nil, session.StatusRunning, http.StatusOK, "healthy", "connected"},
		{"index down", errors.New("dial tcp"), session.StatusComplete, http.StatusServiceUnavailable, "unhealthy", "disconnected"},
		{"ingestion failed", nil, session.StatusFailed, http.StatusServiceUnavailable, "unhealthy", "connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(fakeIndex{err: tt.index}, fixedStatus(tt.status))
			rec := httptest.NewRecorder()

			handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantState, resp.Status)
			assert.Equal(t, tt.wantIndex, resp.Index)
			assert.Equal(t, string(tt.status), resp.Session)
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}

func TestLandingHandler(t *testing.T) {
	sess := &fakeSession{info: session.Info{Folder: "Shared Documents/HR", Status: session.StatusComplete, Ready: true, Documents: 7}}
	handler := NewLandingHandler(sess)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "http://docs.example.com/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Shared Documents/HR")
	assert.Contains(t, rec.Body.String(), "7 documents")
	assert.Contains(t, rec.Body.String(), "http://docs.example.com/mcp")

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
