// Package session ties one ingestion run to one conversation. It is the
// contract presentation layers (CLI, MCP) drive.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/extract"
	"github.com/mike-a-ellis/docchat/internal/indexer"
	"github.com/mike-a-ellis/docchat/internal/source"
	"github.com/mike-a-ellis/docchat/internal/storage"
)

var (
	ErrAlreadyIngested = errors.New("session already ingested")
	ErrClosed          = errors.New("session closed")
)

// Status is the ingestion status of a session.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Deps are the components a session drives.
type Deps struct {
	Store    source.Store
	Registry *extract.Registry
	Embedder indexer.Embedder
	Index    storage.VectorStore
	Model    conversation.ChatModel
}

// Config tunes ingestion and the conversation.
type Config struct {
	Pipeline indexer.PipelineConfig // TempDir is owned by the session and ignored
	Engine   []conversation.Option
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string        `json:"id"`
	Status    Status        `json:"status"`
	Ready     bool          `json:"ready"`
	Folder    string        `json:"folder"`
	Files     int           `json:"files"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	ChunkSize int           `json:"chunk_size"`
	Skipped   []string      `json:"skipped,omitempty"`
	Failed    []string      `json:"failed,omitempty"`
	Turns     int           `json:"turns"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Session owns a temp directory, an index and a conversation engine.
type Session struct {
	id      string
	deps    Deps
	cfg     indexer.PipelineConfig
	engine  *conversation.Engine
	tempDir string
	logger  *slog.Logger

	mu     sync.Mutex
	status Status
	result *indexer.IngestResult
	err    error
	closed bool
}

// New creates a session and its temp directory. Nothing is ingested until Ingest.
func New(deps Deps, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Store == nil || deps.Registry == nil || deps.Embedder == nil || deps.Index == nil || deps.Model == nil {
		return nil, errors.New("session: missing dependency")
	}

	id := uuid.New().String()
	tempDir, err := os.MkdirTemp("", "docchat-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	pcfg := cfg.Pipeline
	pcfg.TempDir = tempDir
	logger = logger.With("session", id)

	engineOpts := append([]conversation.Option{conversation.WithLogger(logger)}, cfg.Engine...)

	return &Session{
		id:      id,
		deps:    deps,
		cfg:     pcfg,
		engine:  conversation.NewEngine(deps.Model, engineOpts...),
		tempDir: tempDir,
		logger:  logger,
		status:  StatusNotStarted,
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// TempDir returns the directory downloads are written to.
func (s *Session) TempDir() string {
	return s.tempDir
}

// Ingest runs the pipeline. It may be called once.
func (s *Session) Ingest(ctx context.Context) (*indexer.IngestResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.status != StatusNotStarted {
		s.mu.Unlock()
		return nil, ErrAlreadyIngested
	}
	s.status = StatusRunning
	s.mu.Unlock()

	pipeline := indexer.NewPipeline(s.deps.Store, s.deps.Registry, s.deps.Embedder, s.deps.Index, s.engine, s.cfg, s.logger)
	result, err := pipeline.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = StatusFailed
		s.err = err
		s.logger.Error("Ingestion failed", "error", err)
		return nil, err
	}
	s.status = StatusComplete
	s.result = result
	return result, nil
}

// Status returns the ingestion status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the ingestion error of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the ingestion result, nil until ingestion completes.
func (s *Session) Result() *indexer.IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Ready reports whether questions can be asked.
func (s *Session) Ready() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	return !closed && s.engine.State() == conversation.StateReady
}

// Turns returns a copy of the conversation history.
func (s *Session) Turns() []conversation.Turn {
	return s.engine.History()
}

// Ask forwards to the conversation engine. Before ingestion completes it
// returns conversation.ErrNotReady.
func (s *Session) Ask(ctx context.Context, question string) (*conversation.Turn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.engine.Ask(ctx, question)
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	info := Info{
		ID:     s.id,
		Status: s.status,
		Folder: s.cfg.Folder,
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	if r := s.result; r != nil {
		info.Files = r.Files
		info.Documents = r.Documents
		info.Chunks = r.Chunks
		info.ChunkSize = r.ChunkSize
		info.Skipped = r.Skipped
		info.Duration = r.Duration
		for _, f := range r.Failed {
			info.Failed = append(info.Failed, f.Path)
		}
	}
	s.mu.Unlock()

	info.Ready = s.Ready()
	info.Turns = len(s.engine.History())
	return info
}

// Close removes the temp directory and closes the index. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := os.RemoveAll(s.tempDir); err != nil {
		errs = append(errs, fmt.Errorf("remove temp dir: %w", err))
	}
	if err := s.deps.Index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index: %w", err))
	}
	return errors.Join(errs...)
}
