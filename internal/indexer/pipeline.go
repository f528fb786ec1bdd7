package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mike-a-ellis/docchat/internal/chunker"
	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/extract"
	"github.com/mike-a-ellis/docchat/internal/retriever"
	"github.com/mike-a-ellis/docchat/internal/source"
	"github.com/mike-a-ellis/docchat/internal/storage"
)

// Stage names one step of ingestion.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageEnumerate Stage = "enumerate"
	StageDownload  Stage = "download"
	StageExtract   Stage = "extract"
	StageChunk     Stage = "chunk"
	StageIndex     Stage = "index"
	StageEngine    Stage = "engine"
)

// StageError reports the stage at which ingestion stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailurePolicy decides what a per-file download or extraction failure does.
type FailurePolicy int

const (
	// FailAbort stops ingestion at the first failing file.
	FailAbort FailurePolicy = iota
	// FailSkip records the failure and continues with the remaining files.
	FailSkip
)

// ParseFailurePolicy maps "abort" and "skip" onto a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "abort":
		return FailAbort, nil
	case "skip":
		return FailSkip, nil
	default:
		return FailAbort, fmt.Errorf("unknown failure policy %q", s)
	}
}

func (p FailurePolicy) String() string {
	if p == FailSkip {
		return "skip"
	}
	return "abort"
}

// FailedFile is a file dropped under FailSkip.
type FailedFile struct {
	Path   string
	Stage  Stage
	Reason string
}

// IngestResult contains statistics about an ingestion run.
type IngestResult struct {
	Folder    string
	Files     int          // Files listed in the folder
	Documents int          // Documents extracted
	Chunks    int          // Chunks indexed
	ChunkSize int          // Chunk size chosen by the adaptive splitter
	Skipped   []string     // Unsupported files
	Failed    []FailedFile // Files dropped under FailSkip
	Duration  time.Duration
}

// Binder receives the retriever once the index is built.
type Binder interface {
	Bind(r conversation.Retriever) error
}

// PipelineConfig tunes one ingestion run.
type PipelineConfig struct {
	Folder        string
	TempDir       string // Download directory; a private one is created when empty
	MaxChunks     int
	MinChunkSize  int
	Overlap       int
	TopK          int
	FailurePolicy FailurePolicy
}

// Pipeline runs connect, enumerate, download, extract, chunk, index and
// engine binding in order. A failing stage stops the run.
type Pipeline struct {
	store    source.Store
	registry *extract.Registry
	embedder Embedder
	index    storage.VectorStore
	engine   Binder
	cfg      PipelineConfig
	logger   *slog.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(
	store source.Store,
	registry *extract.Registry,
	embedder Embedder,
	index storage.VectorStore,
	engine Binder,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChunks == 0 {
		cfg.MaxChunks = chunker.DefaultMaxChunks
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = chunker.DefaultMinChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = chunker.DefaultOverlap
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retriever.DefaultK
	}
	return &Pipeline{
		store:    store,
		registry: registry,
		embedder: embedder,
		index:    index,
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
	}
}

// downloaded is a file fetched into the temp directory.
type downloaded struct {
	file  source.FileHandle
	local string
}

// Run ingests the configured folder and binds a retriever into the engine.
func (p *Pipeline) Run(ctx context.Context) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{Folder: p.cfg.Folder}

	tempDir := p.cfg.TempDir
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "docchat-*")
		if err != nil {
			return nil, &StageError{Stage: StageDownload, Err: fmt.Errorf("create temp dir: %w", err)}
		}
		defer os.RemoveAll(dir)
		tempDir = dir
	}

	// 1. Connect
	p.logger.Info("Starting ingestion", "folder", p.cfg.Folder, "policy", p.cfg.FailurePolicy)
	if err := p.store.Connect(ctx, p.cfg.Folder); err != nil {
		return nil, &StageError{Stage: StageConnect, Err: err}
	}

	// 2. Enumerate
	files, err := p.store.ListFiles(ctx, p.cfg.Folder)
	if err != nil {
		return nil, &StageError{Stage: StageEnumerate, Err: err}
	}
	result.Files = len(files)
	p.logger.Info("Found files", "count", len(files))

	// 3. Download supported files
	var fetched []downloaded
	for _, file := range files {
		if !p.registry.Supports(file.Name) {
			p.logger.Info("Skipping unsupported file", "path", file.Path)
			result.Skipped = append(result.Skipped, file.Path)
			continue
		}

		local, err := p.store.Download(ctx, file, tempDir)
		if err != nil {
			if err := p.fail(ctx, result, file, StageDownload, err); err != nil {
				return nil, err
			}
			continue
		}
		p.logger.Debug("Downloaded file", "path", file.Path, "local", local)
		fetched = append(fetched, downloaded{file: file, local: local})
	}

	// 4. Extract
	docs := make([]*storage.Document, 0, len(fetched))
	for _, f := range fetched {
		doc, err := p.registry.Load(f.local, f.file.Path)
		if err != nil {
			if err := p.fail(ctx, result, f.file, StageExtract, err); err != nil {
				return nil, err
			}
			continue
		}
		docs = append(docs, doc)
	}
	result.Documents = len(docs)

	// 5. Chunk
	chunks, size, err := chunker.SplitAdaptive(docs, p.cfg.MaxChunks, p.cfg.MinChunkSize, p.cfg.Overlap)
	if err != nil {
		return nil, &StageError{Stage: StageChunk, Err: err}
	}
	if len(chunks) == 0 {
		return nil, &StageError{Stage: StageChunk, Err: fmt.Errorf("%w: %d documents produced no text", ErrNoContent, len(docs))}
	}
	result.ChunkSize = size
	p.logger.Info("Split documents", "documents", len(docs), "chunks", len(chunks), "chunk_size", size)

	// 6. Index
	if err := Build(ctx, chunks, p.embedder, p.index); err != nil {
		return nil, &StageError{Stage: StageIndex, Err: err}
	}
	result.Chunks = len(chunks)

	// 7. Bind the retriever
	if err := p.engine.Bind(retriever.New(p.embedder, p.index, p.cfg.TopK)); err != nil {
		return nil, &StageError{Stage: StageEngine, Err: err}
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	return result, nil
}

// fail applies the failure policy to one file. It returns a StageError when
// the run must stop.
func (p *Pipeline) fail(ctx context.Context, result *IngestResult, file source.FileHandle, stage Stage, err error) error {
	if p.cfg.FailurePolicy == FailAbort || ctx.Err() != nil || errors.Is(err, source.ErrAuth) {
		return &StageError{Stage: stage, Err: fmt.Errorf("%s: %w", file.Path, err)}
	}

	p.logger.Warn("Failed to process file", "path", file.Path, "stage", stage, "error", err)
	result.Failed = append(result.Failed, FailedFile{
		Path:   file.Path,
		Stage:  stage,
		Reason: err.Error(),
	})
	return nil
}
