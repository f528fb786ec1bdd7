package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/docchat/internal/chunker"
	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/extract"
	"github.com/mike-a-ellis/docchat/internal/source"
	"github.com/mike-a-ellis/docchat/internal/storage"
)

// letterEmbedder maps text onto letter frequencies of a, e and o.
type letterEmbedder struct {
	calls int
	err   error
}

func (e *letterEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{
			float32(strings.Count(text, "a")) + 1,
			float32(strings.Count(text, "e")) + 1,
			float32(strings.Count(text, "o")) + 1,
		}
	}
	return out, nil
}

type echoModel struct{}

func (echoModel) Complete(_ context.Context, _, prompt string) (string, error) {
	return "echo", nil
}

// failingDownloads fails Download for the named files.
type failingDownloads struct {
	source.Store
	names map[string]bool
	err   error // defaults to a connection reset
}

func (s *failingDownloads) Download(ctx context.Context, file source.FileHandle, destDir string) (string, error) {
	if s.names[file.Name] {
		if s.err != nil {
			return "", s.err
		}
		return "", errors.New("connection reset")
	}
	return s.Store.Download(ctx, file, destDir)
}

// failingStore rejects every upsert.
type failingStore struct {
	*storage.MemoryStore
	resets int
}

func (s *failingStore) Upsert(context.Context, []*storage.Chunk) error {
	return errors.New("disk full")
}

func (s *failingStore) Reset(ctx context.Context) error {
	s.resets++
	return s.MemoryStore.Reset(ctx)
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	folder := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644))
	}
	return root
}

type fixture struct {
	store    source.Store
	embedder *letterEmbedder
	index    storage.VectorStore
	engine   *conversation.Engine
	cfg      PipelineConfig
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	return &fixture{
		store:    source.NewDirStore(writeDocs(t, files)),
		embedder: &letterEmbedder{},
		index:    storage.NewMemoryStore(),
		engine:   conversation.NewEngine(echoModel{}),
		cfg: PipelineConfig{
			Folder:       "docs",
			TempDir:      t.TempDir(),
			MaxChunks:    chunker.DefaultMaxChunks,
			MinChunkSize: 40,
			Overlap:      5,
			TopK:         2,
		},
	}
}

func (f *fixture) run(t *testing.T) (*IngestResult, error) {
	t.Helper()
	p := NewPipeline(f.store, extract.NewRegistry(nil), f.embedder, f.index, f.engine, f.cfg, nil)
	return p.Run(context.Background())
}

func TestPipeline_Run(t *testing.T) {
	f := newFixture(t, map[string]string{
		"leave.txt": "Annual leave is twenty five days. Leave requests go to your manager.",
		"rota.csv":  "day,owner\nmonday,alice\ntuesday,bob",
		"logo.png":  "\x89PNG",
		"notes.md":  "# Notes\n\nOffice opens at nine.",
		"empty.txt": "   ",
	})

	result, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, "docs", result.Folder)
	assert.Equal(t, 5, result.Files)
	assert.Equal(t, []string{"logo.png"}, result.Skipped)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 4, result.Documents, "empty documents are extracted but yield no chunks")
	assert.GreaterOrEqual(t, result.Chunks, 3)
	assert.LessOrEqual(t, result.Chunks, chunker.DefaultMaxChunks)
	assert.GreaterOrEqual(t, result.ChunkSize, 40)

	count, err := f.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)

	assert.Equal(t, conversation.StateReady, f.engine.State())
	turn, err := f.engine.Ask(context.Background(), "How much leave?")
	require.NoError(t, err)
	assert.Len(t, turn.Sources, 2)
}

func TestPipeline_ConnectFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha"})
	f.cfg.Folder = "missing"

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageConnect, stageErr.Stage)
	assert.ErrorIs(t, err, source.ErrFolderNotFound)
	assert.Equal(t, conversation.StateUninitialized, f.engine.State())
	assert.Zero(t, f.embedder.calls)
}

func TestPipeline_DownloadFailure(t *testing.T) {
	files := map[string]string{"a.txt": "alpha", "b.txt": "bravo echo"}

	t.Run("abort", func(t *testing.T) {
		f := newFixture(t, files)
		f.store = &failingDownloads{Store: f.store, names: map[string]bool{"a.txt": true}}

		_, err := f.run(t)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageDownload, stageErr.Stage)
		assert.ErrorContains(t, err, "a.txt")
		assert.Equal(t, conversation.StateUninitialized, f.engine.State())
	})

	t.Run("skip", func(t *testing.T) {
		f := newFixture(t, files)
		f.store = &failingDownloads{Store: f.store, names: map[string]bool{"a.txt": true}}
		f.cfg.FailurePolicy = FailSkip

		result, err := f.run(t)
		require.NoError(t, err)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "a.txt", result.Failed[0].Path)
		assert.Equal(t, StageDownload, result.Failed[0].Stage)
		assert.Equal(t, 1, result.Documents)
		assert.Equal(t, conversation.StateReady, f.engine.State())
	})
}

func TestPipeline_DownloadAuthFailureAbortsUnderSkip(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})
	f.store = &failingDownloads{
		Store: f.store,
		names: map[string]bool{"a.txt": true},
		err:   fmt.Errorf("failed to download a.txt: %w", source.ErrAuth),
	}
	f.cfg.FailurePolicy = FailSkip

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDownload, stageErr.Stage)
	assert.ErrorIs(t, err, source.ErrAuth)
	assert.Equal(t, conversation.StateUninitialized, f.engine.State())
}

func TestPipeline_ExtractFailure(t *testing.T) {
	files := map[string]string{"bad.docx": "not a zip", "good.txt": "fine text"}

	t.Run("abort", func(t *testing.T) {
		f := newFixture(t, files)

		_, err := f.run(t)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageExtract, stageErr.Stage)
		assert.ErrorIs(t, err, extract.ErrInvalidFile)
	})

	t.Run("skip", func(t *testing.T) {
		f := newFixture(t, files)
		f.cfg.FailurePolicy = FailSkip

		result, err := f.run(t)
		require.NoError(t, err)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, StageExtract, result.Failed[0].Stage)
		assert.Equal(t, 1, result.Chunks)
	})
}

func TestPipeline_NoContent(t *testing.T) {
	f := newFixture(t, map[string]string{"blank.txt": "\n\n", "image.gif": "GIF89a"})

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageChunk, stageErr.Stage)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Zero(t, f.embedder.calls)
}

func TestPipeline_ChunkBudget(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha", "b.txt": "bravo", "c.txt": "charlie"})
	f.cfg.MaxChunks = 2

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageChunk, stageErr.Stage)
	assert.ErrorIs(t, err, chunker.ErrChunkBudget)
}

func TestPipeline_IndexFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha"})
	f.embedder.err = errors.New("quota exceeded")

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageIndex, stageErr.Stage)
	assert.ErrorContains(t, err, "quota exceeded")

	count, err := f.index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, conversation.StateUninitialized, f.engine.State())
}

func TestPipeline_AlreadyBound(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha"})
	require.NoError(t, f.engine.Bind(stubRetriever{}))

	_, err := f.run(t)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageEngine, stageErr.Stage)
	assert.ErrorIs(t, err, conversation.ErrAlreadyBound)
}

func TestPipeline_PrivateTempDirRemoved(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha"})
	f.cfg.TempDir = ""
	t.Setenv("TMPDIR", t.TempDir())

	_, err := f.run(t)
	require.NoError(t, err)

	left, err := filepath.Glob(filepath.Join(os.TempDir(), "docchat-*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

type stubRetriever struct{}

func (stubRetriever) Query(context.Context, string) ([]*storage.ScoredChunk, error) {
	return nil, nil
}

func TestBuild_StoreFailureResets(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	chunks := []*storage.Chunk{{ID: "1", Content: "alpha"}}

	err := Build(context.Background(), chunks, &letterEmbedder{}, store)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, store.resets)
}

func TestBuild_CountMismatch(t *testing.T) {
	embedder := embedderFunc(func(texts []string) [][]float32 {
		return [][]float32{{1}}
	})
	chunks := []*storage.Chunk{{ID: "1", Content: "a"}, {ID: "2", Content: "b"}}
	store := storage.NewMemoryStore()

	err := Build(context.Background(), chunks, embedder, store)
	assert.ErrorIs(t, err, ErrEmbeddingCount)

	count, _ := store.Count(context.Background())
	assert.Zero(t, count)
}

func TestBuild_Empty(t *testing.T) {
	embedder := &letterEmbedder{}
	require.NoError(t, Build(context.Background(), nil, embedder, storage.NewMemoryStore()))
	assert.Zero(t, embedder.calls)
}

type embedderFunc func(texts []string) [][]float32

func (f embedderFunc) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	return f(texts), nil
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, FailSkip, p)

	p, err = ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailAbort, p)

	_, err = ParseFailurePolicy("retry")
	assert.Error(t, err)
}
