package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrInvalidFile = errors.New("invalid file")
)

// Extractor reads a local file and returns its plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(path string) (string, error)

// Extract calls f(path).
func (f ExtractorFunc) Extract(path string) (string, error) {
	return f(path)
}

// Titler is implemented by extractors that can also recover a document title.
type Titler interface {
	Title(path string) string
}

// Registry dispatches files to the extractor registered for their FileType.
type Registry struct {
	extractors map[FileType]Extractor
	logger     *slog.Logger
}

// NewRegistry creates a registry with the built-in extractors for every FileType.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		extractors: make(map[FileType]Extractor),
		logger:     logger,
	}
	r.Register(CSV, NewCSV())
	r.Register(DOCX, NewDOCX())
	r.Register(PDF, NewPDF())
	r.Register(PPTX, NewPPTX())
	r.Register(Text, ExtractorFunc(readText))
	r.Register(Markdown, NewMarkdown())
	return r
}

// Register sets or replaces the extractor for a FileType.
func (r *Registry) Register(ft FileType, e Extractor) {
	r.extractors[ft] = e
}

// Supports reports whether a path has a registered extractor.
func (r *Registry) Supports(path string) bool {
	ft, err := FileTypeOf(path)
	if err != nil {
		return false
	}
	_, ok := r.extractors[ft]
	return ok
}

// Load extracts one file into a Document. Unknown extensions return ErrUnsupported.
// source is the file's path in the remote store, kept for citations.
func (r *Registry) Load(path, source string) (*storage.Document, error) {
	ft, err := FileTypeOf(path)
	if err != nil {
		return nil, err
	}
	e, ok := r.extractors[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ft)
	}

	content, err := e.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	title := ""
	if t, ok := e.(Titler); ok {
		title = t.Title(path)
	}
	if title == "" {
		title = filepath.Base(path)
	}

	r.logger.Debug("Extracted document", "path", path, "format", ft, "chars", len(content))

	return &storage.Document{
		ID:          uuid.New().String(),
		Path:        path,
		Source:      source,
		Format:      string(ft),
		Title:       title,
		Content:     content,
		ExtractedAt: time.Now(),
	}, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
