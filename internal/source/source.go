// Package source defines the remote document store contract and a local directory store.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrAuth           = errors.New("remote store rejected credentials")
	ErrFolderNotFound = errors.New("folder not found")
	ErrUnreachable    = errors.New("remote store unreachable")
)

// FileHandle identifies one file in a remote folder.
type FileHandle struct {
	ID         string    // Store-specific identifier (item ID, repository path)
	Name       string    // Base name: "report.pdf"
	Path       string    // Path relative to the listed folder: "2024/report.pdf"
	Size       int64     // Size in bytes, 0 when unknown
	ModifiedAt time.Time // Last modification, zero when unknown
}

// Store is a remote document store.
type Store interface {
	// Connect authenticates and verifies the folder exists.
	Connect(ctx context.Context, folder string) error
	// ListFiles enumerates the files of a folder.
	ListFiles(ctx context.Context, folder string) ([]FileHandle, error)
	// Download writes the file under destDir and returns the local path.
	Download(ctx context.Context, file FileHandle, destDir string) (string, error)
}

// CreateLocalFile creates destDir/relPath, refusing paths that escape destDir.
func CreateLocalFile(destDir, relPath string) (*os.File, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid file path %q", relPath)
	}

	target := filepath.Join(destDir, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	return os.Create(target)
}
