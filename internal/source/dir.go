package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// DirStore serves files from a local directory tree. Useful for development.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Connect checks that root/folder is a directory.
func (s *DirStore) Connect(_ context.Context, folder string) error {
	info, err := os.Stat(filepath.Join(s.root, folder))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrFolderNotFound, folder)
	}
	return nil
}

// ListFiles lists regular files directly inside root/folder, sorted by name.
func (s *DirStore) ListFiles(_ context.Context, folder string) ([]FileHandle, error) {
	dir := filepath.Join(s.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []FileHandle
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		files = append(files, FileHandle{
			ID:         filepath.Join(dir, entry.Name()),
			Name:       entry.Name(),
			Path:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Download copies the file into destDir.
func (s *DirStore) Download(ctx context.Context, file FileHandle, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(file.ID)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer src.Close()

	dst, err := CreateLocalFile(destDir, file.Path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", file.Path, err)
	}
	return dst.Name(), nil
}
