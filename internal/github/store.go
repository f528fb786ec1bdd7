// Package github serves a repository folder as a remote document store.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/google/go-github/v81/github"

	"github.com/mike-a-ellis/docchat/internal/source"
)

// Store lists and downloads files below a folder of a GitHub repository.
type Store struct {
	client *Client
	owner  string
	repo   string
	ref    string // Branch, tag or SHA; empty means the default branch

	commitSHA string
}

var _ source.Store = (*Store)(nil)

// NewStore creates a repository-backed document store.
func NewStore(client *Client, owner, repo, ref string) *Store {
	return &Store{
		client: client,
		owner:  owner,
		repo:   repo,
		ref:    ref,
	}
}

// CommitSHA returns the latest commit touching the folder, set by Connect.
func (s *Store) CommitSHA() string {
	return s.commitSHA
}

// Connect verifies credentials and that the folder has history.
func (s *Store) Connect(ctx context.Context, folder string) error {
	sha, err := s.latestCommitSHA(ctx, folder)
	if err != nil {
		return err
	}
	s.commitSHA = sha
	return nil
}

// latestCommitSHA retrieves the SHA of the most recent commit affecting the folder
func (s *Store) latestCommitSHA(ctx context.Context, folder string) (string, error) {
	commits, _, err := s.client.Repositories.ListCommits(
		ctx,
		s.owner,
		s.repo,
		&github.CommitsListOptions{
			SHA:  s.ref,
			Path: folder,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", classify(err, folder)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("%w: no commits found for path %s", source.ErrFolderNotFound, folder)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}

// ListFiles recursively lists every file below the folder.
func (s *Store) ListFiles(ctx context.Context, folder string) ([]source.FileHandle, error) {
	return s.listRecursive(ctx, folder, "")
}

// listRecursive recursively traverses directories, keeping repository order.
func (s *Store) listRecursive(ctx context.Context, fullPath, relativePath string) ([]source.FileHandle, error) {
	var files []source.FileHandle

	_, dirContents, _, err := s.client.Repositories.GetContents(
		ctx,
		s.owner,
		s.repo,
		fullPath,
		s.refOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, classify(err, fullPath))
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)
		itemFullPath := path.Join(fullPath, *item.Name)

		switch *item.Type {
		case "file":
			files = append(files, source.FileHandle{
				ID:   itemFullPath,
				Name: *item.Name,
				Path: itemRelPath,
				Size: int64(item.GetSize()),
			})

		case "dir":
			subFiles, err := s.listRecursive(ctx, itemFullPath, itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
		}
	}

	return files, nil
}

// Download streams the raw file contents into destDir.
func (s *Store) Download(ctx context.Context, file source.FileHandle, destDir string) (string, error) {
	body, _, err := s.client.Repositories.DownloadContents(
		ctx,
		s.owner,
		s.repo,
		file.ID,
		s.refOptions(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", file.ID, classify(err, file.Path))
	}
	defer body.Close()

	dst, err := source.CreateLocalFile(destDir, file.Path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file.Path, err)
	}
	return dst.Name(), nil
}

func (s *Store) refOptions() *github.RepositoryContentGetOptions {
	if s.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: s.ref}
}

// classify maps GitHub API failures onto the source error kinds.
func classify(err error, folder string) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", source.ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", source.ErrFolderNotFound, folder)
		}
	}
	return fmt.Errorf("%w: %v", source.ErrUnreachable, err)
}
