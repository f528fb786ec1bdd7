package sharepoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mike-a-ellis/docchat/internal/source"
)

var ErrNotConnected = errors.New("sharepoint store not connected")

type driveItem struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Size                 int64     `json:"size"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
	File                 *struct{} `json:"file,omitempty"`
	Folder               *struct{} `json:"folder,omitempty"`
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// Store lists and downloads the files of one document library folder.
type Store struct {
	cfg    Config
	client *client
	logger *slog.Logger

	siteID string
}

var _ source.Store = (*Store)(nil)

// NewStore validates the configuration and prepares an OAuth2 client
// credentials transport. No request is made until Connect.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", source.ErrAuth)
	}
	if cfg.TenantID == "" && cfg.TokenURL == "" {
		return nil, fmt.Errorf("%w: tenant id is required", source.ErrAuth)
	}
	if cfg.SiteURL == "" {
		return nil, errors.New("site url is required")
	}

	return &Store{
		cfg:    cfg,
		client: newClient(ctx, cfg),
		logger: logger,
	}, nil
}

// Connect resolves the site and verifies the folder is a folder.
func (s *Store) Connect(ctx context.Context, folder string) error {
	siteID, err := s.resolveSite(ctx)
	if err != nil {
		return err
	}
	s.siteID = siteID

	var item driveItem
	if err := s.client.getJSON(ctx, s.itemPath(folder), &item); err != nil {
		return err
	}
	if item.Folder == nil {
		return fmt.Errorf("%w: %s is not a folder", source.ErrFolderNotFound, folder)
	}

	s.logger.Info("connected to sharepoint", "site", s.cfg.SiteURL, "folder", folder)
	return nil
}

// resolveSite maps the site URL onto a Graph site ID.
func (s *Store) resolveSite(ctx context.Context) (string, error) {
	u, err := url.Parse(s.cfg.SiteURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid site url %q", s.cfg.SiteURL)
	}

	p := "/sites/" + url.PathEscape(u.Host)
	if sitePath := strings.Trim(u.Path, "/"); sitePath != "" {
		p += ":/" + escapePath(sitePath)
	}

	var site struct {
		ID string `json:"id"`
	}
	if err := s.client.getJSON(ctx, p, &site); err != nil {
		return "", fmt.Errorf("resolve site: %w", err)
	}
	if site.ID == "" {
		return "", fmt.Errorf("%w: site %s", source.ErrFolderNotFound, s.cfg.SiteURL)
	}
	return site.ID, nil
}

// ListFiles lists the files directly inside folder, following paging links.
// Subfolders are not traversed.
func (s *Store) ListFiles(ctx context.Context, folder string) ([]source.FileHandle, error) {
	if s.siteID == "" {
		return nil, ErrNotConnected
	}

	var files []source.FileHandle
	next := s.childrenPath(folder)
	for next != "" {
		var page childrenPage
		if err := s.client.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, err)
		}
		for _, item := range page.Value {
			if item.File == nil {
				continue
			}
			files = append(files, source.FileHandle{
				ID:         item.ID,
				Name:       item.Name,
				Path:       item.Name,
				Size:       item.Size,
				ModifiedAt: item.LastModifiedDateTime,
			})
		}
		next = page.NextLink
	}

	s.logger.Debug("listed sharepoint folder", "folder", folder, "files", len(files))
	return files, nil
}

// Download fetches the item content into destDir.
func (s *Store) Download(ctx context.Context, file source.FileHandle, destDir string) (string, error) {
	if s.siteID == "" {
		return "", ErrNotConnected
	}

	resp, err := s.client.get(ctx, fmt.Sprintf("/sites/%s/drive/items/%s/content", url.PathEscape(s.siteID), url.PathEscape(file.ID)))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	dst, err := source.CreateLocalFile(destDir, file.Path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", file.Path, err)
	}
	return dst.Name(), nil
}

func (s *Store) childrenPath(folder string) string {
	if strings.Trim(folder, "/") == "" {
		return s.itemPath(folder) + "/children"
	}
	return s.itemPath(folder) + ":/children"
}

func (s *Store) itemPath(folder string) string {
	root := fmt.Sprintf("/sites/%s/drive/root", url.PathEscape(s.siteID))
	if strings.Trim(folder, "/") == "" {
		return root
	}
	return root + ":/" + escapePath(folder)
}
