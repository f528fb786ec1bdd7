// Package sharepoint serves a SharePoint document library folder as a remote
// document store through Microsoft Graph.
package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mike-a-ellis/docchat/internal/source"
)

const (
	DefaultGraphURL = "https://graph.microsoft.com/v1.0"
	graphScope      = "https://graph.microsoft.com/.default"
)

// Config holds the app registration and site to read from.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteURL      string // https://contoso.sharepoint.com/sites/handbook

	// Overrides for sovereign clouds and tests.
	GraphURL string
	TokenURL string
}

func (c Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(c.TenantID))
}

func (c Config) graphURL() string {
	if c.GraphURL != "" {
		return strings.TrimSuffix(c.GraphURL, "/")
	}
	return DefaultGraphURL
}

// graphError is the error envelope returned by Graph.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// client performs authenticated Graph requests.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(ctx context.Context, cfg Config) *client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.tokenURL(),
		Scopes:       []string{graphScope},
	}
	return &client{
		http:    cc.Client(ctx),
		baseURL: cfg.graphURL(),
	}
}

// get issues a GET against a Graph path, or an absolute URL for paging links.
func (c *client) get(ctx context.Context, pathOrURL string) (*http.Response, error) {
	target := pathOrURL
	if !strings.HasPrefix(pathOrURL, "http://") && !strings.HasPrefix(pathOrURL, "https://") {
		target = c.baseURL + pathOrURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return nil, fmt.Errorf("%w: %s", source.ErrAuth, strings.TrimSpace(rErr.Error()))
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnreachable, err)
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

// getJSON issues a GET and decodes the JSON body into out.
func (c *client) getJSON(ctx context.Context, pathOrURL string, out any) error {
	resp, err := c.get(ctx, pathOrURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// statusError maps a failed Graph response onto the source error kinds.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := resp.Status
	var gErr graphError
	if json.Unmarshal(body, &gErr) == nil && gErr.Error.Message != "" {
		msg = fmt.Sprintf("%s: %s", gErr.Error.Code, gErr.Error.Message)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", source.ErrAuth, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", source.ErrFolderNotFound, msg)
	default:
		return fmt.Errorf("%w: %s", source.ErrUnreachable, msg)
	}
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
