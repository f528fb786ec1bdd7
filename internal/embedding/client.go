package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrMissingAPIKey = errors.New("openai api key not set")

// Config selects the OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string // Empty means api.openai.com
}

// Client wraps the OpenAI client shared by embedding and chat generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client. Extra request options are appended
// after the ones derived from cfg.
func NewClient(cfg Config, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., chat completion).
func (c *Client) Client() *openai.Client {
	return c.client
}
