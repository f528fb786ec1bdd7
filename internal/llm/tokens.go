package llm

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter assumes roughly 4 characters per token.
type EstimateCounter struct{}

// Count returns the estimate, at least 1 for non-empty text.
func (EstimateCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return max(utf8.RuneCountInString(text)/4, 1)
}

// TiktokenCounter counts tokens with the model's BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, fmt.Errorf("load token encoding: %w", err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the exact number of tokens.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// NewTokenCounter returns a tiktoken counter for model, or EstimateCounter
// when the encoding cannot be loaded (tiktoken fetches it on first use).
func NewTokenCounter(model string, logger *slog.Logger) TokenCounter {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := NewTiktokenCounter(model)
	if err != nil {
		logger.Warn("token encoding unavailable, estimating", "model", model, "error", err)
		return EstimateCounter{}
	}
	return c
}
