// Package llm generates answers with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultMaxPromptTokens is the maximum prompt length before truncation (in tokens).
const DefaultMaxPromptTokens = 16000

const truncationMarker = "\n[...]\n"

var ErrEmptyResponse = errors.New("chat completion returned no choices")

// Option configures a ChatModel.
type Option func(*ChatModel)

// WithTemperature sets the sampling temperature. Negative values keep the
// provider default.
func WithTemperature(t float64) Option {
	return func(m *ChatModel) { m.temperature = t }
}

// WithMaxPromptTokens sets the truncation limit for the user prompt.
func WithMaxPromptTokens(n int) Option {
	return func(m *ChatModel) {
		if n > 0 {
			m.maxPromptTokens = n
		}
	}
}

// WithTokenCounter replaces the counter used for truncation.
func WithTokenCounter(c TokenCounter) Option {
	return func(m *ChatModel) {
		if c != nil {
			m.counter = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *ChatModel) {
		if l != nil {
			m.logger = l
		}
	}
}

// ChatModel sends a system prompt plus one rendered user prompt and returns
// the first choice.
type ChatModel struct {
	client          *openai.Client
	model           string
	temperature     float64
	maxPromptTokens int
	counter         TokenCounter
	logger          *slog.Logger
}

// NewChatModel creates a chat model with the given OpenAI client and model name.
func NewChatModel(client *openai.Client, model string, opts ...Option) *ChatModel {
	m := &ChatModel{
		client:          client,
		model:           model,
		temperature:     -1,
		maxPromptTokens: DefaultMaxPromptTokens,
		counter:         EstimateCounter{},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Model returns the chat model name.
func (m *ChatModel) Model() string {
	return m.model
}

// Complete returns the assistant reply to prompt. An empty system prompt is omitted.
func (m *ChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	prompt = m.truncatePrompt(prompt)

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(m.model),
	}
	if m.temperature >= 0 {
		params.Temperature = openai.Float(m.temperature)
	}

	var answer string
	operation := func() error {
		resp, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("chat completion failed: %w", err))
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyResponse)
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return answer, nil
}

// truncatePrompt keeps the prompt within maxPromptTokens. The cut is taken
// from the middle so the instructions and the question both survive.
func (m *ChatModel) truncatePrompt(prompt string) string {
	tokens := m.counter.Count(prompt)
	if tokens <= m.maxPromptTokens {
		return prompt
	}

	maxChars := len(prompt) * m.maxPromptTokens / tokens
	head := maxChars / 2
	for head > 0 && !utf8.RuneStart(prompt[head]) {
		head--
	}
	tail := len(prompt) - (maxChars - head)
	for tail < len(prompt) && !utf8.RuneStart(prompt[tail]) {
		tail++
	}

	m.logger.Warn("truncating prompt",
		"chars", len(prompt),
		"max_chars", maxChars,
		"tokens", tokens,
		"max_tokens", m.maxPromptTokens)

	return prompt[:head] + truncationMarker + prompt[tail:]
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
