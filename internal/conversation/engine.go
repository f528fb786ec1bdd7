// Package conversation answers questions with retrieved context and the
// replayed conversation history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

var (
	ErrNotReady      = errors.New("conversation engine has no retriever bound")
	ErrAlreadyBound  = errors.New("conversation engine already bound")
	ErrGeneration    = errors.New("answer generation failed")
	ErrRetrieval     = errors.New("context retrieval failed")
	ErrEmptyQuestion = errors.New("question is empty")
)

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Retriever returns the chunks relevant to a query.
type Retriever interface {
	Query(ctx context.Context, text string) ([]*storage.ScoredChunk, error)
}

// ChatModel completes a rendered prompt.
type ChatModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Turn is one question and its answer.
type Turn struct {
	Number   int    // 1-based position in the history
	Question string
	Query    string // Standalone question sent to the retriever
	Answer   string
	Sources  []*storage.ScoredChunk
	AskedAt  time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryPolicy sets which turns are replayed. Default Unbounded.
func WithHistoryPolicy(p HistoryPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithTemplate replaces the prompt template. See ParsePrompt.
func WithTemplate(t *template.Template) Option {
	return func(e *Engine) {
		if t != nil {
			e.tmpl = t
		}
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt. Empty sends no system message.
func WithSystemPrompt(s string) Option {
	return func(e *Engine) { e.system = s }
}

// WithQuestionCondenser toggles rewriting a follow-up question into a
// standalone one before retrieval. Enabled by default; the first question of
// a conversation is never rewritten.
func WithQuestionCondenser(enabled bool) Option {
	return func(e *Engine) { e.condense = enabled }
}

// WithCondenseTemplate replaces the template used to condense follow-up
// questions. See ParsePrompt.
func WithCondenseTemplate(t *template.Template) Option {
	return func(e *Engine) {
		if t != nil {
			e.condenseTmpl = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is the conversation state machine. It starts uninitialized and
// becomes ready once a retriever is bound.
type Engine struct {
	askMu sync.Mutex // serializes Ask

	mu        sync.Mutex // guards retriever and history
	retriever Retriever
	history   []Turn

	model        ChatModel
	policy       HistoryPolicy
	tmpl         *template.Template
	condense     bool
	condenseTmpl *template.Template
	system       string
	logger       *slog.Logger
	now          func() time.Time
}

// NewEngine creates an uninitialized engine answering with model.
func NewEngine(model ChatModel, opts ...Option) *Engine {
	e := &Engine{
		model:        model,
		policy:       Unbounded(),
		tmpl:         defaultTemplate,
		condense:     true,
		condenseTmpl: defaultCondenseTemplate,
		system:       DefaultSystemPrompt,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind attaches the retriever and makes the engine ready. It succeeds once.
func (e *Engine) Bind(r Retriever) error {
	if r == nil {
		return errors.New("nil retriever")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retriever != nil {
		return ErrAlreadyBound
	}
	e.retriever = r
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retriever == nil {
		return StateUninitialized
	}
	return StateReady
}

// History returns a copy of every turn, oldest first.
func (e *Engine) History() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Turn, len(e.history))
	copy(out, e.history)
	return out
}

// Ask answers question and records the turn. On failure the history is
// unchanged and the engine stays ready. Asks are serialized; State and
// History stay available while an answer is being generated.
func (e *Engine) Ask(ctx context.Context, question string) (*Turn, error) {
	e.askMu.Lock()
	defer e.askMu.Unlock()

	e.mu.Lock()
	retriever := e.retriever
	replay := append([]Turn(nil), e.policy.Select(e.history)...)
	e.mu.Unlock()

	if retriever == nil {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	start := e.now()
	chatHistory := FormatHistory(replay)

	query := question
	if e.condense && len(replay) > 0 {
		standalone, err := e.condenseQuestion(ctx, chatHistory, question)
		if err != nil {
			return nil, err
		}
		query = standalone
	}

	sources, err := retriever.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	prompt, err := render(e.tmpl, PromptData{
		Context:     FormatContext(sources),
		ChatHistory: chatHistory,
		Question:    question,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer, err := e.model.Complete(ctx, e.system, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	turn := Turn{
		Question: question,
		Query:    query,
		Answer:   answer,
		Sources:  sources,
		AskedAt:  start,
	}

	e.mu.Lock()
	turn.Number = len(e.history) + 1
	e.history = append(e.history, turn)
	e.mu.Unlock()

	e.logger.Debug("answered question",
		"turn", turn.Number,
		"condensed", query != question,
		"sources", len(sources),
		"prompt_chars", len(prompt),
		"duration", time.Since(start))

	return &turn, nil
}

// condenseQuestion rewrites question into a standalone question using the
// replayed history. An empty completion keeps the original question.
func (e *Engine) condenseQuestion(ctx context.Context, chatHistory, question string) (string, error) {
	prompt, err := render(e.condenseTmpl, PromptData{
		ChatHistory: chatHistory,
		Question:    question,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	standalone, err := e.model.Complete(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("%w: condense question: %w", ErrGeneration, err)
	}
	if standalone = strings.TrimSpace(standalone); standalone == "" {
		return question, nil
	}
	return standalone, nil
}
