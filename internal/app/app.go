// Package app turns a loaded configuration into a ready-to-ingest session.
// Both commands share this wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/docchat/internal/config"
	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/embedding"
	"github.com/mike-a-ellis/docchat/internal/extract"
	ghclient "github.com/mike-a-ellis/docchat/internal/github"
	"github.com/mike-a-ellis/docchat/internal/indexer"
	"github.com/mike-a-ellis/docchat/internal/llm"
	"github.com/mike-a-ellis/docchat/internal/session"
	"github.com/mike-a-ellis/docchat/internal/sharepoint"
	"github.com/mike-a-ellis/docchat/internal/source"
	"github.com/mike-a-ellis/docchat/internal/storage"
)

// App is a wired session plus the index it owns.
type App struct {
	Session *session.Session
	Index   storage.VectorStore
}

// Close releases the session, its temp directory and the index.
func (a *App) Close() error {
	return a.Session.Close()
}

// NewLogger creates a text logger at the configured level.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// New validates cfg and builds every component of a session. Nothing is
// downloaded until Session.Ingest.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := NewSource(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	client, err := embedding.NewClient(embedding.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder := embedding.NewEmbedder(client,
		embedding.WithModel(cfg.OpenAI.EmbeddingModel),
		embedding.WithBatchSize(cfg.OpenAI.EmbeddingBatchSize),
		embedding.WithDimensions(cfg.OpenAI.EmbeddingDimensions),
	)

	counter := llm.NewTokenCounter(cfg.OpenAI.ChatModel, logger)
	model := llm.NewChatModel(client.Client(), cfg.OpenAI.ChatModel,
		llm.WithTemperature(cfg.OpenAI.Temperature),
		llm.WithMaxPromptTokens(cfg.Conversation.MaxPromptTokens),
		llm.WithTokenCounter(counter),
		llm.WithLogger(logger),
	)

	engineOpts, err := EngineOptions(cfg.Conversation, counter)
	if err != nil {
		return nil, err
	}

	policy, err := indexer.ParseFailurePolicy(cfg.Source.FailurePolicy)
	if err != nil {
		return nil, err
	}

	index, err := NewIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	sess, err := session.New(session.Deps{
		Store:    store,
		Registry: extract.NewRegistry(logger),
		Embedder: embedder,
		Index:    index,
		Model:    model,
	}, session.Config{
		Pipeline: indexer.PipelineConfig{
			Folder:        cfg.Source.Folder,
			MaxChunks:     cfg.Chunking.MaxChunks,
			MinChunkSize:  cfg.Chunking.MinChunkSize,
			Overlap:       cfg.Chunking.Overlap,
			TopK:          cfg.Index.TopK,
			FailurePolicy: policy,
		},
		Engine: engineOpts,
	}, logger)
	if err != nil {
		index.Close()
		return nil, err
	}

	logger.Info("Session created",
		"session", sess.ID(),
		"source", cfg.Source.Type,
		"folder", cfg.Source.Folder,
		"index", cfg.Index.Backend,
		"model", model.Model(),
		"embedding_model", embedder.Model(),
	)

	return &App{Session: sess, Index: index}, nil
}

// NewSource creates the document store named by cfg.Source.Type.
func NewSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (source.Store, error) {
	switch cfg.Source.Type {
	case "sharepoint":
		return sharepoint.NewStore(ctx, sharepoint.Config{
			TenantID:     cfg.SharePoint.TenantID,
			ClientID:     cfg.SharePoint.ClientID,
			ClientSecret: cfg.SharePoint.ClientSecret,
			SiteURL:      cfg.SharePoint.SiteURL,
		}, logger)
	case "github":
		client, err := ghclient.NewClient(cfg.GitHub.Token)
		if err != nil {
			return nil, err
		}
		return ghclient.NewStore(client, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Ref), nil
	case "dir":
		return source.NewDirStore(cfg.Source.Root), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// NewIndex creates the vector index named by cfg.Index.Backend. Qdrant
// indexes get a collection of their own, dropped when the index is closed.
func NewIndex(cfg *config.Config) (storage.VectorStore, error) {
	switch cfg.Index.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "qdrant":
		return storage.NewQdrantStore(storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: "docchat-" + uuid.NewString(),
		})
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// EngineOptions maps the conversation settings onto engine options.
func EngineOptions(cfg config.ConversationConfig, counter conversation.TokenCounter) ([]conversation.Option, error) {
	var opts []conversation.Option

	switch cfg.HistoryPolicy {
	case "", "unbounded":
		opts = append(opts, conversation.WithHistoryPolicy(conversation.Unbounded()))
	case "turns":
		opts = append(opts, conversation.WithHistoryPolicy(conversation.LastTurns(cfg.HistoryTurns)))
	case "tokens":
		opts = append(opts, conversation.WithHistoryPolicy(conversation.TokenBudget(cfg.HistoryTokens, counter)))
	default:
		return nil, fmt.Errorf("unknown history policy %q", cfg.HistoryPolicy)
	}

	if cfg.PromptTemplate != "" {
		tmpl, err := conversation.ParsePrompt(cfg.PromptTemplate)
		if err != nil {
			return nil, fmt.Errorf("prompt template: %w", err)
		}
		opts = append(opts, conversation.WithTemplate(tmpl))
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, conversation.WithSystemPrompt(cfg.SystemPrompt))
	}

	opts = append(opts, conversation.WithQuestionCondenser(cfg.CondenseQuestion))
	if cfg.CondenseTemplate != "" {
		tmpl, err := conversation.ParsePrompt(cfg.CondenseTemplate)
		if err != nil {
			return nil, fmt.Errorf("condense template: %w", err)
		}
		opts = append(opts, conversation.WithCondenseTemplate(tmpl))
	}
	return opts, nil
}
