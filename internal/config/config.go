// Package config loads docchat settings from defaults, an optional YAML
// file, an optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "docchat.yaml"

var ErrInvalid = errors.New("invalid configuration")

// OpenAIConfig configures the embeddings and chat endpoint.
type OpenAIConfig struct {
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	ChatModel           string  `yaml:"chat_model"`
	Temperature         float64 `yaml:"temperature"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	EmbeddingBatchSize  int     `yaml:"embedding_batch_size"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
}

// SourceConfig selects the remote document store and folder.
type SourceConfig struct {
	Type          string `yaml:"type"` // sharepoint, github or dir
	Folder        string `yaml:"folder"`
	Root          string `yaml:"root"` // Root directory for the dir store
	FailurePolicy string `yaml:"failure_policy"`
}

// SharePointConfig holds the Azure app registration.
type SharePointConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	SiteURL      string `yaml:"site_url"`
}

// GitHubConfig names the repository served as a document store.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Ref   string `yaml:"ref"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend string `yaml:"backend"` // memory or qdrant
	TopK    int    `yaml:"top_k"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// ChunkingConfig bounds the adaptive splitter.
type ChunkingConfig struct {
	MaxChunks    int `yaml:"max_chunks"`
	MinChunkSize int `yaml:"min_chunk_size"`
	Overlap      int `yaml:"overlap"`
}

// ConversationConfig shapes prompts and history replay.
type ConversationConfig struct {
	SystemPrompt    string `yaml:"system_prompt"`
	PromptTemplate  string `yaml:"prompt_template"`
	HistoryPolicy   string `yaml:"history_policy"` // unbounded, turns or tokens
	HistoryTurns    int    `yaml:"history_turns"`
	HistoryTokens   int    `yaml:"history_tokens"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`

	// CondenseQuestion rewrites follow-ups into standalone questions before retrieval.
	CondenseQuestion bool   `yaml:"condense_question"`
	CondenseTemplate string `yaml:"condense_template"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Port       string `yaml:"port"`
	ServerMode bool   `yaml:"server_mode"` // HTTP when true, stdio otherwise
}

// Config is the root application configuration structure.
type Config struct {
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Source       SourceConfig       `yaml:"source"`
	SharePoint   SharePointConfig   `yaml:"sharepoint"`
	GitHub       GitHubConfig       `yaml:"github"`
	Index        IndexConfig        `yaml:"index"`
	Qdrant       QdrantConfig       `yaml:"qdrant"`
	Chunking     ChunkingConfig     `yaml:"chunking"`
	Conversation ConversationConfig `yaml:"conversation"`
	Server       ServerConfig       `yaml:"server"`
	LogLevel     string             `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Temperature:        0.7,
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingBatchSize: 1000,
		},
		Source: SourceConfig{
			Type:          "sharepoint",
			FailurePolicy: "abort",
		},
		Index: IndexConfig{
			Backend: "memory",
			TopK:    3,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Chunking: ChunkingConfig{
			MaxChunks:    16,
			MinChunkSize: 4000,
			Overlap:      50,
		},
		Conversation: ConversationConfig{
			HistoryPolicy:    "unbounded",
			HistoryTurns:     10,
			HistoryTokens:    2000,
			MaxPromptTokens:  16000,
			CondenseQuestion: true,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// DefaultFile is used if present. envFile names a dotenv file whose values
// override variables already set in the process; a missing env file is ignored.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables.
func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.ChatModel, "OPENAI_API_MODEL_NAME")
	setString(&c.OpenAI.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")
	errs = append(errs,
		setFloat(&c.OpenAI.Temperature, "OPENAI_API_TEMPERATURE"),
		setInt(&c.OpenAI.EmbeddingBatchSize, "OPENAI_EMBEDDING_BATCH_SIZE"),
	)

	setString(&c.Source.Type, "DOCCHAT_SOURCE")
	setString(&c.Source.Folder, "SHAREPOINT_FOLDER")
	setString(&c.Source.Root, "DOCCHAT_DIR")
	setString(&c.Source.FailurePolicy, "DOCCHAT_FAILURE_POLICY")

	setString(&c.SharePoint.TenantID, "OFFICE365_TENANT_ID")
	setString(&c.SharePoint.ClientID, "OFFICE365_CLIENT_ID")
	setString(&c.SharePoint.ClientSecret, "OFFICE365_CLIENT_SECRET")
	setString(&c.SharePoint.SiteURL, "SHAREPOINT_SITE_URL")

	setString(&c.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.GitHub.Owner, "GITHUB_OWNER")
	setString(&c.GitHub.Repo, "GITHUB_REPO")
	setString(&c.GitHub.Ref, "GITHUB_REF")

	setString(&c.Index.Backend, "DOCCHAT_INDEX")
	setString(&c.Qdrant.Host, "QDRANT_HOST")
	setString(&c.Qdrant.APIKey, "QDRANT_API_KEY")
	errs = append(errs,
		setInt(&c.Index.TopK, "DOCCHAT_TOP_K"),
		setInt(&c.Qdrant.Port, "QDRANT_PORT"),
		setBool(&c.Qdrant.UseTLS, "QDRANT_USE_TLS"),
	)

	setString(&c.Conversation.HistoryPolicy, "DOCCHAT_HISTORY_POLICY")
	setString(&c.Conversation.SystemPrompt, "DOCCHAT_SYSTEM_PROMPT")
	errs = append(errs, setBool(&c.Conversation.CondenseQuestion, "DOCCHAT_CONDENSE_QUESTION"))

	setString(&c.Server.Port, "PORT")
	errs = append(errs, setBool(&c.Server.ServerMode, "SERVER_MODE"))

	setString(&c.LogLevel, "LOG_LEVEL")

	return errors.Join(errs...)
}

// Validate reports every missing or inconsistent setting.
func (c *Config) Validate() error {
	var problems []string

	if c.OpenAI.APIKey == "" {
		problems = append(problems, "openai api key is required (OPENAI_API_KEY)")
	}
	if c.OpenAI.ChatModel == "" {
		problems = append(problems, "chat model is required (OPENAI_API_MODEL_NAME)")
	}
	if c.OpenAI.EmbeddingModel == "" {
		problems = append(problems, "embedding model is required")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature %.2f outside [0, 2]", c.OpenAI.Temperature))
	}

	switch c.Source.Type {
	case "sharepoint":
		sp := c.SharePoint
		if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" {
			problems = append(problems, "sharepoint requires tenant id, client id and client secret")
		}
		if sp.SiteURL == "" {
			problems = append(problems, "sharepoint site url is required (SHAREPOINT_SITE_URL)")
		}
	case "github":
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			problems = append(problems, "github source requires owner and repo")
		}
	case "dir":
		if c.Source.Root == "" {
			problems = append(problems, "dir source requires a root directory (DOCCHAT_DIR)")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown source type %q", c.Source.Type))
	}

	switch c.Source.FailurePolicy {
	case "", "abort", "skip":
	default:
		problems = append(problems, fmt.Sprintf("unknown failure policy %q", c.Source.FailurePolicy))
	}

	switch c.Index.Backend {
	case "memory":
	case "qdrant":
		if c.Qdrant.Host == "" || c.Qdrant.Port <= 0 {
			problems = append(problems, "qdrant requires host and port")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown index backend %q", c.Index.Backend))
	}

	if c.Chunking.Overlap < 0 || c.Chunking.MinChunkSize <= 0 {
		problems = append(problems, "chunking overlap must be >= 0 and min chunk size > 0")
	}

	switch c.Conversation.HistoryPolicy {
	case "unbounded", "turns", "tokens":
	default:
		problems = append(problems, fmt.Sprintf("unknown history policy %q", c.Conversation.HistoryPolicy))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
