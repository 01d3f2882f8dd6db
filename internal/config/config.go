// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.beatsync/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Response: per-intent model selection and temperatures
//   - Retrieval: embedder model, top-K, context budget
//   - Conversation: history window and word cutoff
//   - Capability: music lookup service address and timeout
//   - Storage: PostgreSQL connection for the chunk store
//
// Validation is fail-fast: Load returns sentinel errors checkable with
// errors.Is() before any component is constructed.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidContextBudget indicates the context character budget is invalid.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidWordCutoff indicates the conversation word cutoff is invalid.
	ErrInvalidWordCutoff = errors.New("invalid word cutoff")

	// ErrInvalidHistoryLength indicates the history window length is invalid.
	ErrInvalidHistoryLength = errors.New("invalid history context length")

	// ErrInvalidMusicURL indicates the music service base URL is invalid.
	ErrInvalidMusicURL = errors.New("invalid music service URL")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

// Defaults carried over from the original assistant configuration.
const (
	// DefaultWordCutoff is the cumulative word count after which the
	// assistant takes a break instead of answering.
	DefaultWordCutoff = 8000

	// DefaultHistoryContextLength is the number of trailing messages
	// included when generating a response.
	DefaultHistoryContextLength = 7

	// DefaultTopK is the number of chunks requested from the vector index.
	DefaultTopK = 5

	// DefaultContextBudget is the maximum number of characters of source
	// content incorporated into the grounding context.
	DefaultContextBudget = 4000

	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultMusicTimeout bounds a single capability lookup call.
	DefaultMusicTimeout = 5 * time.Second
)

// AI provider identifiers used in ResponseConfig.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
)

// ResponseConfig selects the model used for one intent class.
type ResponseConfig struct {
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". A ModelName already containing "/"
// is returned as-is.
func (r ResponseConfig) FullModelName() string {
	if strings.Contains(r.ModelName, "/") {
		return r.ModelName
	}
	switch r.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + r.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + r.ModelName
	default:
		return ProviderGoogleAI + "/" + r.ModelName
	}
}

// Config stores application configuration.
type Config struct {
	// Per-intent response model selection
	Question ResponseConfig `mapstructure:"question" json:"question"`
	Hostile  ResponseConfig `mapstructure:"hostile" json:"hostile"`
	Random   ResponseConfig `mapstructure:"random" json:"random"`

	// Intent classification and hypothetical-answer generation reuse the
	// question model unless overridden here.
	IntentModel string `mapstructure:"intent_model" json:"intent_model"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	TopK          int    `mapstructure:"top_k" json:"top_k"`
	ContextBudget int    `mapstructure:"context_budget" json:"context_budget"`

	// Conversation configuration
	WordCutoff           int `mapstructure:"word_cutoff" json:"word_cutoff"`
	HistoryContextLength int `mapstructure:"history_context_length" json:"history_context_length"`

	// Capability configuration
	MusicBaseURL   string `mapstructure:"music_base_url" json:"music_base_url"`
	MusicTimeoutMS int    `mapstructure:"music_timeout_ms" json:"music_timeout_ms"`

	// Storage configuration (chunk store)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve mode
	Addr string `mapstructure:"addr" json:"addr"`

	// Observability (OTLP trace export; empty endpoint disables)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// MusicTimeout returns the capability lookup timeout as a duration.
func (c *Config) MusicTimeout() time.Duration {
	if c.MusicTimeoutMS <= 0 {
		return DefaultMusicTimeout
	}
	return time.Duration(c.MusicTimeoutMS) * time.Millisecond
}

// ConnString builds the pgx connection string for the chunk store.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".beatsync")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Response model defaults. Temperatures mirror the per-intent tuning
	// of the original assistant: near-deterministic grounded answers,
	// moderate de-escalation, playful small talk.
	v.SetDefault("question.provider", ProviderGemini)
	v.SetDefault("question.model_name", "gemini-2.5-flash")
	v.SetDefault("question.temperature", 0.2)
	v.SetDefault("hostile.provider", ProviderGemini)
	v.SetDefault("hostile.model_name", "gemini-2.5-flash")
	v.SetDefault("hostile.temperature", 0.7)
	v.SetDefault("random.provider", ProviderGemini)
	v.SetDefault("random.model_name", "gemini-2.5-flash")
	v.SetDefault("random.temperature", 1.0)

	// Retrieval defaults
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("context_budget", DefaultContextBudget)

	// Conversation defaults
	v.SetDefault("word_cutoff", DefaultWordCutoff)
	v.SetDefault("history_context_length", DefaultHistoryContextLength)

	// Capability defaults
	v.SetDefault("music_base_url", "http://localhost:8090")
	v.SetDefault("music_timeout_ms", 5000)

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "beatsync")
	v.SetDefault("postgres_password", "beatsync_dev_password")
	v.SetDefault("postgres_db_name", "beatsync")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	v.SetDefault("addr", ":8080")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence
// is checked in Validate().
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("question.model_name", "BEATSYNC_QUESTION_MODEL")
	mustBind("random.model_name", "BEATSYNC_RANDOM_MODEL")
	mustBind("hostile.model_name", "BEATSYNC_HOSTILE_MODEL")
	mustBind("music_base_url", "BEATSYNC_MUSIC_BASE_URL")
	mustBind("addr", "BEATSYNC_ADDR")
	mustBind("otlp_endpoint", "BEATSYNC_OTLP_ENDPOINT")
	mustBind("postgres_host", "BEATSYNC_POSTGRES_HOST")
	mustBind("postgres_password", "BEATSYNC_POSTGRES_PASSWORD")
}
