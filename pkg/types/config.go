// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared settings for components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout. Timeouts surface as ordinary errors.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries bounds retries on 429/503 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// QuestionsConfig locates the question set definition.
type QuestionsConfig struct {
	// Path is the YAML question set file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// DraftConfig holds settings for draft persistence.
type DraftConfig struct {
	// SessionID identifies the candidate session whose draft is synchronized.
	SessionID string `json:"session_id" yaml:"session_id" mapstructure:"session_id"`

	// Interval is the periodic save cadence (default 30s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// CachePath is the local draft cache file. Empty keeps the cache in memory.
	CachePath string `json:"cache_path" yaml:"cache_path" mapstructure:"cache_path"`

	// TeardownTimeout bounds the best-effort save issued on shutdown.
	TeardownTimeout time.Duration `json:"teardown_timeout" yaml:"teardown_timeout" mapstructure:"teardown_timeout"`
}

// StoreBackend selects where drafts and dossiers are persisted.
type StoreBackend string

const (
	StoreSQLite StoreBackend = "sqlite"
	StoreRemote StoreBackend = "remote"
)

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend is sqlite (local file) or remote (HTTP document store).
	Backend StoreBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// DataDir holds the SQLite database and exports.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// RemoteURL is the base URL of the remote document store.
	RemoteURL string `json:"remote_url" yaml:"remote_url" mapstructure:"remote_url"`

	// Token is sent as a bearer token to the remote store.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`
}

// AIConfig holds shared settings for calling a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: anthropic, openai, or gemini.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint for OpenAI-compatible services.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries is the number of retry attempts for failed calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// GenerationConfig holds settings for dossier generation.
type GenerationConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Timeout bounds a single generation call including retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens caps the response length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// ExcludeHiddenAnswers drops answers of currently hidden questions from
	// the generation context. Off by default.
	ExcludeHiddenAnswers bool `json:"exclude_hidden_answers" yaml:"exclude_hidden_answers" mapstructure:"exclude_hidden_answers"`
}

// EditorConfig holds settings for dossier editing.
type EditorConfig struct {
	// DeleteConfirmWindow is how long a first delete click stays armed (default 3s).
	DeleteConfirmWindow time.Duration `json:"delete_confirm_window" yaml:"delete_confirm_window" mapstructure:"delete_confirm_window"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// NotificationTTL is how long a transient notification stays visible.
	NotificationTTL time.Duration `json:"notification_ttl" yaml:"notification_ttl" mapstructure:"notification_ttl"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings for the dossier engine.
type Config struct {
	Questions  QuestionsConfig  `json:"questions" yaml:"questions" mapstructure:"questions"`
	Draft      DraftConfig      `json:"draft" yaml:"draft" mapstructure:"draft"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Editor     EditorConfig     `json:"editor" yaml:"editor" mapstructure:"editor"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
