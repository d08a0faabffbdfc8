// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sefaria-explorer/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Completion backend: OpenRouter base URL, model, output token ceiling
//   - Retrieval backend: Sefaria API base URL, per-call timeout
//   - Credential: path of the durable key file, probe timeout
//   - History: conversation history cap
//
// The credential itself is never held here; it lives in credential.Store.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidBaseURL indicates a backend base URL is malformed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidMaxTokens indicates the output token ceiling is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidHistoryLimit indicates the history cap is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")
)

const (
	// DefaultModelName is the model routed through OpenRouter for every
	// completion call, including the credential probe.
	DefaultModelName = "anthropic/claude-sonnet-4"

	// DefaultOpenRouterBaseURL is the OpenRouter API root.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultSefariaBaseURL is the Sefaria REST API root used by the
	// retrieval adapter.
	DefaultSefariaBaseURL = "https://www.sefaria.org/api"

	// DefaultMaxHistoryMessages is the default conversation history cap.
	DefaultMaxHistoryMessages = 200

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages = 10000

	// MinHistoryMessages is the minimum allowed value for MaxHistoryMessages.
	MinHistoryMessages = 10
)

// Config stores application configuration.
// It carries no secrets; the OpenRouter key is managed by credential.Store.
type Config struct {
	// Completion backend
	ModelName             string `mapstructure:"model_name" json:"model_name"`
	OpenRouterBaseURL     string `mapstructure:"openrouter_base_url" json:"openrouter_base_url"`
	MaxTokens             int    `mapstructure:"max_tokens" json:"max_tokens"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`

	// Retrieval backend
	SefariaBaseURL     string `mapstructure:"sefaria_base_url" json:"sefaria_base_url"`
	ToolTimeoutSeconds int    `mapstructure:"tool_timeout_seconds" json:"tool_timeout_seconds"`

	// Credential
	CredentialFile      string `mapstructure:"credential_file" json:"credential_file"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds" json:"probe_timeout_seconds"`

	// Conversation history cap (oldest non-system messages are evicted
	// beyond this count)
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.sefaria-explorer/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sefaria-explorer")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("openrouter_base_url", DefaultOpenRouterBaseURL)
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("request_timeout_seconds", 120)

	viper.SetDefault("sefaria_base_url", DefaultSefariaBaseURL)
	viper.SetDefault("tool_timeout_seconds", 30)

	viper.SetDefault("credential_file", filepath.Join(configDir, "credentials.env"))
	viper.SetDefault("probe_timeout_seconds", 15)

	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: OPEN_ROUTER_API (the credential itself) is read by credential.Store
// from the credential file and process environment, not via Viper.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "EXPLORER_MODEL_NAME")
	mustBind("openrouter_base_url", "EXPLORER_OPENROUTER_BASE_URL")
	mustBind("sefaria_base_url", "EXPLORER_SEFARIA_BASE_URL")
	mustBind("credential_file", "EXPLORER_CREDENTIAL_FILE")
}

// Validate checks all configuration values and fails fast on the first
// violation. Called by Load; exported for tests and for callers that build
// a Config by hand.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if err := validateBaseURL(c.OpenRouterBaseURL); err != nil {
		return fmt.Errorf("openrouter_base_url: %w", err)
	}
	if err := validateBaseURL(c.SefariaBaseURL); err != nil {
		return fmt.Errorf("sefaria_base_url: %w", err)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 200000 {
		return fmt.Errorf("%w: max_tokens %d out of range [1, 200000]", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.RequestTimeoutSeconds < 1 || c.RequestTimeoutSeconds > 600 {
		return fmt.Errorf("%w: request_timeout_seconds %d out of range [1, 600]", ErrInvalidTimeout, c.RequestTimeoutSeconds)
	}
	if c.ProbeTimeoutSeconds < 1 || c.ProbeTimeoutSeconds > 300 {
		return fmt.Errorf("%w: probe_timeout_seconds %d out of range [1, 300]", ErrInvalidTimeout, c.ProbeTimeoutSeconds)
	}
	if c.ToolTimeoutSeconds < 1 || c.ToolTimeoutSeconds > 600 {
		return fmt.Errorf("%w: tool_timeout_seconds %d out of range [1, 600]", ErrInvalidTimeout, c.ToolTimeoutSeconds)
	}
	if c.MaxHistoryMessages < MinHistoryMessages || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: max_history_messages %d out of range [%d, %d]",
			ErrInvalidHistoryLimit, c.MaxHistoryMessages, MinHistoryMessages, MaxAllowedHistoryMessages)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}
	return nil
}

// RequestTimeout returns the per-completion-call timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the credential probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// ToolTimeout returns the retrieval per-call timeout as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
