// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when the selected model provider has no API key.
var ErrMissingCredential = errors.New("missing model API credential")

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Port            string                `yaml:"port"`
	FrontendURL     string                `yaml:"frontend_url"`
	DBPath          string                `yaml:"db_path"`
	LogLevel        string                `yaml:"log_level"`
	LogFile         string                `yaml:"log_file"`
	LLM             LLMConfig             `yaml:"llm"`
	Agent           AgentConfig           `yaml:"agent"`
	UISessions      UISessionConfig       `yaml:"ui_sessions"`
	ConversationLog ConversationLogConfig `yaml:"conversation_log"`
	RateLimit       RateLimitConfig       `yaml:"rate_limit"`

	// SessionRetention deletes agent sessions idle for longer than this. Zero keeps them forever.
	SessionRetention time.Duration `yaml:"session_retention"`
}

// LLMConfig selects and authenticates the hosted model.
type LLMConfig struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	MaxTokens       int    `yaml:"max_tokens"`
	OpenAIAPIKey    string `yaml:"-"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	AnthropicAPIKey string `yaml:"-"`
}

// AgentConfig mirrors the options every agent handle is built with.
type AgentConfig struct {
	EnableUserMemories     bool `yaml:"enable_user_memories"`
	EnableSessionSummaries bool `yaml:"enable_session_summaries"`
	AddMemoryReferences    bool `yaml:"add_memory_references"`
	AddHistoryToMessages   bool `yaml:"add_history_to_messages"`
	HistoryDepth           int  `yaml:"history_depth"`
	Markdown               bool `yaml:"markdown"`
}

// UISessionConfig bounds the per-browser chat state kept by the web server.
type UISessionConfig struct {
	Limit int           `yaml:"limit"`
	TTL   time.Duration `yaml:"ttl"`
}

// RateLimitConfig throttles chat and classification requests per browser.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	GlobalEnabled bool   `yaml:"global_enabled"`
	GlobalPath    string `yaml:"global_path"`
	QueueSize     int    `yaml:"queue_size"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:     "8080",
		DBPath:   "tmp/agent.db",
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:  ProviderOpenAI,
			MaxTokens: 1024,
		},
		Agent: AgentConfig{
			EnableUserMemories:     true,
			EnableSessionSummaries: true,
			AddMemoryReferences:    true,
			AddHistoryToMessages:   true,
			HistoryDepth:           5,
			Markdown:               true,
		},
		UISessions: UISessionConfig{
			Limit: 256,
			TTL:   24 * time.Hour,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:    false,
			Dir:        "./tmp/logs/conversations",
			GlobalPath: "./tmp/logs/conversations/all.ndjson",
			QueueSize:  1000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 20,
			Window:            time.Minute,
		},
	}
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return "claude-sonnet-4-5"
	}
	return "gpt-4o"
}

// Load builds configuration from defaults, an optional YAML file at path,
// and environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	fileProvider := strings.ToLower(cfg.LLM.Provider)
	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	// A model named for one provider is meaningless to another.
	if _, ok := os.LookupEnv("LLM_MODEL"); !ok && cfg.LLM.Provider != fileProvider {
		cfg.LLM.Model = ""
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}
	cfg.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	cfg.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", "")

	cfg.Agent.EnableUserMemories = getEnvBool("AGENT_USER_MEMORIES", cfg.Agent.EnableUserMemories)
	cfg.Agent.EnableSessionSummaries = getEnvBool("AGENT_SESSION_SUMMARIES", cfg.Agent.EnableSessionSummaries)
	cfg.Agent.AddMemoryReferences = getEnvBool("AGENT_MEMORY_REFERENCES", cfg.Agent.AddMemoryReferences)
	cfg.Agent.AddHistoryToMessages = getEnvBool("AGENT_HISTORY", cfg.Agent.AddHistoryToMessages)
	cfg.Agent.HistoryDepth = getEnvInt("AGENT_HISTORY_DEPTH", cfg.Agent.HistoryDepth)
	cfg.Agent.Markdown = getEnvBool("AGENT_MARKDOWN", cfg.Agent.Markdown)

	cfg.UISessions.Limit = getEnvInt("UI_SESSION_LIMIT", cfg.UISessions.Limit)
	cfg.UISessions.TTL = getEnvDuration("UI_SESSION_TTL", cfg.UISessions.TTL)
	cfg.SessionRetention = getEnvDuration("SESSION_RETENTION", cfg.SessionRetention)

	cfg.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", cfg.ConversationLog.Enabled)
	cfg.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", cfg.ConversationLog.Dir)
	cfg.ConversationLog.GlobalEnabled = getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", cfg.ConversationLog.GlobalEnabled)
	cfg.ConversationLog.GlobalPath = getEnv("CONVERSATION_LOG_GLOBAL_PATH", cfg.ConversationLog.GlobalPath)
	cfg.ConversationLog.QueueSize = getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", cfg.ConversationLog.QueueSize)
	if cfg.ConversationLog.QueueSize <= 0 {
		cfg.ConversationLog.QueueSize = 1000
	}

	cfg.RateLimit.RequestsPerWindow = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY not found in environment variables, check your .env file", ErrMissingCredential)
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY not found in environment variables, check your .env file", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.Agent.HistoryDepth < 0 {
		return fmt.Errorf("AGENT_HISTORY_DEPTH cannot be negative")
	}
	if c.UISessions.Limit <= 0 {
		return fmt.Errorf("UI_SESSION_LIMIT must be > 0")
	}
	if c.SessionRetention < 0 {
		return fmt.Errorf("SESSION_RETENTION cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
