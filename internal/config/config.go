package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main careassist configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Session lifecycle
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Context building
	Knowledge KnowledgeConfig `json:"knowledge" mapstructure:"knowledge"`

	// Generation backend
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Translation backend
	Translate TranslateConfig `json:"translate" mapstructure:"translate"`

	// Speech synthesis backend
	Speech SpeechConfig `json:"speech" mapstructure:"speech"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory (session indexes, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string   `json:"host" mapstructure:"host"`
	Port               int      `json:"port" mapstructure:"port"`
	APIKey             string   `json:"api_key" mapstructure:"api_key"` // empty disables the gate
	AllowedOrigins     []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RequestTimeout     int      `json:"request_timeout" mapstructure:"request_timeout"` // seconds
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	TTLMinutes int `json:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxTurns   int `json:"max_turns" mapstructure:"max_turns"`
}

// TTL returns the session time-to-live as a duration
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// KnowledgeConfig holds context builder configuration
type KnowledgeConfig struct {
	ChunkSize      int    `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	TopK           int    `json:"top_k" mapstructure:"top_k"`
	HeadRows       int    `json:"head_rows" mapstructure:"head_rows"`
	EmbeddingModel string `json:"embedding_model" mapstructure:"embedding_model"` // empty disables vector search
}

// AIConfig holds generation provider configuration.
// Exactly one provider is selected at startup; there is no per-call fallback.
type AIConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// TranslateConfig holds translation backend configuration
type TranslateConfig struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	DefaultLanguage string `json:"default_language" mapstructure:"default_language"`
	TimeoutSeconds  int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// SpeechConfig holds speech synthesis backend configuration
type SpeechConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			AllowedOrigins:     []string{"http://localhost:3000"},
			RateLimitPerMinute: 100,
			RequestTimeout:     60,
		},
		Session: SessionConfig{
			TTLMinutes: 30,
			MaxTurns:   200,
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         4,
			HeadRows:     5,
		},
		AI: AIConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Translate: TranslateConfig{
			DefaultLanguage: "en",
			TimeoutSeconds:  15,
		},
		Speech: SpeechConfig{
			Enabled:        true,
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session ttl_minutes must be positive, got %d", c.Session.TTLMinutes)
	}

	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge chunk_size must be positive, got %d", c.Knowledge.ChunkSize)
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge chunk_overlap must be in [0, chunk_size), got %d", c.Knowledge.ChunkOverlap)
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge top_k must be positive, got %d", c.Knowledge.TopK)
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("ai api_key is required")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai model is required")
	}
	validProviders := []string{"openai", "anthropic"}
	valid := false
	for _, vp := range validProviders {
		if c.AI.Provider == vp {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid ai provider %s (must be: openai, anthropic)", c.AI.Provider)
	}

	if c.Translate.DefaultLanguage == "" {
		return fmt.Errorf("translate default_language is required")
	}

	if c.Speech.Enabled && c.Speech.Endpoint == "" {
		return fmt.Errorf("speech endpoint is required when speech is enabled")
	}

	return nil
}
