package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Session.TTLMinutes)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, "en", cfg.Translate.DefaultLanguage)
	assert.Equal(t, "openai", cfg.AI.Provider)
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Speech.Enabled = false
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.AI.APIKey = "" }},
		{"missing model", func(c *Config) { c.AI.Model = "" }},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini" }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero ttl", func(c *Config) { c.Session.TTLMinutes = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.Knowledge.ChunkOverlap = c.Knowledge.ChunkSize }},
		{"zero top k", func(c *Config) { c.Knowledge.TopK = 0 }},
		{"speech enabled without endpoint", func(c *Config) {
			c.Speech.Enabled = true
			c.Speech.Endpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Speech.Enabled = false
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSessionTTL(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "30m0s", cfg.Session.TTL().String())
}
