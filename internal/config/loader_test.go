package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careassist.json")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoader_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careassist.json")
	content := `{
		"server": {"port": 9090},
		"session": {"ttl_minutes": 10},
		"ai": {"provider": "anthropic", "api_key": "sk-test", "model": "claude-sonnet-4"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Session.TTLMinutes)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	// untouched sections keep defaults
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "careassist.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 1234
	cfg.AI.APIKey = "sk-save"

	loader := NewLoader(path)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, loaded.Server.Port)
	assert.Equal(t, "sk-save", loaded.AI.APIKey)
}
