package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Database.URL = "postgres://docfind:pw@localhost:5432/docfind"
	cfg.Generation.BaseURL = "http://localhost:11434/v1"
	return cfg
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("DOCFIND_DATABASE_URL", "postgres://docfind:pw@localhost:5432/docfind")
	t.Setenv("DOCFIND_GENERATION_BASE_URL", "http://localhost:11434/v1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 768, cfg.Database.VectorDim)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
	assert.Equal(t, 100, cfg.Session.MaxMessages)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, "docfind-pipeline", cfg.Pipeline.TaskQueue)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	content := `
server:
  http_port: 9191
database:
  url: postgres://docfind:pw@db:5432/docfind
  vector_dim: 1024
embeddings:
  dimension: 1024
generation:
  base_url: http://llm:8000/v1
  model: qwen2.5-32b
search:
  top_k: 8
  semantic_weight: 0.6
session:
  ttl: 30m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Database.VectorDim)
	assert.Equal(t, "qwen2.5-32b", cfg.Generation.Model)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	// Unset fields still get defaults.
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
}

func TestEnvOverridesFile(t *testing.T) {
	content := `
server:
  http_port: 9191
database:
  url: postgres://file:pw@db:5432/docfind
generation:
  base_url: http://llm:8000/v1
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOCFIND_SERVER_HTTP_PORT", "7070")
	t.Setenv("DOCFIND_DATABASE_URL", "postgres://env:pw@db:5432/docfind")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://env:pw@db:5432/docfind", cfg.Database.URL.Value())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database url",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port",
		},
		{
			name:    "dimension mismatch",
			mutate:  func(c *Config) { c.Embeddings.Dimension = 384 },
			wantErr: "does not match",
		},
		{
			name:    "weight out of range",
			mutate:  func(c *Config) { c.Search.SemanticWeight = 1.5 },
			wantErr: "semantic_weight",
		},
		{
			name:    "session too small",
			mutate:  func(c *Config) { c.Session.MaxMessages = 1 },
			wantErr: "max_messages",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("postgres://user:hunter2@db/docfind")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "postgres://user:hunter2@db/docfind", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(out))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
