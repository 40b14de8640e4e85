package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize guards against accidentally pointing the loader at a
// huge file.
const maxConfigFileSize = 1024 * 1024

// envPrefix namespaces docfind environment variables.
const envPrefix = "DOCFIND_"

// Load loads configuration from the given YAML file, then overrides with
// environment variables, then fills defaults and validates.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DOCFIND_SERVER_HTTP_PORT, DOCFIND_REDIS_ADDR, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// An empty configPath skips the file layer entirely, which is how container
// deployments configured purely through the environment run.
//
// Environment variables use underscore separators and map onto YAML keys by
// splitting on the first underscore after the prefix:
//
//	DOCFIND_SERVER_HTTP_PORT  -> server.http_port
//	DOCFIND_DATABASE_URL      -> database.url
//	DOCFIND_SESSION_TTL       -> session.ttl
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// DOCFIND_SERVER_HTTP_PORT -> server.http_port: strip the
		// prefix, lowercase, and split on the first underscore only so
		// field names keep their own underscores.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 8
	}
	if cfg.Database.VectorDim == 0 {
		cfg.Database.VectorDim = 768
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = cfg.Database.VectorDim
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = 32
	}
	if cfg.Embeddings.RequestsPerSec == 0 {
		cfg.Embeddings.RequestsPerSec = 4
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 30 * time.Second
	}

	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}

	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.SemanticWeight == 0 {
		cfg.Search.SemanticWeight = 0.7
	}

	if cfg.Session.MaxMessages == 0 {
		cfg.Session.MaxMessages = 100
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = time.Hour
	}
	if cfg.Session.HistoryCharBudget == 0 {
		cfg.Session.HistoryCharBudget = 4000
	}

	if cfg.Pipeline.HostPort == "" {
		cfg.Pipeline.HostPort = "localhost:7233"
	}
	if cfg.Pipeline.Namespace == "" {
		cfg.Pipeline.Namespace = "default"
	}
	if cfg.Pipeline.TaskQueue == "" {
		cfg.Pipeline.TaskQueue = "docfind-pipeline"
	}
	if cfg.Pipeline.MaxConcurrency == 0 {
		cfg.Pipeline.MaxConcurrency = 4
	}
	if cfg.Pipeline.DocumentRoot == "" {
		cfg.Pipeline.DocumentRoot = "./documents"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
