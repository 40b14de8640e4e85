// Package config provides configuration loading for docfind.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults filling whatever remains unset.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete docfind configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Generation GenerationConfig `koanf:"generation"`
	Search     SearchConfig     `koanf:"search"`
	Session    SessionConfig    `koanf:"session"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds the Postgres connection settings. The database must
// have the pgvector extension available.
type DatabaseConfig struct {
	URL         Secret `koanf:"url"`
	MaxConns    int    `koanf:"max_conns"`
	VectorDim   int    `koanf:"vector_dim"`
	MigrateOnUp bool   `koanf:"migrate_on_up"`
}

// RedisConfig holds the session store connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password Secret `koanf:"password"`
	DB       int    `koanf:"db"`
}

// EmbeddingsConfig holds the text-embeddings-inference endpoint settings.
type EmbeddingsConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Dimension      int           `koanf:"dimension"`
	BatchSize      int           `koanf:"batch_size"`
	RequestsPerSec float64       `koanf:"requests_per_sec"`
	Timeout        time.Duration `koanf:"timeout"`
}

// GenerationConfig holds the chat completion model settings.
type GenerationConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

// SearchConfig holds retrieval tuning.
type SearchConfig struct {
	TopK           int     `koanf:"top_k"`
	SemanticWeight float64 `koanf:"semantic_weight"`
}

// SessionConfig holds conversation history settings.
type SessionConfig struct {
	MaxMessages       int           `koanf:"max_messages"`
	TTL               time.Duration `koanf:"ttl"`
	HistoryCharBudget int           `koanf:"history_char_budget"`
}

// PipelineConfig holds Temporal worker settings for document processing.
type PipelineConfig struct {
	HostPort       string `koanf:"host_port"`
	Namespace      string `koanf:"namespace"`
	TaskQueue      string `koanf:"task_queue"`
	MaxConcurrency int    `koanf:"max_concurrency"`
	// DocumentRoot is the directory document source paths resolve under.
	DocumentRoot string `koanf:"document_root"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate validates the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if !c.Database.URL.IsSet() {
		return errors.New("database url is required")
	}
	if c.Database.VectorDim <= 0 {
		return fmt.Errorf("invalid vector dimension: %d", c.Database.VectorDim)
	}

	if c.Redis.Addr == "" {
		return errors.New("redis addr is required")
	}

	if c.Embeddings.BaseURL == "" {
		return errors.New("embeddings base_url is required")
	}
	if c.Embeddings.Dimension != c.Database.VectorDim {
		return fmt.Errorf("embeddings dimension %d does not match database vector_dim %d",
			c.Embeddings.Dimension, c.Database.VectorDim)
	}

	if c.Generation.BaseURL == "" {
		return errors.New("generation base_url is required")
	}
	if c.Generation.Model == "" {
		return errors.New("generation model is required")
	}

	if c.Search.TopK < 1 {
		return fmt.Errorf("invalid search top_k: %d", c.Search.TopK)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("invalid semantic_weight: %v (must be in [0,1])", c.Search.SemanticWeight)
	}

	if c.Session.MaxMessages < 2 {
		return fmt.Errorf("session max_messages must be at least 2, got %d", c.Session.MaxMessages)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}

	if c.Pipeline.HostPort == "" {
		return errors.New("pipeline host_port is required")
	}
	if c.Pipeline.TaskQueue == "" {
		return errors.New("pipeline task_queue is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	return nil
}
