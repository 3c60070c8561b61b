// Package config provides configuration loading for triaged.
package config

import (
	"fmt"
	"time"
)

// Config is the full triaged configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Firestore FirestoreConfig `koanf:"firestore"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// KnowledgeConfig locates the pattern knowledge base.
type KnowledgeConfig struct {
	Path string `koanf:"path"`
}

// AnalyzerConfig configures the AI analyzer.
type AnalyzerConfig struct {
	// Provider is gemini, openai or disabled.
	Provider string `koanf:"provider"`

	// APIKey authenticates against the provider. Empty runs mock mode.
	APIKey Secret `koanf:"api_key"`

	Model   string   `koanf:"model"`
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// FirestoreConfig configures the persistence backend. An empty project ID
// selects the in-memory store.
type FirestoreConfig struct {
	ProjectID       string `koanf:"project_id"`
	CredentialsFile string `koanf:"credentials_file"`
}

// Enabled reports whether Firestore persistence is configured.
func (f FirestoreConfig) Enabled() bool {
	return f.ProjectID != ""
}

// UpstreamConfig configures integration with the main ticketing system.
type UpstreamConfig struct {
	// BaseURL is the main system's HTTP address. Empty disables the
	// HTTP fallback.
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = "configs/knowledge.yaml"
	}

	if cfg.Analyzer.Provider == "" {
		cfg.Analyzer.Provider = "gemini"
	}
	if cfg.Analyzer.Timeout == 0 {
		cfg.Analyzer.Timeout = Duration(60 * time.Second)
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = Duration(30 * time.Second)
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	switch c.Analyzer.Provider {
	case "gemini", "openai", "disabled":
	default:
		return fmt.Errorf("invalid analyzer provider: %s", c.Analyzer.Provider)
	}

	return nil
}
