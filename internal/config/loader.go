package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces triaged environment variables.
const envPrefix = "TRIAGED_"

// Load reads configuration from the YAML file at configPath, then
// overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TRIAGED_SERVER_PORT, TRIAGED_ANALYZER_API_KEY, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// A missing config file is not an error: the service runs on defaults
// plus environment overrides.
//
// # Environment Variable Mapping
//
// Variables drop the TRIAGED_ prefix, lowercase, and split on the first
// underscore into section and field:
//
//	TRIAGED_SERVER_PORT          -> server.port
//	TRIAGED_ANALYZER_API_KEY     -> analyzer.api_key
//	TRIAGED_FIRESTORE_PROJECT_ID -> firestore.project_id
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// TRIAGED_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout
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
