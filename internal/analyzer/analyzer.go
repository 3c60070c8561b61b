// Package analyzer provides the generative-AI collaborator used to enrich
// ticket triage with a structured diagnosis.
//
// Two providers are supported, Gemini (the default) and OpenAI, both
// speaking plain HTTP. When no provider or API key is configured the
// factory returns a disabled analyzer and the triage service falls back
// to its deterministic mock finding.
//
// Calls are rate limited but never retried: a failed call is reported
// once and the triage continues on rule matches alone.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/triage"
)

// Provider names accepted by New.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDisabled = "disabled"
)

// Default configuration values.
const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultTimeout       = 60 * time.Second
	defaultMaxTokens     = 2048
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Config configures an analyzer provider.
type Config struct {
	// Provider selects the backend: gemini, openai or disabled.
	Provider string

	// APIKey authenticates against the provider. Empty disables AI.
	APIKey string

	// Model overrides the provider's default model.
	Model string

	// BaseURL overrides the provider's API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds a single analysis call.
	Timeout time.Duration
}

// New creates an analyzer for the configured provider.
//
// A missing API key is not an error: the service is expected to keep
// running in mock mode, so New logs the downgrade and returns a disabled
// analyzer. Unknown provider names are configuration defects and fail.
func New(cfg Config, logger *zap.Logger) (triage.Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "", ProviderDisabled:
		return &disabled{}, nil
	case ProviderGemini, ProviderOpenAI:
		if cfg.APIKey == "" {
			logger.Warn("analyzer api key not configured, running in mock mode",
				zap.String("provider", cfg.Provider))
			return &disabled{}, nil
		}
	default:
		return nil, fmt.Errorf("unknown analyzer provider: %s", cfg.Provider)
	}

	if cfg.Provider == ProviderGemini {
		return newGeminiAnalyzer(cfg, logger), nil
	}
	return newOpenAIAnalyzer(cfg, logger), nil
}

// disabled is the analyzer used when no provider is configured. The triage
// service checks Available and substitutes the mock finding itself;
// Analyze returns the same finding as a safety net.
type disabled struct{}

func (d *disabled) Analyze(_ context.Context, _, _ string, _ []triage.DetectedPattern) (*triage.Finding, error) {
	return triage.MockFinding(), nil
}

func (d *disabled) Available() bool { return false }
