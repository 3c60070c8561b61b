package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sponteware/triaged/internal/triage"
)

// openaiAnalyzer implements triage.Analyzer against the OpenAI chat
// completions API.
type openaiAnalyzer struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newOpenAIAnalyzer(cfg Config, logger *zap.Logger) *openaiAnalyzer {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &openaiAnalyzer{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logger,
	}
}

// openaiRequest is the chat completions request body.
type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the chat completions response body.
type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze sends the triage prompt to OpenAI and parses the structured
// diagnosis. A single attempt is made per call.
func (o *openaiAnalyzer) Analyze(ctx context.Context, text, module string, patterns []triage.DetectedPattern) (*triage.Finding, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "user", Content: buildPrompt(text, module, patterns)},
		},
		MaxTokens: defaultMaxTokens,
	}

	start := time.Now()
	finding, err := o.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("openai analysis complete",
		zap.String("model", o.model),
		zap.Duration("duration", time.Since(start)))
	return finding, nil
}

func (o *openaiAnalyzer) doRequest(ctx context.Context, req openaiRequest) (*triage.Finding, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := o.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openaiResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var openaiResp openaiResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	return parseFinding(openaiResp.Choices[0].Message.Content)
}

// Available reports whether the analyzer is configured.
func (o *openaiAnalyzer) Available() bool {
	return o.apiKey != ""
}

var _ triage.Analyzer = (*openaiAnalyzer)(nil)
