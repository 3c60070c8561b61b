package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/knowledge"
	"github.com/sponteware/triaged/internal/triage"
)

const findingJSON = `{
	"problem_type": "database",
	"detailed_category": "Missing index",
	"diagnosis": "Full table scan on a large table",
	"suggested_solution": "Create a covering index",
	"example_sql": "CREATE INDEX IX_Pedidos_Data ON Pedidos (DataCriacao)",
	"priority": "high",
	"estimated_time": "1 hour",
	"required_resources": ["DBA access"],
	"notes": "Validate in staging first"
}`

func TestNew_DisabledByDefault(t *testing.T) {
	a, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, a.Available())

	a, err = New(Config{Provider: ProviderDisabled}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, a.Available())
}

func TestNew_MissingKeyDowngrades(t *testing.T) {
	for _, provider := range []string{ProviderGemini, ProviderOpenAI} {
		a, err := New(Config{Provider: provider}, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, a.Available())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "anthropic"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown analyzer provider")
}

func TestNew_ConfiguredProviders(t *testing.T) {
	a, err := New(Config{Provider: ProviderGemini, APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, a.Available())
	assert.IsType(t, &geminiAnalyzer{}, a)

	a, err = New(Config{Provider: ProviderOpenAI, APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, a.Available())
	assert.IsType(t, &openaiAnalyzer{}, a)
}

func TestDisabled_ReturnsMockFinding(t *testing.T) {
	a := &disabled{}
	finding, err := a.Analyze(context.Background(), "text", "", nil)
	require.NoError(t, err)
	assert.Equal(t, triage.MockFinding(), finding)
}

func TestGeminiAnalyzer_Analyze(t *testing.T) {
	var gotPath, gotKey string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Goog-Api-Key")
		gotBody, _ = json.Marshal(mustDecode(t, r))

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "```json\n" + findingJSON + "\n```"}},
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := newGeminiAnalyzer(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, zap.NewNop())

	patterns := []triage.DetectedPattern{
		{Group: knowledge.GroupDatabase, RuleID: "slow_query", MatchedKeyword: "timeout"},
	}
	finding, err := a.Analyze(context.Background(), "Query timeout after 30 seconds", "RELATORIOS", patterns)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/"+defaultGeminiModel+":generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, string(gotBody), "RELATORIOS")
	assert.Contains(t, string(gotBody), "timeout")

	require.True(t, finding.Usable())
	assert.Equal(t, "database", finding.ProblemType)
	assert.Equal(t, "high", finding.Priority)
	assert.Equal(t, []string{"DBA access"}, finding.RequiredResources)
}

func TestGeminiAnalyzer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	a := newGeminiAnalyzer(Config{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	_, err := a.Analyze(context.Background(), "text", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiAnalyzer_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	a := newGeminiAnalyzer(Config{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	_, err := a.Analyze(context.Background(), "text", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGeminiAnalyzer_SingleAttempt(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := newGeminiAnalyzer(Config{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	_, err := a.Analyze(context.Background(), "text", "", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenAIAnalyzer_Analyze(t *testing.T) {
	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": findingJSON}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := newOpenAIAnalyzer(Config{APIKey: "sk-test", BaseURL: server.URL}, zap.NewNop())

	finding, err := a.Analyze(context.Background(), "Query timeout", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "database", finding.ProblemType)
}

func TestOpenAIAnalyzer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	a := newOpenAIAnalyzer(Config{APIKey: "bad", BaseURL: server.URL}, zap.NewNop())
	_, err := a.Analyze(context.Background(), "text", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestBuildPrompt(t *testing.T) {
	patterns := []triage.DetectedPattern{
		{Group: knowledge.GroupDatabase, MatchedKeyword: "timeout"},
		{Group: knowledge.GroupSystem, MatchedKeyword: "access denied"},
	}
	prompt := buildPrompt("Query timeout and access denied", "FINANCEIRO", patterns)

	assert.Contains(t, prompt, "MODULE: FINANCEIRO")
	assert.Contains(t, prompt, "Query timeout and access denied")
	assert.Contains(t, prompt, "- database: timeout")
	assert.Contains(t, prompt, "- system: access denied")
}

func TestBuildPrompt_Defaults(t *testing.T) {
	prompt := buildPrompt("some text", "", nil)
	assert.Contains(t, prompt, "MODULE: not identified")
	assert.Contains(t, prompt, "No known patterns detected")
}

func TestParseFinding(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain json", findingJSON, false},
		{"json fence", "```json\n" + findingJSON + "\n```", false},
		{"bare fence", "```\n" + findingJSON + "\n```", false},
		{"padded", "  \n" + findingJSON + "\n  ", false},
		{"not json", "I cannot answer that.", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finding, err := parseFinding(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "database", finding.ProblemType)
			assert.True(t, finding.Usable())
		})
	}
}

func mustDecode(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

// Guard against fence-stripping regressions when the model emits text
// around the fences.
func TestParseFinding_SurroundingWhitespace(t *testing.T) {
	content := "\n\n```json\n" + strings.TrimSpace(findingJSON) + "\n```\n\n"
	finding, err := parseFinding(content)
	require.NoError(t, err)
	assert.Equal(t, "Missing index", finding.DetailedCategory)
}
