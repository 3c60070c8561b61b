package triage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/knowledge"
)

type fakeAnalyzer struct {
	finding   *Finding
	err       error
	available bool
	calls     int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string, _ []DetectedPattern) (*Finding, error) {
	f.calls++
	return f.finding, f.err
}

func (f *fakeAnalyzer) Available() bool { return f.available }

func TestService_AnalyzeScenario(t *testing.T) {
	// Knowledge base with one rule, AI disabled.
	base := testBase(t, `
database_patterns:
  missing_index:
    keywords: ["timeout"]
    category: "Performance"
    priority: high
    solution: "Add index"
`)
	svc := NewService(base, nil, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "Query timeout after 30 seconds", "RELATORIOS")
	require.NoError(t, err)

	require.Len(t, result.Patterns, 1)
	p := result.Patterns[0]
	require.Equal(t, knowledge.GroupDatabase, p.Group)
	require.Equal(t, "missing_index", p.RuleID)
	require.Equal(t, "timeout", p.MatchedKeyword)
	require.Equal(t, PatternConfidence, p.Confidence)

	require.True(t, result.UsedMock)
	// Mock finding is usable, so it adds one solution on top of the rule's.
	require.Len(t, result.Solutions, 2)
	require.Equal(t, knowledge.PriorityHigh, result.Solutions[0].Priority)
	require.Equal(t, knowledge.PriorityHigh, result.Summary.OverallPriority)
	require.Equal(t, 1, result.Summary.TotalPatterns)
}

func TestService_Deterministic(t *testing.T) {
	base := testBase(t, matcherDoc)
	svc := NewService(base, nil, zap.NewNop())

	text := "NullReferenceException after postback with timeout"
	first, err := svc.Analyze(context.Background(), text, "")
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.Analyze(context.Background(), text, "")
		require.NoError(t, err)

		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		require.Equal(t, firstJSON, againJSON)
	}
}

func TestService_AIErrorIsolation(t *testing.T) {
	base := testBase(t, matcherDoc)
	analyzer := &fakeAnalyzer{err: errors.New("model overloaded"), available: true}
	svc := NewService(base, analyzer, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "timeout and access denied", "")
	require.NoError(t, err)
	require.Equal(t, 1, analyzer.calls)

	// Rule-derived solutions are unaffected by the AI failure.
	require.Len(t, result.Patterns, 2)
	require.Len(t, result.Solutions, 2)

	require.False(t, result.UsedMock)
	require.Equal(t, "model overloaded", result.Finding.Error)
	require.False(t, result.Finding.Usable())
	require.False(t, result.Summary.HasAIFinding)
}

func TestService_UsesAnalyzerFinding(t *testing.T) {
	base := testBase(t, matcherDoc)
	finding := &Finding{
		ProblemType:       "database",
		SuggestedSolution: "Create index",
		Priority:          "high",
	}
	svc := NewService(base, &fakeAnalyzer{finding: finding, available: true}, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "timeout", "FINANCEIRO")
	require.NoError(t, err)

	require.False(t, result.UsedMock)
	// Consolidator and summarizer saw the same finding instance.
	require.Same(t, finding, result.Finding)
	require.True(t, result.Summary.HasAIFinding)
	require.Len(t, result.Solutions, 2)
	require.Equal(t, AIConfidence, result.Solutions[1].Confidence)
}

func TestService_UnavailableAnalyzerFallsBackToMock(t *testing.T) {
	svc := NewService(nil, &fakeAnalyzer{available: false}, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "anything", "")
	require.NoError(t, err)
	require.True(t, result.UsedMock)
	require.True(t, result.Finding.Usable())
	require.Equal(t, MockFinding(), result.Finding)
}

func TestService_NilAnalyzerFinding(t *testing.T) {
	svc := NewService(nil, &fakeAnalyzer{available: true}, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "anything", "")
	require.NoError(t, err)
	require.False(t, result.Finding.Usable())
	require.NotEmpty(t, result.Finding.Error)
}

func TestService_EmptyBase(t *testing.T) {
	svc := NewService(&knowledge.Base{}, nil, zap.NewNop())

	result, err := svc.Analyze(context.Background(), "timeout everywhere", "")
	require.NoError(t, err)
	require.Empty(t, result.Patterns)
	// Mock finding still yields a single solution.
	require.Len(t, result.Solutions, 1)
	require.Equal(t, knowledge.PriorityLow, result.Summary.OverallPriority)
}
