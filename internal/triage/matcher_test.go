package triage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sponteware/triaged/internal/knowledge"
)

func testBase(t *testing.T, doc string) *knowledge.Base {
	t.Helper()
	base, err := knowledge.Parse([]byte(doc))
	require.NoError(t, err)
	return base
}

const matcherDoc = `
code_patterns:
  backend:
    null_reference:
      keywords: ["NullReferenceException", "object reference"]
      category: "Code defect"
      priority: high
      solution: "Add nil checks before dereferencing"
  frontend:
    viewstate:
      keywords: ["viewstate", "postback"]
      category: "Page lifecycle"
      priority: medium
      solution: "Review ViewState handling on postback"
database_patterns:
  slow_query:
    keywords: ["timeout", "lenta", "slow query"]
    category: "Performance"
    priority: high
    solution: "Add index on the filtered columns"
    sql: "CREATE INDEX ix_example ON target_table (field)"
system_patterns:
  permission:
    keywords: ["access denied", "permission"]
    category: "Access control"
    priority: low
    solution: "Review the user profile permissions"
`

func TestMatch(t *testing.T) {
	base := testBase(t, matcherDoc)

	tests := []struct {
		name      string
		text      string
		wantRules []string
	}{
		{
			name:      "single database match",
			text:      "Query timeout after 30 seconds",
			wantRules: []string{"slow_query"},
		},
		{
			name:      "case insensitive",
			text:      "ERRO: TIMEOUT na consulta",
			wantRules: []string{"slow_query"},
		},
		{
			name:      "matches across groups preserve group order",
			text:      "NullReferenceException after postback, then access denied",
			wantRules: []string{"null_reference", "viewstate", "permission"},
		},
		{
			name:      "no matches",
			text:      "user asked how to print a report",
			wantRules: []string{},
		},
		{
			name:      "empty text",
			text:      "",
			wantRules: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := Match(tt.text, base)

			got := make([]string, 0, len(patterns))
			for _, p := range patterns {
				got = append(got, p.RuleID)
			}
			require.Equal(t, tt.wantRules, got)

			for _, p := range patterns {
				require.Equal(t, PatternConfidence, p.Confidence)
				require.NotNil(t, p.Rule)
			}
		})
	}
}

func TestMatch_FirstKeywordWins(t *testing.T) {
	base := testBase(t, `
database_patterns:
  slow_query:
    keywords: ["timeout", "lenta"]
    category: "Performance"
    priority: high
    solution: "Add index"
`)

	// Both keywords present: the first declared keyword is reported.
	patterns := Match("consulta lenta com timeout", base)
	require.Len(t, patterns, 1)
	require.Equal(t, "timeout", patterns[0].MatchedKeyword)
}

func TestMatch_NoDuplicatePerRule(t *testing.T) {
	base := testBase(t, `
database_patterns:
  slow_query:
    keywords: ["timeout"]
    category: "Performance"
    priority: high
    solution: "Add index"
`)

	patterns := Match("timeout then another timeout and a third timeout", base)
	require.Len(t, patterns, 1)
}

func TestMatch_EmptyBase(t *testing.T) {
	require.Empty(t, Match("timeout", &knowledge.Base{}))
	require.Empty(t, Match("timeout", nil))
}

func TestMatch_Deterministic(t *testing.T) {
	base := testBase(t, matcherDoc)
	text := "NullReferenceException after postback with timeout and access denied"

	first := Match(text, base)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Match(text, base))
	}
}
