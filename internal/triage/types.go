package triage

import (
	"github.com/sponteware/triaged/internal/knowledge"
)

// Confidence constants. Keyword matches are all treated as equally
// confident, and AI-derived solutions always rank below rule-derived ones.
const (
	// PatternConfidence is assigned to every keyword match.
	PatternConfidence = 0.8

	// AIConfidence is assigned to the solution derived from an AI finding.
	AIConfidence = 0.7
)

// DetectedPattern records one knowledge base rule matching the ticket text.
// At most one pattern is emitted per rule per analysis.
type DetectedPattern struct {
	Group          knowledge.Group `json:"group"`
	RuleID         string          `json:"rule_id"`
	MatchedKeyword string          `json:"matched_keyword"`
	Confidence     float64         `json:"confidence"`

	// Rule is the originating knowledge base entry, kept for the
	// consolidator and summarizer. Not serialized.
	Rule *knowledge.Rule `json:"-"`
}

// Finding is the structured diagnosis produced by the AI analyzer, or a
// deterministic placeholder when the analyzer is unavailable.
//
// A non-empty Error marks the finding unusable: it contributes neither a
// solution nor summary signals, but is still returned to the caller for
// diagnostics.
type Finding struct {
	ProblemType       string   `json:"problem_type,omitempty"`
	DetailedCategory  string   `json:"detailed_category,omitempty"`
	Diagnosis         string   `json:"diagnosis,omitempty"`
	SuggestedSolution string   `json:"suggested_solution,omitempty"`
	ExampleCode       string   `json:"example_code,omitempty"`
	ExampleSQL        string   `json:"example_sql,omitempty"`
	Priority          string   `json:"priority,omitempty"`
	EstimatedTime     string   `json:"estimated_time,omitempty"`
	RequiredResources []string `json:"required_resources,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// Usable reports whether the finding can contribute to solutions and
// summary signals.
func (f *Finding) Usable() bool {
	return f != nil && f.Error == ""
}

// Solution is one ranked remediation candidate, derived from a matched
// rule or from the AI finding.
type Solution struct {
	Kind        string             `json:"kind"`
	Category    string             `json:"category"`
	Priority    knowledge.Priority `json:"priority"`
	Description string             `json:"description"`
	Code        string             `json:"code,omitempty"`
	SQL         string             `json:"sql,omitempty"`
	SQLs        []string           `json:"sqls,omitempty"`
	Confidence  float64            `json:"confidence"`
}

// Summary aggregates signals from detected patterns and the AI finding.
type Summary struct {
	TotalPatterns      int                `json:"total_patterns_detected"`
	HasAIFinding       bool               `json:"has_ai_finding"`
	AffectedCategories []string           `json:"affected_categories"`
	OverallPriority    knowledge.Priority `json:"overall_priority"`
	Text               string             `json:"summary"`
}

// Result is the full outcome of one triage analysis.
type Result struct {
	Patterns  []DetectedPattern `json:"patterns"`
	Finding   *Finding          `json:"ai_analysis"`
	Solutions []Solution        `json:"solutions"`
	Summary   Summary           `json:"summary"`
	UsedMock  bool              `json:"used_mock"`
}
