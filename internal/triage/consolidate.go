package triage

import (
	"github.com/sponteware/triaged/internal/knowledge"
)

// Fallbacks used when the AI finding omits fields.
const (
	aiFallbackKind     = "other"
	aiFallbackCategory = "AI analysis"
)

// Consolidate merges rule-derived and AI-derived remediations into one
// ranked solution list.
//
// Each detected pattern maps to exactly one solution, in detection order,
// with the pattern's confidence. A usable AI finding appends exactly one
// more solution with the flat AIConfidence, so the output length is always
// len(patterns) plus zero or one.
func Consolidate(patterns []DetectedPattern, finding *Finding) []Solution {
	solutions := make([]Solution, 0, len(patterns)+1)

	for _, p := range patterns {
		rule := p.Rule
		solutions = append(solutions, Solution{
			Kind:        rule.SolutionKind(),
			Category:    rule.Category,
			Priority:    rule.Priority,
			Description: rule.Solution,
			Code:        rule.Code,
			SQL:         rule.SQL,
			SQLs:        rule.SQLs,
			Confidence:  p.Confidence,
		})
	}

	if finding.Usable() {
		solutions = append(solutions, solutionFromFinding(finding))
	}

	return solutions
}

func solutionFromFinding(f *Finding) Solution {
	kind := f.ProblemType
	if kind == "" {
		kind = aiFallbackKind
	}

	category := f.DetailedCategory
	if category == "" {
		category = aiFallbackCategory
	}

	priority := knowledge.Priority(f.Priority)
	if !priority.Valid() {
		priority = knowledge.PriorityMedium
	}

	return Solution{
		Kind:        kind,
		Category:    category,
		Priority:    priority,
		Description: f.SuggestedSolution,
		Code:        f.ExampleCode,
		SQL:         f.ExampleSQL,
		Confidence:  AIConfidence,
	}
}
