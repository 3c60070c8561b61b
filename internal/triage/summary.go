package triage

import (
	"fmt"

	"github.com/sponteware/triaged/internal/knowledge"
)

// Summarize derives aggregate signals from the detected patterns and the
// AI finding.
//
// The overall priority is computed from rule priorities only. The AI
// finding's own priority is deliberately ignored here, even when no
// patterns matched; changing this would alter observable behavior.
func Summarize(patterns []DetectedPattern, finding *Finding) Summary {
	hasAI := finding.Usable()

	// De-duplicated categories, first occurrence order.
	categories := make([]string, 0)
	seen := make(map[string]struct{})
	for _, p := range patterns {
		cat := p.Rule.Category
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		categories = append(categories, cat)
	}

	overall := knowledge.PriorityLow
	for _, p := range patterns {
		switch p.Rule.Priority {
		case knowledge.PriorityHigh:
			overall = knowledge.PriorityHigh
		case knowledge.PriorityMedium:
			if overall != knowledge.PriorityHigh {
				overall = knowledge.PriorityMedium
			}
		}
	}

	text := fmt.Sprintf("Detected %d known patterns", len(patterns))
	if hasAI {
		text += " + AI analysis"
	}

	return Summary{
		TotalPatterns:      len(patterns),
		HasAIFinding:       hasAI,
		AffectedCategories: categories,
		OverallPriority:    overall,
		Text:               text,
	}
}
