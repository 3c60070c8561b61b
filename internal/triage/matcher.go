package triage

import (
	"strings"

	"github.com/sponteware/triaged/internal/knowledge"
)

// Match scans the ticket text against the knowledge base and returns one
// DetectedPattern per matching rule.
//
// Matching is substring-based and case-insensitive, with no tokenization.
// Groups are evaluated in knowledge.GroupOrder and rules in stored order,
// so the output is deterministic for a fixed text and rule set. Within a
// rule the first matching keyword wins and the rest are skipped.
//
// Match is a pure function; a nil or empty base yields an empty result.
func Match(text string, base *knowledge.Base) []DetectedPattern {
	patterns := make([]DetectedPattern, 0)
	lower := strings.ToLower(text)

	for _, group := range knowledge.GroupOrder {
		rules := base.Rules(group)
		for i := range rules {
			rule := &rules[i]
			for _, keyword := range rule.Keywords {
				if strings.Contains(lower, strings.ToLower(keyword)) {
					patterns = append(patterns, DetectedPattern{
						Group:          rule.Group,
						RuleID:         rule.ID,
						MatchedKeyword: keyword,
						Confidence:     PatternConfidence,
						Rule:           rule,
					})
					break
				}
			}
		}
	}

	return patterns
}
