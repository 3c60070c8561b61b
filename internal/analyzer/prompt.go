package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sponteware/triaged/internal/triage"
)

// triagePrompt frames the model as a support specialist and pins the
// response to a strict JSON shape.
const triagePrompt = `You are a senior technical-support specialist for a VB.NET + ASP.NET Web Forms + SQL Server business system.

=== TICKET UNDER TRIAGE ===

MODULE: %s

TICKET TEXT:
%s

=== DETECTED PATTERNS ===
%s

=== YOUR TASK ===

Analyze the ticket and produce a detailed technical triage. Return ONLY a valid JSON object:

{
  "problem_type": "code|database|config|performance|other",
  "detailed_category": "specific category description",
  "diagnosis": "technical analysis of the problem",
  "suggested_solution": "steps to resolve",
  "example_code": "VB.NET example code (if applicable)",
  "example_sql": "SQL example script (if applicable)",
  "priority": "high|medium|low",
  "estimated_time": "estimated resolution time",
  "required_resources": ["list", "of", "resources"],
  "notes": "additional relevant notes"
}

=== TECHNICAL CONTEXT ===

System stack:
- Backend: VB.NET with ASP.NET Web Forms
- Frontend: HTML, CSS, Bootstrap, AJAX
- Database: SQL Server
- Architecture: code-behind with events (BtnSalvar_Click, BtnExcluir_Click)

Common failures:
- Constraint violations in CRUD operations
- Timeouts on heavy queries
- ViewState/PostBack issues
- Permission/profile errors
- Misconfigured database connections

IMPORTANT: return ONLY the JSON object, with no extra text.`

// buildPrompt assembles the triage prompt for the given ticket.
func buildPrompt(text, module string, patterns []triage.DetectedPattern) string {
	if module == "" {
		module = "not identified"
	}

	var b strings.Builder
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s: %s\n", p.Group, p.MatchedKeyword)
	}
	patternsStr := b.String()
	if patternsStr == "" {
		patternsStr = "No known patterns detected"
	}

	return fmt.Sprintf(triagePrompt, module, text, patternsStr)
}

// parseFinding decodes the model's response into a Finding. Models
// sometimes wrap JSON in markdown fences despite instructions, so fences
// are stripped before decoding.
func parseFinding(content string) (*triage.Finding, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var finding triage.Finding
	if err := json.Unmarshal([]byte(content), &finding); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return &finding, nil
}
