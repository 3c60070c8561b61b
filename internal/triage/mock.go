package triage

// MockFinding returns the fixed placeholder diagnosis used when no AI
// analyzer is configured. The content is deterministic so that repeated
// analyses of the same ticket produce identical results.
func MockFinding() *Finding {
	return &Finding{
		ProblemType:       "code",
		DetailedCategory:  "Validation error in CRUD operation",
		Diagnosis:         "Problem detected in a database operation, likely a constraint violation",
		SuggestedSolution: "Review data validation and database constraints before executing the operation",
		ExampleCode: "Try\n" +
			"    ' Validate input\n" +
			"    If String.IsNullOrEmpty(field) Then Throw New ArgumentException(\"Required field\")\n" +
			"    ' Database operation\n" +
			"Catch ex As Exception\n" +
			"    Throw New Exception($\"Operation failed: {ex.Message}\")\n" +
			"End Try",
		ExampleSQL:        "SELECT * FROM target_table WHERE field = 'value'",
		Priority:          "high",
		EstimatedTime:     "1-2 hours",
		RequiredResources: []string{"Backend developer", "Database access"},
		Notes:             "Placeholder analysis. Configure an AI provider for ticket-specific diagnosis.",
	}
}
