// Package triage implements the ticket-triage engine: keyword pattern
// matching against the knowledge base, consolidation of rule-based and
// AI-based findings into a ranked solution list, and derivation of
// aggregate summary signals.
//
// The engine is pure and deterministic apart from the AI analyzer, which
// is injected behind the Analyzer interface and replaced by a fixed mock
// finding when unconfigured.
package triage
