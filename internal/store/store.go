// Package store persists triage results, feedback and usage statistics.
//
// Two implementations exist: a Firestore-backed store for production and
// an in-memory store used when Firestore is not configured and in tests.
// Both degrade the same way the rest of the service does: a missing
// backend never blocks a triage, it only loses history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sponteware/triaged/internal/triage"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// TriageRecord is a persisted triage run.
type TriageRecord struct {
	ID               string         `json:"id" firestore:"-"`
	TicketNumber     string         `json:"ticket_number" firestore:"ticket_number"`
	SourceAnalysisID string         `json:"source_analysis_id,omitempty" firestore:"source_analysis_id,omitempty"`
	Text             string         `json:"text" firestore:"text"`
	Module           string         `json:"module,omitempty" firestore:"module,omitempty"`
	User             string         `json:"user,omitempty" firestore:"user,omitempty"`
	Result           *triage.Result `json:"result" firestore:"result"`
	ProcessingMS     int64          `json:"processing_ms" firestore:"processing_ms"`
	Used             bool           `json:"used" firestore:"used"`
	CreatedAt        time.Time      `json:"created_at" firestore:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" firestore:"updated_at"`
}

// TriageSummary is the listing view of a triage record.
type TriageSummary struct {
	ID           string         `json:"id"`
	TicketNumber string         `json:"ticket_number"`
	Module       string         `json:"module,omitempty"`
	Used         bool           `json:"used"`
	Summary      triage.Summary `json:"summary"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FeedbackRecord is support-staff feedback on a triage.
type FeedbackRecord struct {
	ID           string    `json:"id" firestore:"-"`
	TriageID     string    `json:"triage_id" firestore:"triage_id"`
	Helpful      bool      `json:"helpful" firestore:"helpful"`
	Rating       *int      `json:"rating,omitempty" firestore:"rating,omitempty"`
	Comment      string    `json:"comment,omitempty" firestore:"comment,omitempty"`
	SolutionUsed string    `json:"solution_used,omitempty" firestore:"solution_used,omitempty"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
}

// ModuleCount pairs a module name with its triage count.
type ModuleCount struct {
	Module string `json:"module"`
	Total  int    `json:"total"`
}

// StatsReport aggregates triage activity over a trailing window.
type StatsReport struct {
	TotalTriages    int           `json:"total_triages"`
	UsedTriages     int           `json:"used_triages"`
	UsageRate       float64       `json:"usage_rate"`
	TopModules      []ModuleCount `json:"top_modules"`
	AvgProcessingMS float64       `json:"avg_processing_ms"`
	PeriodDays      int           `json:"period_days"`
}

// Store persists triage runs and their feedback.
type Store interface {
	// SaveTriage stores a new triage record and returns its ID.
	SaveTriage(ctx context.Context, rec *TriageRecord) (string, error)

	// GetTriage returns a triage by ID, or ErrNotFound.
	GetTriage(ctx context.Context, id string) (*TriageRecord, error)

	// ListByTicket returns all triages for a ticket, most recent first.
	ListByTicket(ctx context.Context, ticketNumber string) ([]TriageSummary, error)

	// RecentTriages returns the latest triages, most recent first.
	RecentTriages(ctx context.Context, limit int) ([]TriageSummary, error)

	// MarkUsed flags a triage as applied by support staff.
	MarkUsed(ctx context.Context, id string) error

	// SaveFeedback stores feedback for a triage and returns its ID.
	SaveFeedback(ctx context.Context, fb *FeedbackRecord) (string, error)

	// Stats aggregates triage activity over the last N days.
	Stats(ctx context.Context, days int) (*StatsReport, error)

	// Close releases backend resources.
	Close() error
}

// summaryOf projects a record into its listing view.
func summaryOf(rec *TriageRecord) TriageSummary {
	s := TriageSummary{
		ID:           rec.ID,
		TicketNumber: rec.TicketNumber,
		Module:       rec.Module,
		Used:         rec.Used,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Result != nil {
		s.Summary = rec.Result.Summary
	}
	return s
}

// buildStats aggregates records within the trailing window. Shared by both
// store implementations so the report shape stays identical.
func buildStats(records []*TriageRecord, days int, now time.Time) *StatsReport {
	cutoff := now.AddDate(0, 0, -days)

	report := &StatsReport{
		TopModules: make([]ModuleCount, 0),
		PeriodDays: days,
	}

	moduleCounts := make(map[string]int)
	var totalMS int64
	var timedCount int

	for _, rec := range records {
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		report.TotalTriages++
		if rec.Used {
			report.UsedTriages++
		}
		if rec.Module != "" {
			moduleCounts[rec.Module]++
		}
		if rec.ProcessingMS > 0 {
			totalMS += rec.ProcessingMS
			timedCount++
		}
	}

	if report.TotalTriages > 0 {
		report.UsageRate = round1(float64(report.UsedTriages) / float64(report.TotalTriages) * 100)
	}
	if timedCount > 0 {
		report.AvgProcessingMS = round2(float64(totalMS) / float64(timedCount))
	}

	report.TopModules = topModules(moduleCounts, 5)
	return report
}
