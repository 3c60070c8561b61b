package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs the service when Firestore is
// not configured and all store tests.
type Memory struct {
	mu       sync.RWMutex
	triages  map[string]*TriageRecord
	feedback map[string]*FeedbackRecord
	order    []string // triage IDs in insertion order

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		triages:  make(map[string]*TriageRecord),
		feedback: make(map[string]*FeedbackRecord),
		now:      time.Now,
	}
}

func (m *Memory) SaveTriage(_ context.Context, rec *TriageRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	stored.ID = uuid.NewString()
	now := m.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.triages[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	return stored.ID, nil
}

func (m *Memory) GetTriage(_ context.Context, id string) (*TriageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.triages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) ListByTicket(_ context.Context, ticketNumber string) ([]TriageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TriageSummary, 0)
	for _, id := range m.order {
		rec := m.triages[id]
		if rec.TicketNumber == ticketNumber {
			out = append(out, summaryOf(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) RecentTriages(_ context.Context, limit int) ([]TriageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TriageSummary, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, summaryOf(m.triages[id]))
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.triages[id]
	if !ok {
		return ErrNotFound
	}
	rec.Used = true
	rec.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) SaveFeedback(_ context.Context, fb *FeedbackRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *fb
	stored.ID = uuid.NewString()
	stored.CreatedAt = m.now().UTC()
	m.feedback[stored.ID] = &stored
	return stored.ID, nil
}

func (m *Memory) Stats(_ context.Context, days int) (*StatsReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*TriageRecord, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.triages[id])
	}
	return buildStats(records, days, m.now().UTC()), nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)

func sortNewestFirst(summaries []TriageSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
}

// topModules returns the N most triaged modules, largest first. Ties break
// alphabetically so the order is stable.
func topModules(counts map[string]int, n int) []ModuleCount {
	out := make([]ModuleCount, 0, len(counts))
	for module, total := range counts {
		out = append(out, ModuleCount{Module: module, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Module < out[j].Module
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
