package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponteware/triaged/internal/knowledge"
	"github.com/sponteware/triaged/internal/triage"
)

func testRecord(ticket, module string) *TriageRecord {
	return &TriageRecord{
		TicketNumber: ticket,
		Text:         "Query timeout after 30 seconds",
		Module:       module,
		ProcessingMS: 120,
		Result: &triage.Result{
			Summary: triage.Summary{
				TotalPatterns:   1,
				OverallPriority: knowledge.PriorityHigh,
			},
		},
	}
}

func TestMemory_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.SaveTriage(ctx, testRecord("TK-100", "RELATORIOS"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := m.GetTriage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "TK-100", rec.TicketNumber)
	assert.Equal(t, "RELATORIOS", rec.Module)
	assert.False(t, rec.Used)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.GetTriage(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListByTicket(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	_, err := m.SaveTriage(ctx, testRecord("TK-1", "A"))
	require.NoError(t, err)
	second, err := m.SaveTriage(ctx, testRecord("TK-1", "B"))
	require.NoError(t, err)
	_, err = m.SaveTriage(ctx, testRecord("TK-2", "C"))
	require.NoError(t, err)

	list, err := m.ListByTicket(ctx, "TK-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Most recent first.
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, "B", list[0].Module)
	assert.Equal(t, knowledge.PriorityHigh, list[0].Summary.OverallPriority)

	empty, err := m.ListByTicket(ctx, "TK-404")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemory_RecentTriages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	var last string
	for i := 0; i < 5; i++ {
		id, err := m.SaveTriage(ctx, testRecord("TK-1", "A"))
		require.NoError(t, err)
		last = id
	}

	recent, err := m.RecentTriages(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, last, recent[0].ID)
}

func TestMemory_MarkUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.SaveTriage(ctx, testRecord("TK-1", ""))
	require.NoError(t, err)

	require.NoError(t, m.MarkUsed(ctx, id))
	rec, err := m.GetTriage(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Used)

	assert.ErrorIs(t, m.MarkUsed(ctx, "nope"), ErrNotFound)
}

func TestMemory_SaveFeedback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rating := 4
	id, err := m.SaveFeedback(ctx, &FeedbackRecord{
		TriageID: "t1",
		Helpful:  true,
		Rating:   &rating,
		Comment:  "index fixed it",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	clock := now.AddDate(0, 0, -30) // First record lands outside the window.
	m.now = func() time.Time { return clock }

	_, err := m.SaveTriage(ctx, testRecord("TK-old", "ANCIENT"))
	require.NoError(t, err)

	clock = now.AddDate(0, 0, -1)
	for i := 0; i < 3; i++ {
		id, err := m.SaveTriage(ctx, testRecord("TK-1", "FINANCEIRO"))
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, m.MarkUsed(ctx, id))
		}
	}
	_, err = m.SaveTriage(ctx, testRecord("TK-2", "RELATORIOS"))
	require.NoError(t, err)

	clock = now
	stats, err := m.Stats(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTriages)
	assert.Equal(t, 1, stats.UsedTriages)
	assert.Equal(t, 25.0, stats.UsageRate)
	assert.Equal(t, 120.0, stats.AvgProcessingMS)
	assert.Equal(t, 7, stats.PeriodDays)
	require.Len(t, stats.TopModules, 2)
	assert.Equal(t, ModuleCount{Module: "FINANCEIRO", Total: 3}, stats.TopModules[0])
	assert.Equal(t, ModuleCount{Module: "RELATORIOS", Total: 1}, stats.TopModules[1])
}

func TestMemory_StatsEmpty(t *testing.T) {
	stats, err := NewMemory().Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTriages)
	assert.Equal(t, 0.0, stats.UsageRate)
	assert.Empty(t, stats.TopModules)
}

func TestTopModules_Caps(t *testing.T) {
	counts := map[string]int{
		"A": 1, "B": 5, "C": 3, "D": 2, "E": 4, "F": 6,
	}
	top := topModules(counts, 5)
	require.Len(t, top, 5)
	assert.Equal(t, "F", top[0].Module)
	assert.Equal(t, "B", top[1].Module)
	// A (count 1) falls off.
	for _, mc := range top {
		assert.NotEqual(t, "A", mc.Module)
	}
}
