package stats_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/persistence"
	"github.com/drillforge/core/stats"
)

func completedRecord(id string, nudges int) *persistence.SessionRecord {
	events := []eventlog.Event{eventlog.NewSessionStarted(0, "p", "standard")}
	for i := 0; i < nudges; i++ {
		events = append(events, eventlog.NewBareEvent(eventlog.NudgeRequested, 0))
	}
	events = append(events, eventlog.NewBareEvent(eventlog.SessionCompleted, 0))
	return &persistence.SessionRecord{ID: id, Events: events}
}

func abandonedRecord(id string) *persistence.SessionRecord {
	return &persistence.SessionRecord{ID: id, Events: []eventlog.Event{
		eventlog.NewSessionStarted(0, "p", "standard"),
		eventlog.NewBareEvent(eventlog.SessionAbandoned, 0),
	}}
}

func TestGetStats_NoSessions(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	summary, err := stats.GetStats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, stats.Summary{Total: 0, Completed: 0, AvgNudges: 0}, summary)
}

func TestGetStats_MixOfCompletedAndAbandoned(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	require.NoError(t, store.PutSession(ctx, completedRecord("a", 2)))
	require.NoError(t, store.PutSession(ctx, completedRecord("b", 5)))
	require.NoError(t, store.PutSession(ctx, abandonedRecord("c")))

	summary, err := stats.GetStats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 4, summary.AvgNudges) // (2+5)/2 = 3.5 rounds to 4
}

func TestGetStats_ExcludesSoftDeletedSessions(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	require.NoError(t, store.PutSession(ctx, completedRecord("a", 1)))
	require.NoError(t, store.PutSession(ctx, completedRecord("b", 3)))
	require.NoError(t, store.SoftDeleteSession(ctx, "b"))

	summary, err := stats.GetStats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.AvgNudges)
}

func TestGetStats_NoCompletedSessionsAvoidsDivisionByZero(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()

	require.NoError(t, store.PutSession(ctx, abandonedRecord("a")))

	summary, err := stats.GetStats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 0, summary.Completed)
	assert.Equal(t, 0, summary.AvgNudges)
}
