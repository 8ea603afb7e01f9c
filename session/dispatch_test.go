package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/session"
)

func startSession(t *testing.T, log *eventlog.Log, nudgeBudget int, now int64) session.Result {
	t.Helper()
	res := session.Dispatch(log, nudgeBudget, now, eventlog.NewSessionStarted(0, "two-sum", "standard"))
	require.True(t, res.OK)
	return res
}

// TestHappyPath walks a full session from start through completion.
func TestHappyPath(t *testing.T) {
	log := eventlog.New()
	now := int64(1000)
	startSession(t, log, 3, now)

	now += 1000
	res := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	require.True(t, res.OK)
	assert.Equal(t, session.PhaseCoding, res.State.Phase)

	now += 1000
	res = session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingSolutionSubmitted, 0))
	require.True(t, res.OK)
	assert.Equal(t, session.PhaseSummary, res.State.Phase)
	assert.Nil(t, res.State.SilentStartedAt)

	now += 1000
	res = session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.SummaryContinued, 0))
	require.True(t, res.OK)
	assert.Equal(t, session.PhaseReflection, res.State.Phase)

	now += 1000
	responses := eventlog.ReflectionResponses{
		ClearApproach:       "yes",
		ProlongedStall:      "no",
		RecoveredFromStall:  "n/a",
		TimePressure:        "comfortable",
		WouldChangeApproach: "no",
	}
	res = session.Dispatch(log, 3, now, eventlog.NewReflectionSubmitted(0, responses))
	require.True(t, res.OK)

	assert.Equal(t, session.PhaseDone, res.State.Phase)
	assert.Equal(t, session.StatusCompleted, res.State.Status)
	assert.Equal(t, 6, log.Len())
	assert.Equal(t, 0, res.State.NudgesUsed)
	assert.Nil(t, res.State.SilentStartedAt)

	snap := log.Snapshot()
	assert.Equal(t, eventlog.SessionCompleted, snap[len(snap)-1].Type)
	assert.Equal(t, eventlog.ReflectionSubmitted, snap[len(snap)-2].Type)
}

// TestNudgeBudget checks that nudge requests past the preset's allowance
// are rejected with the budget-exhausted code.
func TestNudgeBudget(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))

	for i := 0; i < 3; i++ {
		res := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.NudgeRequested, 0))
		require.True(t, res.OK)
	}
	res := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.NudgeRequested, 0))
	require.False(t, res.OK)
	assert.Equal(t, session.CodeNudgeBudgetExhausted, res.Code)

	nudgeCount := 0
	for _, e := range log.Snapshot() {
		if e.Type == eventlog.NudgeRequested {
			nudgeCount++
		}
	}
	assert.Equal(t, 3, nudgeCount)
}

// TestReflectionValidation checks the reflection cross-field rule and
// fixed-schema validation.
func TestReflectionValidation(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingSolutionSubmitted, 0))
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.SummaryContinued, 0))

	bad := eventlog.ReflectionResponses{
		ClearApproach:       "yes",
		ProlongedStall:      "no",
		RecoveredFromStall:  "yes", // violates cross-field rule
		TimePressure:        "comfortable",
		WouldChangeApproach: "no",
	}
	res := session.Dispatch(log, 3, now, eventlog.NewReflectionSubmitted(0, bad))
	require.False(t, res.OK)
	assert.Equal(t, session.CodeInvalidReflection, res.Code)
	assert.Equal(t, session.PhaseReflection, res.State.Phase)

	for _, e := range log.Snapshot() {
		assert.NotEqual(t, eventlog.ReflectionSubmitted, e.Type)
		assert.NotEqual(t, eventlog.SessionCompleted, e.Type)
	}
}

func TestEarlySubmissionSkipsSilent(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	res := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingSolutionSubmitted, 0))

	require.True(t, res.OK)
	assert.Nil(t, res.State.SilentStartedAt)
	assert.Equal(t, 0, res.State.CodeChangesInSilent)
	for _, e := range log.Snapshot() {
		assert.NotContains(t, []eventlog.Type{eventlog.CodingSilentStarted, eventlog.SilentEnded, eventlog.SilentTimeExpired}, e.Type)
	}
}

func TestSilentPhaseTracksCodeChanges(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingSilentStarted, 0))

	res := session.Dispatch(log, 3, now, eventlog.NewTextEvent(eventlog.CodingCodeChangedInSilent, 0, "v2"))
	require.True(t, res.OK)
	assert.Equal(t, 1, res.State.CodeChangesInSilent)
	assert.True(t, res.State.CodeChangedInSilent)
	assert.Equal(t, "v2", res.State.Code)
	require.NotNil(t, res.State.SilentStartedAt)

	// Code edits outside SILENT (coding.code_changed) are rejected while in SILENT.
	rejected := session.Dispatch(log, 3, now, eventlog.NewTextEvent(eventlog.CodingCodeChanged, 0, "nope"))
	assert.False(t, rejected.OK)
	assert.Equal(t, session.CodeInvalidPhase, rejected.Code)
}

func TestNoSessionRejectsEverythingButStart(t *testing.T) {
	log := eventlog.New()
	res := session.Dispatch(log, 3, 0, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	require.False(t, res.OK)
	assert.Equal(t, session.CodeNoSession, res.Code)
}

func TestDoneRejectsEverything(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 0, now)
	session.Dispatch(log, 0, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	session.Dispatch(log, 0, now, eventlog.NewBareEvent(eventlog.CodingSolutionSubmitted, 0))
	session.Dispatch(log, 0, now, eventlog.NewBareEvent(eventlog.SummaryContinued, 0))
	responses := eventlog.ReflectionResponses{
		ClearApproach: "yes", ProlongedStall: "no", RecoveredFromStall: "n/a",
		TimePressure: "comfortable", WouldChangeApproach: "no",
	}
	session.Dispatch(log, 0, now, eventlog.NewReflectionSubmitted(0, responses))

	res := session.Dispatch(log, 0, now, eventlog.NewBareEvent(eventlog.SessionAbandoned, 0))
	require.False(t, res.OK)
	assert.Equal(t, session.CodeSessionComplete, res.Code)
}

func TestAbandonStopsFurtherDispatch(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	res := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.SessionAbandoned, 0))
	require.True(t, res.OK)
	assert.Equal(t, session.StatusAbandoned, res.State.Status)
	assert.Equal(t, session.PhasePrep, res.State.Phase, "phase is left unchanged by abandon")

	again := session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	assert.False(t, again.OK)
	assert.Equal(t, session.CodeSessionComplete, again.Code)
}

func TestPauseResumeAccounting(t *testing.T) {
	log := eventlog.New()
	now := int64(1000)
	startSession(t, log, 3, now)

	res := session.Dispatch(log, 3, 1500, eventlog.NewPauseEvent(eventlog.SessionPaused, 0))
	require.True(t, res.OK)
	assert.True(t, res.State.Paused)

	// pause is idempotent: a second pause is rejected, not silently ignored
	// at the dispatch level (INVALID_PHASE, matching "no-op" by refusing
	// the duplicate append).
	dup := session.Dispatch(log, 3, 1600, eventlog.NewPauseEvent(eventlog.SessionPaused, 0))
	assert.False(t, dup.OK)

	res = session.Dispatch(log, 3, 2000, eventlog.NewPauseEvent(eventlog.SessionResumed, 0))
	require.True(t, res.OK)
	assert.False(t, res.State.Paused)
	assert.Equal(t, int64(500), res.State.TotalPausedMs)

	resumeAgain := session.Dispatch(log, 3, 2100, eventlog.NewPauseEvent(eventlog.SessionResumed, 0))
	assert.False(t, resumeAgain.OK, "resume while not paused is rejected")
}

func TestFoldIsDeterministic(t *testing.T) {
	log := eventlog.New()
	now := int64(0)
	startSession(t, log, 3, now)
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
	session.Dispatch(log, 3, now, eventlog.NewBareEvent(eventlog.NudgeRequested, 0))

	snap := log.Snapshot()
	a := session.Fold(snap, 3)
	b := session.Fold(snap, 3)
	assert.Equal(t, a, b)
}

func TestValidateReflection(t *testing.T) {
	valid := eventlog.ReflectionResponses{
		ClearApproach: "partially", ProlongedStall: "yes", RecoveredFromStall: "partially",
		TimePressure: "manageable", WouldChangeApproach: "yes",
	}
	assert.True(t, session.ValidateReflection(valid))

	invalidValue := valid
	invalidValue.TimePressure = "chill"
	assert.False(t, session.ValidateReflection(invalidValue))

	crossFieldViolation := eventlog.ReflectionResponses{
		ClearApproach: "yes", ProlongedStall: "yes", RecoveredFromStall: "n/a",
		TimePressure: "comfortable", WouldChangeApproach: "no",
	}
	assert.False(t, session.ValidateReflection(crossFieldViolation))
}
