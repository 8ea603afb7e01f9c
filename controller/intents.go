package controller

import (
	"context"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/session"
)

// isActiveNonTerminal reports whether state represents an in-flight
// session that must be abandoned or completed before a new one can start.
func isActiveNonTerminal(state session.DerivedState) bool {
	return state.HasSession() && state.Phase != session.PhaseDone && state.Status != session.StatusAbandoned
}

// StartSession begins a new session under presetName, picking the next
// problem from the catalog. If the current session (if any) has not
// reached a terminal phase, it is rejected with INVALID_PHASE rather than
// silently discarded.
func (c *Controller) StartSession(ctx context.Context, presetName string) (Snapshot, error) {
	p, err := c.presets.Get(presetName)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if isActiveNonTerminal(c.state) {
		return c.snapshotLocked(), session.ErrInvalidPhase
	}

	prob := c.problems.PickProblem()
	c.sessionID = newSessionID()
	c.presetRec = p
	c.problemRec = prob
	c.log = eventlog.New()
	c.state = session.DerivedState{}
	c.flushDirty = false
	if c.pendingFlush != nil {
		c.pendingFlush.Stop()
		c.pendingFlush = nil
	}

	sessionsStartedTotal.WithLabelValues(p.Name).Inc()
	return c.dispatchLocked(ctx, eventlog.NewSessionStarted(0, prob.ID, p.Name))
}

// UpdateInvariants records the user's free-form preparation notes.
func (c *Controller) UpdateInvariants(ctx context.Context, text string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewTextEvent(eventlog.PrepInvariantsChanged, 0, text))
}

// StartCoding advances PREP to CODING.
func (c *Controller) StartCoding(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.CodingStarted, 0))
}

// UpdateCode records a code edit, tagging it as a silent-phase edit when
// the session is currently in SILENT.
func (c *Controller) UpdateCode(ctx context.Context, text string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := eventlog.CodingCodeChanged
	if c.state.Phase == session.PhaseSilent {
		t = eventlog.CodingCodeChangedInSilent
	}
	return c.dispatchLocked(ctx, eventlog.NewTextEvent(t, 0, text))
}

// RequestNudge consumes one nudge from the session's budget.
func (c *Controller) RequestNudge(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.NudgeRequested, 0))
}

// SubmitSolution ends CODING early, skipping SILENT entirely.
func (c *Controller) SubmitSolution(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.CodingSolutionSubmitted, 0))
}

// EndSilent ends SILENT on user request, the same transition the silent
// timer's own expiry chains into automatically.
func (c *Controller) EndSilent(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.SilentEnded, 0))
}

// ContinuePastSummary advances SUMMARY to REFLECTION.
func (c *Controller) ContinuePastSummary(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.SummaryContinued, 0))
}

// SubmitReflection records the reflection responses; on success the
// dispatcher synthesizes session.completed in the same step.
func (c *Controller) SubmitReflection(ctx context.Context, responses eventlog.ReflectionResponses) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewReflectionSubmitted(0, responses))
}

// AbandonSession marks the session abandoned from any non-terminal phase.
func (c *Controller) AbandonSession(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, eventlog.NewBareEvent(eventlog.SessionAbandoned, 0))
}

// PauseSession freezes the active timer.
func (c *Controller) PauseSession(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	return c.dispatchLocked(ctx, eventlog.NewPauseEvent(eventlog.SessionPaused, now))
}

// ResumeFromPause continues the timer from where it was frozen.
func (c *Controller) ResumeFromPause(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	return c.dispatchLocked(ctx, eventlog.NewPauseEvent(eventlog.SessionResumed, now))
}
