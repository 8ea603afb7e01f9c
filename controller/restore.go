package controller

import (
	"context"
	"errors"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/logger"
	"github.com/drillforge/core/persistence"
	"github.com/drillforge/core/preset"
	"github.com/drillforge/core/session"
)

// Restore runs the app-init sequence: read the most
// recent incomplete session, replay its log, and restart the Timer using
// phaseStart + budget − now + pausesDuringPhase. If the resulting
// remaining is already ≤ 0, the expiry transition sequence is replayed
// before returning. It also deletes orphan audio belonging to sessions
// that are not the restored one and have already reached a terminal
// phase (invariant 8).
//
// found is false when there was no incomplete session to restore; the
// Controller is left with no active session in that case.
func (c *Controller) Restore(ctx context.Context) (snap Snapshot, found bool, err error) {
	rec, err := c.store.GetIncompleteSession(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			if err := c.cleanupOrphanAudio(ctx, ""); err != nil {
				logger.ErrorContext(ctx, "orphan audio cleanup failed", "error", err)
			}
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}

	p, err := c.presets.Get(rec.PresetName)
	if err != nil {
		return Snapshot{}, false, err
	}

	c.mu.Lock()
	c.sessionID = rec.ID
	c.presetRec = p
	c.problemRec = rec.Problem
	c.log = eventlog.FromEvents(rec.Events)
	c.state = session.Fold(c.log.Snapshot(), p.NudgeBudget)
	c.restoreTimerLocked(rec.UpdatedAt)
	snap = c.snapshotLocked()
	c.mu.Unlock()

	if err := c.cleanupOrphanAudio(ctx, rec.ID); err != nil {
		logger.ErrorContext(ctx, "orphan audio cleanup failed", "error", err)
	}

	return snap, true, nil
}

// restoreTimerLocked computes the remaining time in the session's current
// phase from wall-clock facts alone (never from a saved "remaining"
// value, matching the Timer's own drift-free design) and restarts the
// Timer at that remaining value. If remaining is already ≤ 0, it
// immediately replays the matching expiry chain instead of starting a
// timer that would expire on its very first poll.
//
// Only pause time that falls inside the current phase is credited back;
// pauses taken in earlier phases are not. updatedAt is the persisted
// record's last-write timestamp. A pause still open when the process
// stopped has no matching session.resumed event; that open interval is
// treated as having ended at updatedAt rather than at the current wall
// clock, so a long-paused session isn't charged for the entire time the
// process was down.
func (c *Controller) restoreTimerLocked(updatedAt int64) {
	budget := phaseBudgetMs(c.presetRec, c.state.Phase)
	if budget <= 0 {
		c.timerPhase = c.state.Phase
		return
	}

	phaseStart := c.state.PhaseStartedAt
	var totalPaused, pauseStart int64
	for _, e := range c.log.Snapshot() {
		switch e.Type {
		case eventlog.SessionPaused:
			pauseStart = max(e.Timestamp, phaseStart)
		case eventlog.SessionResumed:
			if e.Timestamp > pauseStart {
				totalPaused += e.Timestamp - pauseStart
			}
		}
	}
	if c.state.Paused {
		totalPaused += updatedAt - max(c.state.PauseStartedAt, phaseStart)
	}

	now := c.clk.Now()
	elapsed := now - c.state.PhaseStartedAt - totalPaused
	remaining := budget - elapsed
	c.timerPhase = c.state.Phase
	c.phaseStartWallMs = c.state.PhaseStartedAt

	if remaining <= 0 {
		c.handleExpireLocked()
		return
	}
	if c.state.Paused {
		// The timer starts fresh at `remaining` and is immediately paused;
		// Resume will continue counting from here with zero drift, same as
		// any other pause/resume cycle.
		c.timer.Start(remaining)
		c.timer.Pause()
		return
	}
	c.timer.Start(remaining)
}

// phaseBudgetMs returns the configured duration of phase under preset p,
// or 0 for phases that have no timer (SUMMARY, REFLECTION, DONE, and the
// no-session sentinel phase).
func phaseBudgetMs(p preset.Preset, phase session.Phase) int64 {
	switch phase {
	case session.PhasePrep:
		return p.PrepMs
	case session.PhaseCoding:
		return p.CodingMs
	case session.PhaseSilent:
		return p.SilentMs
	default:
		return 0
	}
}

// cleanupOrphanAudio deletes audio records belonging to terminal sessions
// other than keepID (invariant 8: "audio blobs with no corresponding
// in-progress session are considered orphaned").
func (c *Controller) cleanupOrphanAudio(ctx context.Context, keepID string) error {
	all, err := c.store.GetAllSessions(ctx)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if rec.ID == keepID {
			continue
		}
		if persistence.IsIncomplete(rec) {
			continue
		}
		if _, err := c.store.GetAudio(ctx, rec.ID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return err
		}
		if err := c.store.DeleteAudio(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}
