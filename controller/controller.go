// Package controller implements the Session Store / Controller: it
// binds the Clock, Timer, Event Log, Session State Machine, and
// Persistence Adapter together, owns the single active session, and
// translates external intents into dispatched events. It has no single
// file-level analogue elsewhere; it is grounded on runtime/events/bus.go for
// pub/sub notification and wires in the tracing primitives carried in
// go.mod (go.opentelemetry.io/otel).
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drillforge/core/clock"
	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/logger"
	"github.com/drillforge/core/persistence"
	"github.com/drillforge/core/preset"
	"github.com/drillforge/core/problem"
	"github.com/drillforge/core/session"
	"github.com/drillforge/core/timer"
)

const defaultDebounce = 300 * time.Millisecond

// Controller owns at most one active session at a time. A zero Controller
// is not usable; construct one with New.
type Controller struct {
	clk      clock.Clock
	presets  *preset.Registry
	problems *problem.Registry
	store    persistence.Store
	tracer   trace.Tracer
	debounce time.Duration

	bus *bus

	writeMu     sync.Mutex
	writeBusy   bool
	writeQueued *pendingWrite

	timerOpts []timer.Option

	mu          sync.Mutex
	timer       *timer.Timer
	timerPhase  session.Phase
	sessionID   string
	problemRec  problem.Problem
	presetRec   preset.Preset
	log         *eventlog.Log
	state       session.DerivedState
	phaseStartWallMs int64

	pendingFlush *time.Timer
	flushDirty   bool

	audioSupported        bool
	audioPermissionDenied bool
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithDebounce overrides the code-edit persistence debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithTracer overrides the OpenTelemetry tracer used to wrap dispatch
// calls. Defaults to the global TracerProvider's "drillforge/controller"
// tracer, which is a no-op unless the embedding application configures one.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithTimerOptions forwards extra options to the underlying Timer. Tests
// use this to install a fast poll interval so expiry-driven behavior can
// be observed without waiting out a real preset duration.
func WithTimerOptions(opts ...timer.Option) Option {
	return func(c *Controller) { c.timerOpts = append(c.timerOpts, opts...) }
}

// New constructs a Controller with no active session.
func New(clk clock.Clock, presets *preset.Registry, problems *problem.Registry, store persistence.Store, opts ...Option) *Controller {
	c := &Controller{
		clk:      clk,
		presets:  presets,
		problems: problems,
		store:    store,
		tracer:   otel.Tracer("drillforge/controller"),
		debounce: defaultDebounce,
		bus:      newBus(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = timer.New(clk, c.onTick, c.onExpire, c.timerOpts...)
	return c
}

// Subscribe registers listener to receive a Snapshot after every
// successful dispatch. The returned function unsubscribes.
func (c *Controller) Subscribe(listener Listener) func() {
	return c.bus.Subscribe(listener)
}

// Snapshot returns the current state without mutating anything.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.log == nil {
		return Snapshot{}
	}
	state := c.state
	state.AudioSupported = c.audioSupported
	state.AudioPermissionDenied = c.audioPermissionDenied
	return Snapshot{
		HasSession:   c.state.HasSession(),
		SessionID:    c.sessionID,
		Problem:      c.problemRec,
		Preset:       c.presetRec,
		State:        state,
		RemainingMs:  c.timer.GetRemaining(),
		TimerRunning: c.timer.IsRunning(),
		TimerPaused:  c.timer.IsPaused(),
	}
}

// SetAudioSupported and SetAudioPermissionDenied let the embedding
// application report audio-recorder status, which derived state carries
// but Fold never computes (session/state.go's documented carve-out).
func (c *Controller) SetAudioSupported(supported bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioSupported = supported
	c.state.AudioSupported = supported
}

func (c *Controller) SetAudioPermissionDenied(denied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioPermissionDenied = denied
	c.state.AudioPermissionDenied = denied
}

// dispatchLocked is the single choke point every intent method funnels through:
// it wraps session.Dispatch in a trace span, applies phase-transition side
// effects (timer start/stop), schedules persistence, and publishes the
// resulting snapshot. Must be called with c.mu held; it releases and
// re-acquires nothing itself.
func (c *Controller) dispatchLocked(ctx context.Context, proposed eventlog.Event) (Snapshot, error) {
	if c.log == nil {
		return Snapshot{}, session.ErrNoSession
	}

	_, span := c.tracer.Start(ctx, "drillforge.controller/dispatch", trace.WithAttributes(
		attribute.String("event.type", string(proposed.Type)),
		attribute.String("phase", string(c.state.Phase)),
	))
	defer span.End()

	now := c.clk.Now()
	result := session.Dispatch(c.log, c.presetRec.NudgeBudget, now, proposed)
	if !result.OK {
		span.SetAttributes(attribute.String("rejection.code", string(result.Code)))
		recordDispatchRejected(string(result.Code))
		return c.snapshotLocked(), &session.RejectionError{Code: result.Code}
	}

	prevPhase := c.state.Phase
	c.state = result.State
	c.applyPhaseSideEffectsLocked(prevPhase, proposed.Type, now)
	c.schedulePersistLocked(ctx, isDebouncedEvent(proposed.Type))

	snap := c.snapshotLocked()
	c.bus.Publish(snap)

	// schedulePersistLocked has already snapshotted the record (including
	// this dispatch's events) for its asynchronous write, so it is safe to
	// drop the in-memory reference now that the caller and subscribers have
	// observed the terminal snapshot: spec sections 2 and 4.7 both require
	// that a session reaching DONE/abandoned clears the active session
	// reference (leaving the persisted record in storage), so a later
	// Snapshot() call reports no active session instead of the stale one.
	if isSessionTerminal(c.state) {
		c.clearActiveSessionLocked()
	}

	return snap, nil
}

// isSessionTerminal reports whether state represents a session that has
// reached a terminal outcome (completed or abandoned).
func isSessionTerminal(state session.DerivedState) bool {
	return state.Phase == session.PhaseDone || state.Status == session.StatusAbandoned
}

// clearActiveSessionLocked drops the Controller's reference to the session
// that just finished, returning it to the "no active session" state a fresh
// Controller starts in. The record itself is untouched in storage; only the
// in-memory log/state/identity are reset.
func (c *Controller) clearActiveSessionLocked() {
	c.log = nil
	c.sessionID = ""
	c.problemRec = problem.Problem{}
	c.presetRec = preset.Preset{}
	c.state = session.DerivedState{}
	c.timerPhase = ""
	c.phaseStartWallMs = 0
}

// applyPhaseSideEffectsLocked starts/stops the Timer in reaction to a
// phase transition. Must be called with c.mu held and after c.state has
// already been refreshed to the post-accept value.
func (c *Controller) applyPhaseSideEffectsLocked(prevPhase session.Phase, eventType eventlog.Type, wallNow int64) {
	switch eventType {
	case eventlog.SessionStarted:
		c.startPhaseTimerLocked(session.PhasePrep, c.presetRec.PrepMs, wallNow)
	case eventlog.CodingStarted:
		recordPhaseDuration(string(session.PhasePrep), secondsSince(c.phaseStartWallMs, wallNow))
		c.startPhaseTimerLocked(session.PhaseCoding, c.presetRec.CodingMs, wallNow)
	case eventlog.CodingSilentStarted:
		recordPhaseDuration(string(session.PhaseCoding), secondsSince(c.phaseStartWallMs, wallNow))
		c.startPhaseTimerLocked(session.PhaseSilent, c.presetRec.SilentMs, wallNow)
	case eventlog.CodingSolutionSubmitted, eventlog.SilentEnded:
		recordPhaseDuration(string(prevPhase), secondsSince(c.phaseStartWallMs, wallNow))
		c.timer.Stop()
		c.timerPhase = session.PhaseSummary
		c.phaseStartWallMs = wallNow
	case eventlog.SessionPaused:
		c.timer.Pause()
	case eventlog.SessionResumed:
		c.timer.Resume()
	case eventlog.SessionAbandoned, eventlog.ReflectionSubmitted:
		recordPhaseDuration(string(prevPhase), secondsSince(c.phaseStartWallMs, wallNow))
		c.timer.Stop()
		status := "completed"
		if eventType == eventlog.SessionAbandoned {
			status = "abandoned"
		}
		sessionsFinishedTotal.WithLabelValues(status).Inc()
		nudgesUsed.WithLabelValues(c.presetRec.Name).Observe(float64(c.state.NudgesUsed))
	}
}

func (c *Controller) startPhaseTimerLocked(phase session.Phase, durationMs int64, wallNow int64) {
	c.timerPhase = phase
	c.phaseStartWallMs = wallNow
	c.timer.Start(durationMs)
}

func secondsSince(startWallMs, nowWallMs int64) float64 {
	if startWallMs == 0 {
		return -1
	}
	return float64(nowWallMs-startWallMs) / 1000
}

// isDebouncedEvent reports whether proposed's persistence should be
// coalesced under the trailing-edge debounce window, since high-frequency
// code edits are the case this exists to debounce, as opposed to flushed
// immediately on phase transitions and terminal events.
func isDebouncedEvent(t eventlog.Type) bool {
	switch t {
	case eventlog.PrepInvariantsChanged, eventlog.CodingCodeChanged, eventlog.CodingCodeChangedInSilent:
		return true
	default:
		return false
	}
}

// onTick is the Timer's OnTick callback. It only needs to republish the
// current snapshot's remaining time; it never touches session state.
func (c *Controller) onTick(remainingMs int64) {
	go func() {
		c.mu.Lock()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		snap.RemainingMs = remainingMs
		c.bus.Publish(snap)
	}()
}

// onExpire is the Timer's OnExpire callback. It must never call back into
// the Timer synchronously: OnExpire runs on the Timer's own background
// poll goroutine, and Start/Stop block waiting for that same goroutine to
// observe a stop signal (timer.go's stopBackground). Hopping to a fresh
// goroutine here breaks that reentrancy before any Start/Stop is issued.
func (c *Controller) onExpire() {
	go c.handleExpire()
}

func (c *Controller) handleExpire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleExpireLocked()
}

// handleExpireLocked runs the timer-expiry transition chain. Callers that
// already hold c.mu (Restore, reconstructing a session whose timer has
// already run out) call this directly instead of the lock-acquiring
// handleExpire.
func (c *Controller) handleExpireLocked() {
	if c.log == nil {
		return
	}

	ctx := context.Background()
	switch c.timerPhase {
	case session.PhasePrep:
		c.dispatchInternalLocked(ctx, eventlog.NewBareEvent(eventlog.PrepTimeExpired, 0))
	case session.PhaseCoding:
		c.dispatchInternalLocked(ctx, eventlog.NewBareEvent(eventlog.CodingTimeExpired, 0))
		c.dispatchInternalLocked(ctx, eventlog.NewBareEvent(eventlog.CodingSilentStarted, 0))
	case session.PhaseSilent:
		c.dispatchInternalLocked(ctx, eventlog.NewBareEvent(eventlog.SilentTimeExpired, 0))
		c.dispatchInternalLocked(ctx, eventlog.NewBareEvent(eventlog.SilentEnded, 0))
	}
}

// dispatchInternalLocked dispatches an event synthesized by the
// Controller itself (timer expiry chains). Errors are logged, never
// returned: internally-driven transitions are always legal by
// construction, so a rejection here indicates a programming error rather
// than user input to report back.
func (c *Controller) dispatchInternalLocked(ctx context.Context, proposed eventlog.Event) {
	if _, err := c.dispatchLocked(ctx, proposed); err != nil {
		logger.ErrorContext(ctx, "internal transition rejected", "event", proposed.Type, "error", err)
	}
}

// newSessionID generates an opaque session identifier, grounded on
// google/uuid's use for run/session identifiers throughout runtime/events.
func newSessionID() string {
	return uuid.NewString()
}

// Close stops the timer and flushes any pending debounced write. If the
// active session is still in flight (not yet completed or abandoned), its
// reference is left in place; completing or abandoning it already clears
// the reference as part of dispatch, per clearActiveSessionLocked.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.timer.Stop()
	hasLog := c.log != nil
	c.mu.Unlock()
	if !hasLog {
		return nil
	}
	return c.forceFlush(ctx)
}
