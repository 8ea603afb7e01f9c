// Package session implements the Session State Machine: a reducer
// that folds an ordered event log into derived state, and a dispatcher that
// validates proposed events against that state before appending them.
// PromptKit's own "session" package models LLM conversations, not a phase
// state machine, so this package has no direct name-level counterpart there;
// it is instead grounded on the reducer idiom used throughout
// runtime/statestore (derive a struct from persisted data) and the
// sentinel-error package shape of runtime/persistence/errors.go.
package session

import "github.com/drillforge/core/eventlog"

// Phase is one stage of a session's fixed lifecycle.
type Phase string

const (
	// PhaseNone represents "no session created yet" — the state before the
	// first session.started event. It is not one of the six named lifecycle
	// phases; it exists only so Fold has a value to return for an empty log.
	PhaseNone       Phase = ""
	PhasePrep       Phase = "PREP"
	PhaseCoding     Phase = "CODING"
	PhaseSilent     Phase = "SILENT"
	PhaseSummary    Phase = "SUMMARY"
	PhaseReflection Phase = "REFLECTION"
	PhaseDone       Phase = "DONE"
)

// Status is the coarse lifecycle status of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// DerivedState is the pure function of a session's event log (and its
// preset) that every other component observes. It is never persisted
// independently of the log it was folded from.
type DerivedState struct {
	Phase  Phase
	Status Status

	ProblemID  string
	PresetName string

	Invariants string
	Code       string

	NudgesUsed           int
	NudgesAllowed        int
	NudgesRemaining      int
	NudgesAllowedInPhase bool

	PrepTimeUsed    int64
	PrepTimeExpired bool

	CodeChangesInSilent int
	CodeChangedInSilent bool

	Reflection *eventlog.ReflectionResponses

	SilentStartedAt *int64

	SessionStartedAt int64
	PhaseStartedAt   int64

	Paused         bool
	TotalPausedMs  int64
	PauseStartedAt int64

	// AudioSupported and AudioPermissionDenied are not derived from the
	// event log at all — they are owned and set directly by the Controller
	// as it talks to the (out-of-scope) audio recorder, and merely carried
	// here because derived state is the conventional home for them as two
	// boolean flags. Fold never touches them; callers that want them
	// populated overlay them onto the value Fold returns.
	AudioSupported        bool
	AudioPermissionDenied bool
}

// HasSession reports whether a session.started event has been folded yet.
func (s DerivedState) HasSession() bool {
	return s.Phase != PhaseNone
}

// Fold computes derived state by replaying events in order against
// nudgeBudget (the active session's preset nudge allowance). Folding the
// same log twice yields identical results (testable property 1): Fold has
// no side effects and depends only on its arguments.
func Fold(events []eventlog.Event, nudgeBudget int) DerivedState {
	state := DerivedState{Phase: PhaseNone, Status: StatusIdle, NudgesAllowed: nudgeBudget}

	for _, e := range events {
		switch e.Type {
		case eventlog.SessionStarted:
			state.Phase = PhasePrep
			state.Status = StatusInProgress
			state.SessionStartedAt = e.Timestamp
			state.PhaseStartedAt = e.Timestamp
			if e.ProblemID != nil {
				state.ProblemID = *e.ProblemID
			}
			if e.Preset != nil {
				state.PresetName = *e.Preset
			}

		case eventlog.PrepInvariantsChanged:
			if e.Text != nil {
				state.Invariants = *e.Text
			}

		case eventlog.PrepTimeExpired:
			state.PrepTimeExpired = true

		case eventlog.CodingStarted:
			state.PrepTimeUsed = e.Timestamp - state.SessionStartedAt - state.TotalPausedMs
			state.Phase = PhaseCoding
			state.PhaseStartedAt = e.Timestamp

		case eventlog.CodingCodeChanged:
			if e.Text != nil {
				state.Code = *e.Text
			}

		case eventlog.CodingCodeChangedInSilent:
			if e.Text != nil {
				state.Code = *e.Text
			}
			state.CodeChangesInSilent++
			state.CodeChangedInSilent = true

		case eventlog.NudgeRequested:
			state.NudgesUsed++

		case eventlog.CodingTimeExpired:
			// Marks no derived-state change by itself; the Controller
			// follows it with coding.silent_started.

		case eventlog.CodingSilentStarted:
			ts := e.Timestamp
			state.SilentStartedAt = &ts
			state.Phase = PhaseSilent
			state.PhaseStartedAt = e.Timestamp

		case eventlog.CodingSolutionSubmitted:
			state.Phase = PhaseSummary
			state.PhaseStartedAt = e.Timestamp

		case eventlog.SilentTimeExpired:
			// Followed by silent.ended.

		case eventlog.SilentEnded:
			state.Phase = PhaseSummary
			state.PhaseStartedAt = e.Timestamp

		case eventlog.SummaryContinued:
			state.Phase = PhaseReflection
			state.PhaseStartedAt = e.Timestamp

		case eventlog.ReflectionSubmitted:
			if e.Responses != nil {
				r := *e.Responses
				state.Reflection = &r
			}

		case eventlog.SessionCompleted:
			state.Phase = PhaseDone
			state.Status = StatusCompleted
			state.PhaseStartedAt = e.Timestamp

		case eventlog.SessionAbandoned:
			state.Status = StatusAbandoned

		case eventlog.SessionPaused:
			state.Paused = true
			state.PauseStartedAt = e.Timestamp

		case eventlog.SessionResumed:
			state.TotalPausedMs += e.Timestamp - state.PauseStartedAt
			state.Paused = false
			state.PauseStartedAt = 0
		}
	}

	state.NudgesAllowed = nudgeBudget
	state.NudgesRemaining = state.NudgesAllowed - state.NudgesUsed
	state.NudgesAllowedInPhase = state.Phase == PhaseCoding

	return state
}
