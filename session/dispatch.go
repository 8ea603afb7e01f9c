package session

import "github.com/drillforge/core/eventlog"

// Result is the outcome of a single Dispatch call.
type Result struct {
	OK       bool
	Code     RejectionCode
	State    DerivedState   // state before the append, if rejected; state after, if accepted
	Appended []eventlog.Event
}

// Dispatch is the single entry point by which a proposed event becomes a
// durable entry in log, or is rejected. It follows a four-step contract:
// fold current state, validate, append (with timestamp overwritten by
// now), return the new derived state.
//
// reflection.submitted is special-cased per the phase transition table: a
// valid submission additionally synthesizes session.completed as the very
// next event, in the same Dispatch call, so the two can never be observed
// apart (testable property 3).
func Dispatch(log *eventlog.Log, nudgeBudget int, now int64, proposed eventlog.Event) Result {
	state := Fold(log.Snapshot(), nudgeBudget)

	if isTerminal(state) {
		return Result{OK: false, Code: CodeSessionComplete, State: state}
	}

	if state.Phase == PhaseNone {
		if proposed.Type != eventlog.SessionStarted {
			return Result{OK: false, Code: CodeNoSession, State: state}
		}
		return accept(log, nudgeBudget, now, state, proposed)
	}

	if proposed.Type == eventlog.SessionStarted {
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}

	if isPause, ok := isPauseIntentAccepted(state, proposed.Type); isPause {
		if !ok {
			return Result{OK: false, Code: CodeInvalidPhase, State: state}
		}
		return accept(log, nudgeBudget, now, state, proposed)
	}

	if proposed.Type == eventlog.SessionAbandoned {
		return accept(log, nudgeBudget, now, state, proposed)
	}

	switch state.Phase {
	case PhasePrep:
		return dispatchPrep(log, nudgeBudget, now, state, proposed)
	case PhaseCoding:
		return dispatchCoding(log, nudgeBudget, now, state, proposed)
	case PhaseSilent:
		return dispatchSilent(log, nudgeBudget, now, state, proposed)
	case PhaseSummary:
		return dispatchSummary(log, nudgeBudget, now, state, proposed)
	case PhaseReflection:
		return dispatchReflection(log, nudgeBudget, now, state, proposed)
	default:
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
}

func isTerminal(state DerivedState) bool {
	return state.Phase == PhaseDone || state.Status == StatusAbandoned
}

// isPauseIntentAccepted handles session.paused/session.resumed, which are
// legal from any non-terminal phase (already excluded by the caller).
// isPause reports whether t was one of these two event types at all; ok is
// only meaningful when isPause is true.
func isPauseIntentAccepted(state DerivedState, t eventlog.Type) (isPause, ok bool) {
	switch t {
	case eventlog.SessionPaused:
		return true, !state.Paused
	case eventlog.SessionResumed:
		return true, state.Paused
	default:
		return false, false
	}
}

func dispatchPrep(log *eventlog.Log, nudgeBudget int, now int64, state DerivedState, proposed eventlog.Event) Result {
	switch proposed.Type {
	case eventlog.PrepInvariantsChanged, eventlog.PrepTimeExpired, eventlog.CodingStarted:
		return accept(log, nudgeBudget, now, state, proposed)
	default:
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
}

func dispatchCoding(log *eventlog.Log, nudgeBudget int, now int64, state DerivedState, proposed eventlog.Event) Result {
	switch proposed.Type {
	case eventlog.CodingCodeChanged, eventlog.CodingTimeExpired, eventlog.CodingSilentStarted, eventlog.CodingSolutionSubmitted:
		return accept(log, nudgeBudget, now, state, proposed)
	case eventlog.NudgeRequested:
		if state.NudgesUsed >= state.NudgesAllowed {
			return Result{OK: false, Code: CodeNudgeBudgetExhausted, State: state}
		}
		return accept(log, nudgeBudget, now, state, proposed)
	default:
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
}

func dispatchSilent(log *eventlog.Log, nudgeBudget int, now int64, state DerivedState, proposed eventlog.Event) Result {
	switch proposed.Type {
	case eventlog.CodingCodeChangedInSilent, eventlog.SilentTimeExpired, eventlog.SilentEnded:
		return accept(log, nudgeBudget, now, state, proposed)
	default:
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
}

func dispatchSummary(log *eventlog.Log, nudgeBudget int, now int64, state DerivedState, proposed eventlog.Event) Result {
	switch proposed.Type {
	case eventlog.SummaryContinued:
		return accept(log, nudgeBudget, now, state, proposed)
	default:
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
}

func dispatchReflection(log *eventlog.Log, nudgeBudget int, now int64, state DerivedState, proposed eventlog.Event) Result {
	if proposed.Type != eventlog.ReflectionSubmitted {
		return Result{OK: false, Code: CodeInvalidPhase, State: state}
	}
	if proposed.Responses == nil || !ValidateReflection(*proposed.Responses) {
		return Result{OK: false, Code: CodeInvalidReflection, State: state}
	}

	proposed.Timestamp = now
	log.Append(proposed)
	completed := eventlog.NewBareEvent(eventlog.SessionCompleted, now)
	log.Append(completed)

	newState := Fold(log.Snapshot(), nudgeBudget)
	return Result{OK: true, State: newState, Appended: []eventlog.Event{proposed, completed}}
}

func accept(log *eventlog.Log, nudgeBudget int, now int64, _ DerivedState, proposed eventlog.Event) Result {
	proposed.Timestamp = now
	log.Append(proposed)
	newState := Fold(log.Snapshot(), nudgeBudget)
	return Result{OK: true, State: newState, Appended: []eventlog.Event{proposed}}
}

// ValidateReflection checks the fixed schema and cross-field rule for a
// reflection response.
func ValidateReflection(r eventlog.ReflectionResponses) bool {
	if !oneOf(r.ClearApproach, "yes", "partially", "no") {
		return false
	}
	if !oneOf(r.ProlongedStall, "yes", "no") {
		return false
	}
	if !oneOf(r.RecoveredFromStall, "yes", "partially", "no", "n/a") {
		return false
	}
	if !oneOf(r.TimePressure, "comfortable", "manageable", "overwhelming") {
		return false
	}
	if !oneOf(r.WouldChangeApproach, "yes", "no") {
		return false
	}
	if (r.RecoveredFromStall == "n/a") != (r.ProlongedStall == "no") {
		return false
	}
	return true
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
