// Package eventlog defines the closed event vocabulary for a session and the
// append-only log that stores it. It is the Go expression of the
// typed-event-plus-payload shape of runtime/events/types.go, narrowed from an
// open string-tagged vocabulary to the session engine's closed set.
package eventlog

// Type is the closed set of event kinds a session's log may contain.
type Type string

const (
	SessionStarted           Type = "session.started"
	PrepInvariantsChanged     Type = "prep.invariants_changed"
	PrepTimeExpired           Type = "prep.time_expired"
	CodingStarted             Type = "coding.started"
	CodingCodeChanged         Type = "coding.code_changed"
	CodingCodeChangedInSilent Type = "coding.code_changed_in_silent"
	NudgeRequested            Type = "nudge.requested"
	CodingTimeExpired         Type = "coding.time_expired"
	CodingSilentStarted       Type = "coding.silent_started"
	CodingSolutionSubmitted   Type = "coding.solution_submitted"
	SilentTimeExpired         Type = "silent.time_expired"
	SilentEnded               Type = "silent.ended"
	SummaryContinued          Type = "summary.continued"
	ReflectionSubmitted       Type = "reflection.submitted"
	SessionCompleted          Type = "session.completed"
	SessionAbandoned          Type = "session.abandoned"
	SessionPaused             Type = "session.paused"
	SessionResumed            Type = "session.resumed"
)

// ReflectionResponses is the fixed-schema payload of reflection.submitted.
type ReflectionResponses struct {
	ClearApproach       string `json:"clearApproach"`
	ProlongedStall      string `json:"prolongedStall"`
	RecoveredFromStall  string `json:"recoveredFromStall"`
	TimePressure        string `json:"timePressure"`
	WouldChangeApproach string `json:"wouldChangeApproach"`
}

// Event is one entry in a session's log. Payload is a tagged union
// expressed as parallel optional fields rather than an interface{}, so the
// log round-trips through JSON without a custom unmarshaler registry.
type Event struct {
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// Text carries the payload for prep.invariants_changed,
	// coding.code_changed, and coding.code_changed_in_silent.
	Text *string `json:"text,omitempty"`

	// ProblemID and Preset carry the payload for session.started.
	ProblemID *string `json:"problemId,omitempty"`
	Preset    *string `json:"preset,omitempty"`

	// Responses carries the payload for reflection.submitted.
	Responses *ReflectionResponses `json:"responses,omitempty"`

	// Now carries the payload for session.paused / session.resumed: the
	// clock reading at the pause boundary (redundant with Timestamp but
	// kept as a distinct field for external-interface fidelity).
	Now *int64 `json:"now,omitempty"`
}

// NewTextEvent returns an Event of type t carrying a text payload. It and
// the helper constructors below keep call sites in session/ and
// controller/ free of manual pointer-taking.
func NewTextEvent(t Type, timestamp int64, text string) Event {
	return Event{Type: t, Timestamp: timestamp, Text: &text}
}

func NewSessionStarted(timestamp int64, problemID, preset string) Event {
	return Event{Type: SessionStarted, Timestamp: timestamp, ProblemID: &problemID, Preset: &preset}
}

func NewReflectionSubmitted(timestamp int64, responses ReflectionResponses) Event {
	return Event{Type: ReflectionSubmitted, Timestamp: timestamp, Responses: &responses}
}

func NewPauseEvent(t Type, timestamp int64) Event {
	now := timestamp
	return Event{Type: t, Timestamp: timestamp, Now: &now}
}

func NewBareEvent(t Type, timestamp int64) Event {
	return Event{Type: t, Timestamp: timestamp}
}
