package eventlog

import "sync"

// Log is an ordered, append-only sequence of Events belonging to one
// session. It never rewrites a caller-supplied timestamp and never mutates
// or removes an appended event — invariant 1 in the data model.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// FromEvents returns a Log pre-populated with events, in order. Used when
// restoring a session from storage.
func FromEvents(events []Event) *Log {
	cp := make([]Event, len(events))
	copy(cp, events)
	return &Log{events: cp}
}

// Append adds event to the end of the log.
func (l *Log) Append(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Snapshot returns a copy of the log's current contents, in insertion
// order. Callers must not rely on mutating the returned slice to affect the
// log.
func (l *Log) Snapshot() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]Event, len(l.events))
	copy(cp, l.events)
	return cp
}

// Len returns the number of events currently in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Last returns the most recent event and true, or the zero Event and false
// if the log is empty.
func (l *Log) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}
