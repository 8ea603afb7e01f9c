// Package persistence is the Persistence Adapter: a durable
// key/value-like store with two namespaces ("sessions" and "audio"),
// idempotent operations, soft delete, and content-addressed audio blobs.
// The interface shape is grounded on runtime/statestore/interface.go
// (Store, ListOptions, sentinel errors); the in-memory implementation on
// runtime/statestore/memory.go; the file-backed implementation on
// runtime/events/store.go and runtime/events/blob_store.go.
package persistence

import (
	"context"
	"errors"

	"github.com/drillforge/core/eventlog"
	"github.com/drillforge/core/problem"
)

// ErrNotFound is returned when a requested session or audio record does
// not exist (or has been soft-deleted, for session lookups).
var ErrNotFound = errors.New("persistence: not found")

// SessionRecord is the durable form of a session: problem, preset, and the
// full event log, plus bookkeeping timestamps. It is the logical JSON form
// persisted by every Store implementation.
type SessionRecord struct {
	ID         string            `json:"id"`
	Problem    problem.Problem   `json:"problem"`
	PresetName string            `json:"preset"`
	Events     []eventlog.Event  `json:"events"`
	CreatedAt  int64             `json:"createdAt"`
	UpdatedAt  int64             `json:"updatedAt"`
	DeletedAt  *int64            `json:"deletedAt,omitempty"`
}

// Clone returns a deep copy, so callers mutating a returned record never
// affect the store's own copy (mirrors runtime/statestore/memory.go's
// deepCopyState discipline).
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Events = make([]eventlog.Event, len(r.Events))
	copy(cp.Events, r.Events)
	for i := range cp.Events {
		e := &cp.Events[i]
		e.Text = clonePtr(e.Text)
		e.ProblemID = clonePtr(e.ProblemID)
		e.Preset = clonePtr(e.Preset)
		e.Responses = clonePtr(e.Responses)
		e.Now = clonePtr(e.Now)
	}
	if r.DeletedAt != nil {
		d := *r.DeletedAt
		cp.DeletedAt = &d
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AudioRecord holds the opaque audio chunks recorded for one session. The
// core never interprets chunk contents; it only tracks existence/count.
type AudioRecord struct {
	SessionID string   `json:"sessionId"`
	MimeType  string   `json:"mimeType"`
	Chunks    [][]byte `json:"chunks"`
}

// Stats is the result of Store.Stats.
type Stats struct {
	SessionCount int
	AudioCount   int
}

// Store is the Persistence Adapter contract. Every operation is idempotent
// and independently durable: a crash between two calls must leave the
// store in a state where the first call's effect is visible and the
// second's is simply absent.
type Store interface {
	// PutSession upserts a session record by ID.
	PutSession(ctx context.Context, record *SessionRecord) error

	// GetSession returns the record for id, or ErrNotFound.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// GetAllSessions returns all non-soft-deleted records ordered by
	// UpdatedAt descending.
	GetAllSessions(ctx context.Context) ([]*SessionRecord, error)

	// SoftDeleteSession sets DeletedAt on the record, excluding it from
	// GetAllSessions and GetIncompleteSession.
	SoftDeleteSession(ctx context.Context, id string) error

	// GetIncompleteSession returns the most recently updated non-deleted
	// record whose log has not reached session.completed or
	// session.abandoned, or ErrNotFound if there is none.
	GetIncompleteSession(ctx context.Context) (*SessionRecord, error)

	// SaveAudioChunk appends blob to the audio record for sessionID,
	// creating the record if absent.
	SaveAudioChunk(ctx context.Context, sessionID string, blob []byte, mimeType string) error

	// GetAudio returns the audio record for sessionID, or ErrNotFound.
	GetAudio(ctx context.Context, sessionID string) (*AudioRecord, error)

	// DeleteAudio removes the audio record for sessionID. Idempotent: no
	// error if it does not exist.
	DeleteAudio(ctx context.Context, sessionID string) error

	// Stats summarizes the store's contents.
	Stats(ctx context.Context) (Stats, error)

	// ClearAll removes every session and audio record.
	ClearAll(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// IsIncomplete reports whether a session record's log has not yet reached
// a terminal event (session.completed or session.abandoned). Shared by both
// Store implementations' GetIncompleteSession.
func IsIncomplete(record *SessionRecord) bool {
	for _, e := range record.Events {
		if e.Type == eventlog.SessionCompleted || e.Type == eventlog.SessionAbandoned {
			return false
		}
	}
	return true
}
