package controller

import (
	"context"
	"time"

	"github.com/drillforge/core/logger"
	"github.com/drillforge/core/persistence"
)

// schedulePersistLocked arranges for the current session record to reach
// the store. Code and invariants edits coalesce within a debounce window;
// every other accepted event cancels any pending debounce and flushes
// immediately, carrying along whatever edits were still waiting: if a
// phase transition or abandon occurs during the window, the pending
// persist is flushed first. Must be called with c.mu held.
func (c *Controller) schedulePersistLocked(ctx context.Context, debounced bool) {
	c.flushDirty = true

	if debounced {
		if c.pendingFlush != nil {
			return
		}
		c.pendingFlush = time.AfterFunc(c.debounce, func() { c.flushDebounced(ctx) })
		return
	}

	if c.pendingFlush != nil {
		c.pendingFlush.Stop()
		c.pendingFlush = nil
	}
	rec, ok := c.buildRecordLocked()
	c.flushDirty = false
	if ok {
		c.writeRecord(ctx, rec)
	}
}

func (c *Controller) flushDebounced(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingFlush = nil
	rec, ok := c.buildRecordLocked()
	c.flushDirty = false
	if ok {
		c.writeRecord(ctx, rec)
	}
}

func (c *Controller) buildRecordLocked() (persistence.SessionRecord, bool) {
	if c.log == nil {
		return persistence.SessionRecord{}, false
	}
	return persistence.SessionRecord{
		ID:         c.sessionID,
		Problem:    c.problemRec,
		PresetName: c.presetRec.Name,
		Events:     c.log.Snapshot(),
		CreatedAt:  c.state.SessionStartedAt,
		UpdatedAt:  c.clk.Now(),
	}, true
}

// pendingWrite is the one slot of work waiting behind an in-flight write.
// A newer call always overwrites rec in place, so the record that
// eventually runs is always the most recent one scheduled — an
// intermediate record is dropped, never an older one landing after a
// newer one. done accumulates every caller waiting on this particular
// slot so a superseded forceFlush still gets woken once the write that
// subsumed it completes.
type pendingWrite struct {
	rec  persistence.SessionRecord
	done []chan error
}

// writeRecord hands rec to the write queue before returning, so its place
// in line is fixed by the caller's order, and persists it asynchronously,
// logging (but never returning) a failure: persistence errors are
// non-fatal notifications that never roll back in-memory state.
func (c *Controller) writeRecord(ctx context.Context, rec persistence.SessionRecord) {
	done := make(chan error, 1)
	c.enqueueWrite(ctx, rec, done)
	go func() {
		if err := <-done; err != nil {
			logger.ErrorContext(ctx, "persist session failed", "session", rec.ID, "error", err)
		}
	}()
}

// enqueueWrite serializes every write for this Controller (it owns at
// most one session at a time, so per-session and per-controller
// serialization coincide) through a single background worker. Without
// this, two writes scheduled in quick succession — e.g.
// summary.continued's flush still in flight when reflection.submitted's
// session.completed flush is scheduled — could run concurrently and
// land out of order, leaving the store holding the earlier record with
// nothing left to overwrite it with the later one. Here, a write that
// arrives while another is in flight replaces whatever was queued behind
// it rather than racing it, so the record that ultimately reaches the
// store is always the most recently scheduled one. done, if non-nil,
// receives the error of whichever write (this one, or one that
// superseded it) actually executes.
func (c *Controller) enqueueWrite(ctx context.Context, rec persistence.SessionRecord, done chan error) {
	c.writeMu.Lock()
	if c.writeBusy {
		if c.writeQueued == nil {
			c.writeQueued = &pendingWrite{rec: rec}
		} else {
			c.writeQueued.rec = rec
		}
		if done != nil {
			c.writeQueued.done = append(c.writeQueued.done, done)
		}
		c.writeMu.Unlock()
		return
	}
	c.writeBusy = true
	c.writeMu.Unlock()

	var doneList []chan error
	if done != nil {
		doneList = []chan error{done}
	}
	go c.runWriteQueue(ctx, pendingWrite{rec: rec, done: doneList})
}

// runWriteQueue writes cur, then keeps draining whatever was queued behind
// it until the queue is empty, so writes for this session always execute
// one at a time and in schedule order.
func (c *Controller) runWriteQueue(ctx context.Context, cur pendingWrite) {
	for {
		err := c.writeOnce(ctx, cur.rec)
		for _, d := range cur.done {
			d <- err
		}

		c.writeMu.Lock()
		if c.writeQueued == nil {
			c.writeBusy = false
			c.writeMu.Unlock()
			return
		}
		cur = *c.writeQueued
		c.writeQueued = nil
		c.writeMu.Unlock()
	}
}

func (c *Controller) writeOnce(ctx context.Context, rec persistence.SessionRecord) error {
	start := time.Now()
	err := c.store.PutSession(ctx, &rec)
	status := "success"
	if err != nil {
		status = "error"
	}
	recordPersistWrite(status, time.Since(start).Seconds())
	return err
}

// forceFlush cancels any pending debounce and writes the current record
// synchronously, for callers (Close) that must know the write finished
// before proceeding. It is a no-op if nothing has changed since the last
// scheduled flush.
func (c *Controller) forceFlush(ctx context.Context) error {
	c.mu.Lock()
	if c.pendingFlush != nil {
		c.pendingFlush.Stop()
		c.pendingFlush = nil
	}
	if !c.flushDirty {
		c.mu.Unlock()
		return nil
	}
	rec, ok := c.buildRecordLocked()
	c.flushDirty = false
	if !ok {
		c.mu.Unlock()
		return nil
	}
	done := make(chan error, 1)
	c.enqueueWrite(ctx, rec, done)
	c.mu.Unlock()
	return <-done
}
