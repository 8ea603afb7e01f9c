// Package timer implements a drift-free, pausable countdown over a
// clock.Clock. It is the Go expression of the playback-position tracking
// found in PromptKit's synchronized media player: remaining time is always
// recomputed from absolute clock readings and an accumulated paused
// duration, never from naive wall-clock subtraction across a pause.
package timer

import (
	"sync"
	"time"

	"github.com/drillforge/core/clock"
)

// defaultPollInterval is how often the background goroutine samples the
// clock to decide whether to fire OnTick/OnExpire. It is independent of the
// ~1-second tick cadence observed by callers: a shorter poll interval keeps
// real ticks close to their one-second boundaries without busy-waiting.
const defaultPollInterval = 100 * time.Millisecond

// Timer is a countdown timer with pause/resume semantics. A zero Timer is
// not usable; construct one with New.
type Timer struct {
	clk          clock.Clock
	pollInterval time.Duration

	onTick   func(remainingMs int64)
	onExpire func()

	mu            sync.Mutex
	durationMs    int64
	startedAt     int64 // clock.Now() when Start was called
	totalPausedMs int64
	pauseStartAt  int64 // clock.Now() when the current pause began, 0 if not paused
	running       bool
	paused        bool
	expired       bool
	stopped       bool
	lastBucket    int64 // last remaining-second bucket an OnTick was emitted for

	cancel func()
	done   chan struct{}
}

// Option configures a Timer at construction time.
type Option func(*Timer)

// WithPollInterval overrides the background sampling interval. Tests use
// this to shrink the interval so goroutine teardown is fast to observe.
func WithPollInterval(d time.Duration) Option {
	return func(t *Timer) { t.pollInterval = d }
}

// New creates a Timer driven by clk. onTick and onExpire may be nil.
func New(clk clock.Clock, onTick func(int64), onExpire func(), opts ...Option) *Timer {
	t := &Timer{
		clk:          clk,
		pollInterval: defaultPollInterval,
		onTick:       onTick,
		onExpire:     onExpire,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a new countdown of durationMs, fully replacing any timer
// already in flight (no residual expiry from the previous one fires).
func (t *Timer) Start(durationMs int64) {
	t.stopBackground()

	t.mu.Lock()
	t.durationMs = durationMs
	t.startedAt = t.clk.Now()
	t.totalPausedMs = 0
	t.pauseStartAt = 0
	t.running = true
	t.paused = false
	t.expired = false
	t.stopped = false
	t.lastBucket = bucketOf(durationMs)

	done := make(chan struct{})
	ctx, cancel := newStopSignal()
	t.cancel = cancel
	t.done = done
	onTick := t.onTick
	remaining := durationMs
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}

	go t.loop(ctx, done)
}

// Stop halts the timer. Remaining becomes 0 and IsRunning becomes false;
// OnExpire is never invoked as a result of Stop.
func (t *Timer) Stop() {
	t.stopBackground()
	t.mu.Lock()
	t.running = false
	t.paused = false
	t.pauseStartAt = 0
	t.stopped = true
	t.mu.Unlock()
}

// Pause freezes the remaining time. A no-op if not running or already
// paused.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused || t.expired {
		return
	}
	t.paused = true
	t.pauseStartAt = t.clk.Now()
}

// Resume continues the countdown as if no wall-clock time had elapsed
// during the pause. A no-op if not currently paused.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.totalPausedMs += t.clk.Now() - t.pauseStartAt
	t.pauseStartAt = 0
	t.paused = false
}

// GetRemaining returns the remaining duration in milliseconds, never
// negative.
func (t *Timer) GetRemaining() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// IsRunning reports whether the timer is counting down (it becomes false
// after Stop or after expiry).
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// IsPaused reports whether the timer is currently paused.
func (t *Timer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Poll recomputes remaining time and fires OnTick/OnExpire as appropriate.
// The background goroutine calls this on every poll interval; callers that
// drive a clock.Manual directly in tests may call it to force a check
// without waiting on the goroutine.
func (t *Timer) Poll() {
	t.mu.Lock()
	if !t.running || t.paused || t.expired {
		t.mu.Unlock()
		return
	}
	remaining := t.remainingLocked()

	if remaining <= 0 {
		t.expired = true
		t.running = false
		onExpire := t.onExpire
		t.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
		return
	}

	bucket := bucketOf(remaining)
	if bucket == t.lastBucket {
		t.mu.Unlock()
		return
	}
	t.lastBucket = bucket
	onTick := t.onTick
	t.mu.Unlock()
	if onTick != nil {
		onTick(remaining)
	}
}

func (t *Timer) remainingLocked() int64 {
	if t.stopped || t.expired || !t.running {
		return 0
	}
	now := t.clk.Now()
	pausedMs := t.totalPausedMs
	if t.paused {
		pausedMs += now - t.pauseStartAt
	}
	elapsed := now - t.startedAt - pausedMs
	remaining := t.durationMs - elapsed
	if remaining < 0 {
		return 0
	}
	if remaining > t.durationMs {
		return t.durationMs
	}
	return remaining
}

// stopBackground cancels and waits for any running poll goroutine. It must
// not be called while holding t.mu: the goroutine may be blocked trying to
// acquire t.mu inside Poll, and waiting on it under the same lock would
// deadlock.
func (t *Timer) stopBackground() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *Timer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}

func newStopSignal() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(ch) })
	}
	return ch, cancel
}

func bucketOf(remainingMs int64) int64 {
	// Round up so a remaining time just under a whole second (e.g. 2999ms)
	// stays in the "3" bucket rather than "2": the first poll after Start
	// then lands in the same bucket as Start's immediate tick.
	if remainingMs <= 0 {
		return 0
	}
	return (remainingMs + 999) / 1000
}
