package timer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/drillforge/core/clock"
	"github.com/drillforge/core/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestTimer(mc *clock.Manual) (*timer.Timer, *tickRecorder) {
	rec := &tickRecorder{}
	tm := timer.New(mc, rec.onTick, rec.onExpire, timer.WithPollInterval(5*time.Millisecond))
	return tm, rec
}

type tickRecorder struct {
	mu      sync.Mutex
	ticks   []int64
	expired int
}

func (r *tickRecorder) onTick(remaining int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *tickRecorder) onExpire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *tickRecorder) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired
}

func TestTimer_StartEmitsImmediateTick(t *testing.T) {
	mc := clock.NewManual(0)
	tm, rec := newTestTimer(mc)
	tm.Start(5000)
	defer tm.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.ticks, 1)
	assert.Equal(t, int64(5000), rec.ticks[0])
}

func TestTimer_PollDrivesExpiry(t *testing.T) {
	mc := clock.NewManual(0)
	tm, rec := newTestTimer(mc)
	tm.Start(1000)
	defer tm.Stop()

	mc.Advance(1000 * time.Millisecond)
	tm.Poll()

	assert.Equal(t, int64(0), tm.GetRemaining())
	assert.False(t, tm.IsRunning())
	assert.Equal(t, 1, rec.expiredCount())
}

func TestTimer_StopPreventsExpiry(t *testing.T) {
	mc := clock.NewManual(0)
	tm, rec := newTestTimer(mc)
	tm.Start(1000)

	mc.Advance(2 * time.Second)
	tm.Stop()
	tm.Poll() // no-op once stopped

	assert.Equal(t, int64(0), tm.GetRemaining())
	assert.False(t, tm.IsRunning())
	assert.Equal(t, 0, rec.expiredCount())
}

func TestTimer_PauseFreezesRemaining(t *testing.T) {
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	tm.Start(10_000)
	defer tm.Stop()

	mc.Advance(1 * time.Second)
	tm.Pause()
	before := tm.GetRemaining()

	mc.Advance(5 * time.Second) // wall-clock moves, timer must not
	after := tm.GetRemaining()

	assert.Equal(t, before, after)
	assert.True(t, tm.IsPaused())
}

func TestTimer_ResumeContinuesWithoutDrift(t *testing.T) {
	// Budget 1500s, advance 100s, pause, advance 500s of wall time, resume,
	// advance 100s more. Remaining must be 1500-200=1300s.
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	tm.Start(1500_000)
	defer tm.Stop()

	mc.Advance(100 * time.Second)
	tm.Pause()
	mc.Advance(500 * time.Second)
	tm.Resume()
	mc.Advance(100 * time.Second)

	assert.Equal(t, int64(1300_000), tm.GetRemaining())
}

func TestTimer_PauseIdempotent(t *testing.T) {
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	tm.Start(1000)
	defer tm.Stop()

	tm.Pause()
	r1 := tm.GetRemaining()
	tm.Pause() // second pause is a no-op
	mc.Advance(10 * time.Millisecond)
	r2 := tm.GetRemaining()
	assert.Equal(t, r1, r2)
}

func TestTimer_ResumeWithoutPauseIsNoop(t *testing.T) {
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	tm.Start(1000)
	defer tm.Stop()

	tm.Resume() // never paused
	assert.False(t, tm.IsPaused())
	assert.True(t, tm.IsRunning())
}

func TestTimer_StartReplacesPreviousTimerWithoutResidualExpiry(t *testing.T) {
	mc := clock.NewManual(0)
	tm, rec := newTestTimer(mc)
	tm.Start(500)
	defer tm.Stop()

	mc.Advance(400 * time.Millisecond)
	tm.Start(10_000) // replaces before the first would have expired
	mc.Advance(600 * time.Millisecond)
	tm.Poll()

	assert.Equal(t, 0, rec.expiredCount())
	assert.True(t, tm.IsRunning())
}

func TestTimer_RemainingNeverNegative(t *testing.T) {
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	tm.Start(100)
	defer tm.Stop()

	mc.Advance(10 * time.Second)
	assert.Equal(t, int64(0), tm.GetRemaining())
}

func TestTimer_GoroutineTornDownOnStop(t *testing.T) {
	// goleak.VerifyTestMain already checks process-wide leaks; this test
	// exercises the Start/Stop/Start cycle that must not accumulate
	// goroutines.
	mc := clock.NewManual(0)
	tm, _ := newTestTimer(mc)
	for i := 0; i < 5; i++ {
		tm.Start(1000)
		tm.Stop()
	}
}
