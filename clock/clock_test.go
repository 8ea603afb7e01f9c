package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drillforge/core/clock"
)

func TestReal_Now(t *testing.T) {
	c := clock.NewReal()
	before := time.Now().UnixMilli()
	got := c.Now()
	after := time.Now().UnixMilli()
	require.GreaterOrEqual(t, got, before)
	require.LessOrEqual(t, got, after)
}

func TestManual_AdvanceAndSet(t *testing.T) {
	m := clock.NewManual(1000)
	assert.Equal(t, int64(1000), m.Now())

	m.Advance(500 * time.Millisecond)
	assert.Equal(t, int64(1500), m.Now())

	m.Advance(-1 * time.Second)
	assert.Equal(t, int64(1500), m.Now(), "negative deltas are no-ops")

	m.Set(42)
	assert.Equal(t, int64(42), m.Now())
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	m := clock.NewManual(0)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			m.Advance(time.Millisecond)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}
	assert.Equal(t, int64(50), m.Now())
}
