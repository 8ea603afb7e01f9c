package controller

import (
	"github.com/drillforge/core/preset"
	"github.com/drillforge/core/problem"
	"github.com/drillforge/core/session"
)

// Snapshot is the immutable view handed to subscribers after every
// successful dispatch and returned by every intent method. It is the
// "plain snapshot" the REDESIGN FLAGS section calls for in place of
// reactive getters: the UI holds one of these and re-renders on change
// instead of polling derived state.
type Snapshot struct {
	HasSession bool
	SessionID  string
	Problem    problem.Problem
	Preset     preset.Preset
	State      session.DerivedState

	RemainingMs  int64
	TimerRunning bool
	TimerPaused  bool
}
