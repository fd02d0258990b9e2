package subd

import (
	"time"
)

// DefaultMaxStep bounds Dt so a stalled frame (window drag, breakpoint) does
// not fling the camera across the terrain.
const DefaultMaxStep = 100 * time.Millisecond

// Time is the wall clock seen by per-frame systems such as camera movement.
type Time struct {
	Now     time.Time
	Dt      time.Duration
	Elapsed time.Duration
}

// TimeModule advances Time at the start of every frame.
type TimeModule struct {
	// MaxStep caps Dt. Zero means DefaultMaxStep.
	MaxStep time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	maxStep := mod.MaxStep
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	cmd.AddResources(&Time{Now: time.Now()})
	cmd.UseSystem(System(func(t *Time) {
		advance(t, time.Now(), maxStep)
	}).InStage(Prelude))
}

func advance(t *Time, now time.Time, maxStep time.Duration) {
	t.Dt = min(max(now.Sub(t.Now), 0), maxStep)
	t.Elapsed += t.Dt
	t.Now = now
}
