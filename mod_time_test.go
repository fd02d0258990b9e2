package subd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceClampsStep(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := &Time{Now: start}

	advance(clock, start.Add(16*time.Millisecond), DefaultMaxStep)
	assert.Equal(t, 16*time.Millisecond, clock.Dt)

	advance(clock, clock.Now.Add(time.Hour), DefaultMaxStep)
	assert.Equal(t, DefaultMaxStep, clock.Dt, "a stall moves the camera by one bounded step")

	advance(clock, clock.Now.Add(-time.Second), DefaultMaxStep)
	assert.Zero(t, clock.Dt, "the clock never runs backwards")
	assert.Equal(t, 16*time.Millisecond+DefaultMaxStep, clock.Elapsed)
}

func TestTimeModuleAdvancesEachFrame(t *testing.T) {
	app := NewAppBuilder().UseModule(TimeModule{MaxStep: time.Millisecond}).Build()
	clock, ok := Resource[Time](app)
	require.True(t, ok)
	clock.Now = clock.Now.Add(-time.Minute)

	app.Step()
	assert.Equal(t, time.Millisecond, clock.Dt)
	assert.Equal(t, time.Millisecond, clock.Elapsed)
}
