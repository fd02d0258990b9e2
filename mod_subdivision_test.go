package subd

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Device = (*kernel.Device)(nil)

type recordingDevice struct {
	calls    []string
	resetErr error
	cfg      core.KernelConfig
}

func (d *recordingDevice) Label() string { return "recording" }
func (d *recordingDevice) Reset(roots []core.PatchKey) error {
	d.calls = append(d.calls, fmt.Sprintf("reset(%d)", len(roots)))
	return d.resetErr
}
func (d *recordingDevice) BeginFrame(cfg *core.KernelConfig) error {
	d.cfg = *cfg
	d.calls = append(d.calls, "begin")
	return nil
}
func (d *recordingDevice) Subdivide(parity uint32) {
	d.calls = append(d.calls, fmt.Sprintf("subdivide(%d)", parity))
}
func (d *recordingDevice) GenerateArgs()   { d.calls = append(d.calls, "args") }
func (d *recordingDevice) Barrier()        { d.calls = append(d.calls, "barrier") }
func (d *recordingDevice) Draw()           { d.calls = append(d.calls, "draw") }
func (d *recordingDevice) EndFrame() error { d.calls = append(d.calls, "end"); return nil }
func (d *recordingDevice) Release()        {}

func (d *recordingDevice) take() []string {
	c := d.calls
	d.calls = nil
	return c
}

func newDriver(t *testing.T, dev Device, cfg *core.AppConfig) (*App, *FrameContext) {
	t.Helper()
	app := NewAppBuilder().
		UseModule(SubdivisionModule{Config: cfg, Width: 64, Height: 64}).
		Build()
	app.addResources(&Renderer{Device: dev})
	frame, ok := Resource[FrameContext](app)
	require.True(t, ok)
	return app, frame
}

func TestFrameDriverCommandOrder(t *testing.T) {
	dev := &recordingDevice{}
	cfg := core.DefaultAppConfig()
	app, frame := newDriver(t, dev, &cfg)

	app.Step()
	assert.Equal(t, []string{"reset(4)", "begin", "subdivide(0)", "args", "barrier", "draw", "end"}, dev.take())
	assert.Equal(t, uint64(1), frame.Generation)

	app.Step()
	assert.Equal(t, []string{"begin", "subdivide(1)", "args", "barrier", "draw", "end"}, dev.take())
	assert.Equal(t, uint32(1), frame.Source())
	assert.Equal(t, uint32(0), frame.Destination())

	app.Step()
	assert.Equal(t, []string{"begin", "subdivide(0)", "args", "barrier", "draw", "end"}, dev.take())
	assert.Equal(t, uint64(3), frame.Generation)
	assert.Equal(t, 3, app.Profiler().Counts["generation"])
}

func TestFrameDriverOnlyRender(t *testing.T) {
	dev := &recordingDevice{}
	cfg := core.DefaultAppConfig()
	app, frame := newDriver(t, dev, &cfg)
	app.RunFrames(3)
	dev.take()

	cfg.OnlyRender = true
	app.RunFrames(2)
	assert.Equal(t, []string{"begin", "barrier", "draw", "end", "begin", "barrier", "draw", "end"}, dev.take())
	assert.Equal(t, uint64(3), frame.Generation, "render-only frames do not advance the generation")

	cfg.OnlyRender = false
	app.Step()
	assert.Equal(t, []string{"begin", "subdivide(1)", "args", "barrier", "draw", "end"}, dev.take(),
		"subdivision resumes from the buffer the last step wrote")
}

func TestFrameDriverResets(t *testing.T) {
	dev := &recordingDevice{}
	cfg := core.DefaultAppConfig()
	app, frame := newDriver(t, dev, &cfg)
	app.RunFrames(3)
	dev.take()

	cfg.MaxDepth = 10
	app.Step()
	calls := dev.take()
	assert.Equal(t, []string{"reset(4)", "begin", "subdivide(0)"}, calls[:3])
	assert.Equal(t, uint64(1), frame.Generation)
	assert.Equal(t, uint32(10), dev.cfg.MaxDepth)

	app.Step()
	assert.NotContains(t, dev.take(), "reset(4)")

	frame.RequestReset()
	app.Step()
	assert.Equal(t, "reset(4)", dev.take()[0])
}

func TestFrameDriverKeepsCapacity(t *testing.T) {
	dev := &recordingDevice{}
	cfg := core.DefaultAppConfig()
	app, frame := newDriver(t, dev, &cfg)
	app.RunFrames(2)
	dev.take()
	want := cfg.Capacity

	cfg.Capacity = want * 2
	app.Step()
	assert.NotContains(t, dev.take(), "reset(4)", "a capacity change does not re-seed")
	assert.Equal(t, want, cfg.Capacity)
	assert.Equal(t, want, dev.cfg.Capacity)
	assert.Equal(t, uint64(3), frame.Generation)
}

func TestFrameDriverRejectsInvalidConfig(t *testing.T) {
	dev := &recordingDevice{}
	cfg := core.DefaultAppConfig()
	app, _ := newDriver(t, dev, &cfg)
	app.Step()

	cfg.MaxDepth = core.MaxSupportedDepth + 5
	cfg.TargetPixelSize = 7
	app.Step()
	assert.Equal(t, core.DefaultAppConfig().MaxDepth, cfg.MaxDepth, "invalid configuration is rolled back")
	assert.Equal(t, float32(5), dev.cfg.TargetPixelSize)
}

func TestFrameDriverStopsOnResetFailure(t *testing.T) {
	dev := &recordingDevice{resetErr: errors.New("no memory")}
	app, _ := newDriver(t, dev, nil)
	app.Run()
	assert.True(t, app.Stopped())
	assert.Equal(t, []string{"reset(4)"}, dev.take())
}

func TestFrameDriverWithSoftwareDevice(t *testing.T) {
	dev, err := kernel.NewDevice(core.NewFlatHeightField(), kernel.Options{Capacity: 1024, Width: 64, Height: 64})
	require.NoError(t, err)
	t.Cleanup(dev.Release)

	cfg := core.DefaultAppConfig()
	cfg.TargetPixelSize = 1e9
	cfg.EnableCulling = false
	app, frame := newDriver(t, dev, &cfg)

	sorted := func(keys []core.PatchKey) []core.PatchKey {
		out := slices.Clone(keys)
		slices.SortFunc(out, func(a, b core.PatchKey) int {
			if a.Root != b.Root {
				return int(a.Root) - int(b.Root)
			}
			return int(a.Heap) - int(b.Heap)
		})
		return out
	}
	roots := sorted(core.RootKeys())

	for i := 1; i <= 5; i++ {
		app.Step()
		require.Equal(t, uint64(i), frame.Generation)
		s := dev.Snapshot(uint32(frame.Generation & 1))
		assert.Equal(t, roots, sorted(s.Active), "frame %d", i)
		assert.Equal(t, roots, sorted(s.Culled), "frame %d", i)
		assert.Equal(t, uint32(4), s.Draw[core.FillSolid].InstanceCount)
	}

	// Refining until it settles never exceeds the depth bound.
	cfg.TargetPixelSize = 1e-6
	cfg.MaxDepth = 6
	app.RunFrames(10)
	s := dev.Snapshot(uint32(frame.Generation & 1))
	assert.Len(t, s.Active, core.RootTriangles<<6)
	for _, k := range s.Active {
		assert.LessOrEqual(t, k.Depth(), uint32(6))
	}
}
