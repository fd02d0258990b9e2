package app

import (
	"testing"

	"github.com/gekko3d/subd"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyToggles(t *testing.T) {
	cfg := core.DefaultAppConfig()
	frame := &subd.FrameContext{}

	Apply(ActionFreeze, &cfg, frame)
	assert.True(t, cfg.FreezeSubdivision)
	Apply(ActionFreeze, &cfg, frame)
	assert.False(t, cfg.FreezeSubdivision)

	Apply(ActionCulling, &cfg, frame)
	assert.False(t, cfg.EnableCulling)

	for i := 0; i < int(core.NumShadingModes); i++ {
		Apply(ActionShading, &cfg, frame)
	}
	assert.Equal(t, core.ShadingDiffuse, cfg.Shading, "shading cycles back")

	Apply(ActionFill, &cfg, frame)
	assert.Equal(t, core.FillWireframe, cfg.Fill)
	Apply(ActionCull, &cfg, frame)
	assert.Equal(t, core.CullBack, cfg.Cull)
	require.NoError(t, cfg.Validate())
}

func TestApplyDepthBounds(t *testing.T) {
	cfg := core.DefaultAppConfig()
	frame := &subd.FrameContext{}
	cfg.MaxDepth = core.MaxSupportedDepth
	Apply(ActionDeeper, &cfg, frame)
	assert.Equal(t, uint32(core.MaxSupportedDepth), cfg.MaxDepth)

	cfg.MaxDepth = core.MinDepth
	Apply(ActionShallower, &cfg, frame)
	assert.Equal(t, uint32(core.MinDepth), cfg.MaxDepth)

	cfg.TargetPixelSize = 0.25
	Apply(ActionFiner, &cfg, frame)
	assert.Equal(t, float32(0.25), cfg.TargetPixelSize)
	Apply(ActionCoarser, &cfg, frame)
	assert.Equal(t, float32(0.5), cfg.TargetPixelSize)
}

func TestControlsQueue(t *testing.T) {
	c := &Controls{}
	c.Queue(ActionNone)
	c.Queue(ActionReset)
	c.Queue(ActionFill)
	assert.Equal(t, []Action{ActionReset, ActionFill}, c.Drain())
	assert.Empty(t, c.Drain())
}

func TestFly(t *testing.T) {
	cam := core.NewCameraState()
	start := cam.Position
	c := &Controls{Move: mgl32.Vec3{0, 0, 1}}

	Fly(cam, c, 0)
	assert.Equal(t, start, cam.Position, "no time, no motion")

	Fly(cam, c, 0.5)
	moved := cam.Position.Sub(start)
	assert.InDelta(t, cam.Speed*0.5, moved.Len(), 1e-5)
	assert.Greater(t, moved.Dot(cam.GetForward()), float32(0))

	yaw := cam.Yaw
	c.Look = mgl32.Vec2{100, 0}
	Fly(cam, c, 0.1)
	assert.Equal(t, yaw, cam.Yaw, "look ignored while the cursor is free")
	assert.Equal(t, mgl32.Vec2{}, c.Look)

	c.Captured = true
	c.Look = mgl32.Vec2{0, -1e6}
	Fly(cam, c, 0.1)
	assert.LessOrEqual(t, cam.Pitch, float32(pitchLimit))
}

func TestInputModule(t *testing.T) {
	dev := &countingDevice{}
	app := subd.NewAppBuilder().
		UseModule(subd.TimeModule{}).
		UseModule(subd.SubdivisionModule{Width: 64, Height: 64}).
		UseModule(InputModule{}).
		Build()
	app.Commands().AddResources(&subd.Renderer{Device: dev})
	assert.Equal(t, "Input", app.Stages()[0])

	c, ok := subd.Resource[Controls](app)
	require.True(t, ok)
	cfg, _ := subd.Resource[core.AppConfig](app)

	app.RunFrames(1)
	c.Queue(ActionReset)
	c.Queue(ActionOnlyRender)
	app.RunFrames(1)
	assert.True(t, cfg.OnlyRender)
	assert.Equal(t, 2, dev.resets)
	assert.Equal(t, 1, dev.subdivides, "the second frame only renders")
}

type countingDevice struct {
	resets     int
	subdivides int
}

func (d *countingDevice) Label() string                       { return "counting" }
func (d *countingDevice) Reset([]core.PatchKey) error         { d.resets++; return nil }
func (d *countingDevice) BeginFrame(*core.KernelConfig) error { return nil }
func (d *countingDevice) Subdivide(uint32)                    { d.subdivides++ }
func (d *countingDevice) GenerateArgs()                       {}
func (d *countingDevice) Barrier()                            {}
func (d *countingDevice) Draw()                               {}
func (d *countingDevice) EndFrame() error                     { return nil }
func (d *countingDevice) Release()                            {}

func TestWindowTitleUsesHostState(t *testing.T) {
	cfg := core.DefaultAppConfig()
	frame := &subd.FrameContext{Generation: 3}
	title := windowTitle(59.6, gpu.Stats{Submitted: 42}, &cfg, frame)
	assert.Contains(t, title, "60 fps")
	assert.Contains(t, title, "gen 3")
	assert.Contains(t, title, "submits 42")
}
