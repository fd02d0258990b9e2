package app

import (
	"math"

	"github.com/gekko3d/subd"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Action is a discrete toggle bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionReset
	ActionFreeze
	ActionOnlyRender
	ActionCulling
	ActionDisplace
	ActionShading
	ActionFill
	ActionCull
	ActionDeeper
	ActionShallower
	ActionFiner
	ActionCoarser
)

var actionNames = map[Action]string{
	ActionReset:      "reset",
	ActionFreeze:     "freeze",
	ActionOnlyRender: "only render",
	ActionCulling:    "culling",
	ActionDisplace:   "displace",
	ActionShading:    "shading",
	ActionFill:       "fill",
	ActionCull:       "cull",
	ActionDeeper:     "max depth +",
	ActionShallower:  "max depth -",
	ActionFiner:      "pixel size -",
	ActionCoarser:    "pixel size +",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "none"
}

// Controls accumulates window input between frames. Callbacks write it and
// the input system drains it once per frame.
type Controls struct {
	// Move is right, up and forward in [-1, 1].
	Move     mgl32.Vec3
	Look     mgl32.Vec2
	Captured bool
	Boost    bool

	pending []Action
}

func (c *Controls) Queue(a Action) {
	if a != ActionNone {
		c.pending = append(c.pending, a)
	}
}

// Drain returns the queued actions and clears the queue.
func (c *Controls) Drain() []Action {
	out := c.pending
	c.pending = nil
	return out
}

// Apply changes cfg for one action. Resets go through frame so the driver
// re-seeds the patch buffers before the next kernel step.
func Apply(a Action, cfg *core.AppConfig, frame *subd.FrameContext) {
	switch a {
	case ActionReset:
		frame.RequestReset()
	case ActionFreeze:
		cfg.FreezeSubdivision = !cfg.FreezeSubdivision
	case ActionOnlyRender:
		cfg.OnlyRender = !cfg.OnlyRender
	case ActionCulling:
		cfg.EnableCulling = !cfg.EnableCulling
	case ActionDisplace:
		cfg.Displace = !cfg.Displace
	case ActionShading:
		cfg.Shading = (cfg.Shading + 1) % core.NumShadingModes
	case ActionFill:
		cfg.Fill = (cfg.Fill + 1) % core.NumFillModes
	case ActionCull:
		cfg.Cull = (cfg.Cull + 1) % core.NumCullModes
	case ActionDeeper:
		if cfg.MaxDepth < core.MaxSupportedDepth {
			cfg.MaxDepth++
		}
	case ActionShallower:
		if cfg.MaxDepth > core.MinDepth {
			cfg.MaxDepth--
		}
	case ActionFiner:
		cfg.TargetPixelSize = max(cfg.TargetPixelSize*0.5, 0.25)
	case ActionCoarser:
		cfg.TargetPixelSize = min(cfg.TargetPixelSize*2, 256)
	}
}

const pitchLimit = 0.49 * math.Pi

// Fly moves the camera by the accumulated input over dt seconds and clears
// the look delta.
func Fly(cam *core.CameraState, c *Controls, dt float32) {
	if dt <= 0 {
		return
	}
	if c.Captured {
		cam.Yaw += c.Look.X() * cam.Sensitivity
		cam.Pitch -= c.Look.Y() * cam.Sensitivity
		cam.Pitch = mgl32.Clamp(cam.Pitch, -pitchLimit, pitchLimit)
	}
	c.Look = mgl32.Vec2{}

	move := cam.GetRight().Mul(c.Move.X()).
		Add(mgl32.Vec3{0, 0, 1}.Mul(c.Move.Y())).
		Add(cam.GetForward().Mul(c.Move.Z()))
	if move.Len() == 0 {
		return
	}
	speed := cam.Speed
	if c.Boost {
		speed *= 4
	}
	cam.Position = cam.Position.Add(move.Normalize().Mul(speed * dt))
}

// InputModule drains Controls once per frame in the Prelude stage, before
// the frame driver builds the view.
type InputModule struct{}

func (InputModule) Install(app *subd.App, cmd *subd.Commands) {
	if _, ok := subd.Resource[Controls](app); !ok {
		cmd.AddResources(&Controls{})
	}
	app.UseStage(Input, subd.BeforeStage(subd.Prelude))
	cmd.UseSystem(subd.System(inputSystem).InStage(Input))
}

// Input runs ahead of Prelude so toggles land in the same frame.
var Input = subd.Stage{Name: "Input"}

func inputSystem(c *Controls, cfg *core.AppConfig, cam *core.CameraState, frame *subd.FrameContext, t *subd.Time, cmd *subd.Commands) {
	for _, a := range c.Drain() {
		Apply(a, cfg, frame)
		cmd.Logger().Infof("%s: freeze=%v only_render=%v culling=%v displace=%v shading=%v fill=%v cull=%v max_depth=%d pixel=%.2f",
			a, cfg.FreezeSubdivision, cfg.OnlyRender, cfg.EnableCulling, cfg.Displace,
			cfg.Shading, cfg.Fill, cfg.Cull, cfg.MaxDepth, cfg.TargetPixelSize)
	}
	Fly(cam, c, float32(t.Dt.Seconds()))
}
