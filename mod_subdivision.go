package subd

import (
	"github.com/gekko3d/subd/terrainrt/rt/core"
)

// SubdivisionModule installs the frame driver. It expects a Renderer resource
// and adds the configuration, camera, viewport and frame context unless they
// are already present.
type SubdivisionModule struct {
	Config *core.AppConfig
	Camera *core.CameraState
	Width  uint32
	Height uint32
}

func (m SubdivisionModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	if cfg == nil {
		defaults := core.DefaultAppConfig()
		cfg = &defaults
	}
	cam := m.Camera
	if cam == nil {
		cam = core.NewCameraState()
	}
	vp := &Viewport{Width: m.Width, Height: m.Height}
	if vp.Width == 0 || vp.Height == 0 {
		vp.Width, vp.Height = 1280, 720
	}

	if _, ok := Resource[core.AppConfig](app); !ok {
		cmd.AddResources(cfg)
	}
	if _, ok := Resource[core.CameraState](app); !ok {
		cmd.AddResources(cam)
	}
	if _, ok := Resource[Viewport](app); !ok {
		cmd.AddResources(vp)
	}
	cmd.AddResources(&FrameContext{})

	cmd.UseSystem(System(beginFrameSystem).InStage(Prelude)).
		UseSystem(System(swapSystem).InStage(Swap)).
		UseSystem(System(subdivideSystem).InStage(Subdivide)).
		UseSystem(System(generateArgsSystem).InStage(GenerateArgs)).
		UseSystem(System(barrierSystem).InStage(Barrier)).
		UseSystem(System(drawSystem).InStage(Draw)).
		UseSystem(System(endFrameSystem).InStage(Finale))
}

func beginFrameSystem(cfg *core.AppConfig, cam *core.CameraState, vp *Viewport, frame *FrameContext, r *Renderer, cmd *Commands) {
	log := cmd.Logger()
	frame.Frame++
	frame.open = false
	frame.subdivided = false

	if err := cfg.Validate(); err != nil {
		log.Warnf("frame %d: %v; keeping previous configuration", frame.Frame, err)
		if frame.initialized {
			*cfg = frame.applied
		} else {
			*cfg = core.DefaultAppConfig()
		}
	}
	if frame.initialized && cfg.Capacity != frame.applied.Capacity {
		// Buffers were sized when the device was created.
		log.Errorf("%s: capacity is fixed at %d; ignoring %d", r.Device.Label(), frame.applied.Capacity, cfg.Capacity)
		cfg.Capacity = frame.applied.Capacity
	}

	if frame.needsReset(cfg) {
		if err := r.Device.Reset(core.RootKeys()); err != nil {
			log.Errorf("%s: reset: %v", r.Device.Label(), err)
			cmd.Stop()
			return
		}
		log.Debugf("%s: reset at frame %d (max depth %d)", r.Device.Label(), frame.Frame, cfg.MaxDepth)
		frame.Generation = 0
		frame.resetRequested = false
		frame.initialized = true
	}
	frame.applied = *cfg

	frame.View = cam.View(vp.Width, vp.Height)
	frame.Kernel = cfg.Kernel(frame.View)
	if err := r.Device.BeginFrame(&frame.Kernel); err != nil {
		log.Errorf("%s: begin frame %d: %v", r.Device.Label(), frame.Frame, err)
		return
	}
	frame.open = true
}

func swapSystem(frame *FrameContext) {
	frame.Parity = uint32(frame.Generation & 1)
}

func subdivideSystem(cfg *core.AppConfig, frame *FrameContext, r *Renderer) {
	if !frame.open || cfg.OnlyRender {
		return
	}
	r.Device.Subdivide(frame.Parity)
	frame.subdivided = true
}

func generateArgsSystem(frame *FrameContext, r *Renderer) {
	if !frame.subdivided {
		return
	}
	r.Device.GenerateArgs()
}

func barrierSystem(frame *FrameContext, r *Renderer) {
	if frame.open {
		r.Device.Barrier()
	}
}

func drawSystem(frame *FrameContext, r *Renderer) {
	if frame.open {
		r.Device.Draw()
	}
}

func endFrameSystem(frame *FrameContext, r *Renderer, cmd *Commands) {
	if !frame.open {
		return
	}
	frame.open = false
	if err := r.Device.EndFrame(); err != nil {
		cmd.Logger().Errorf("%s: frame %d: %v", r.Device.Label(), frame.Frame, err)
	}
	if frame.subdivided {
		frame.Generation++
	}
	p := cmd.app.Profiler()
	p.SetCount("frame", int(frame.Frame))
	p.SetCount("generation", int(frame.Generation))
}
