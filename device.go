package subd

import "github.com/gekko3d/subd/terrainrt/rt/core"

// Device is the accelerator the frame driver records commands into. Commands
// are ordered; the driver never waits on or reads back device memory.
type Device interface {
	Label() string
	// Reset seeds buffer 0 with roots and clears every counter.
	Reset(roots []core.PatchKey) error
	// BeginFrame uploads the per-frame configuration record.
	BeginFrame(cfg *core.KernelConfig) error
	// Subdivide runs the kernel from buffer parity into buffer 1-parity.
	Subdivide(parity uint32)
	GenerateArgs()
	Barrier()
	Draw()
	// EndFrame submits the frame. Errors are about encoding or submission,
	// never about capacity.
	EndFrame() error
	Release()
}

// Renderer is the resource holding the active device.
type Renderer struct {
	Device Device
}

// Viewport is the framebuffer size the view is built for.
type Viewport struct {
	Width  uint32
	Height uint32
}
