package subd

import "github.com/gekko3d/subd/terrainrt/rt/core"

// FrameContext carries the frame driver's state between stages.
//
// Generation counts subdivision steps since the last reset; its low bit is the
// parity that selects the source patch buffer. Frames that only render leave
// it unchanged, so the buffer the last step wrote stays the source.
type FrameContext struct {
	Generation uint64
	Frame      uint64
	Parity     uint32
	View       core.View
	Kernel     core.KernelConfig

	resetRequested bool
	initialized    bool
	open           bool
	subdivided     bool
	applied        core.AppConfig
}

// RequestReset re-seeds the root set at the start of the next frame.
func (f *FrameContext) RequestReset() {
	f.resetRequested = true
}

// Source is the patch buffer the kernel reads this frame.
func (f *FrameContext) Source() uint32 { return f.Parity }

// Destination is the patch buffer the kernel appends to this frame.
func (f *FrameContext) Destination() uint32 { return 1 - f.Parity }

// needsReset reports whether the buffers must be re-seeded before cfg runs.
// Lowering MaxDepth would otherwise leave deeper keys alive.
func (f *FrameContext) needsReset(cfg *core.AppConfig) bool {
	return !f.initialized || f.resetRequested || cfg.MaxDepth != f.applied.MaxDepth
}
