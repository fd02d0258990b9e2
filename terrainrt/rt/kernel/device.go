// Package kernel runs the subdivision pipeline on the CPU.
//
// The Device mirrors the GPU resource model: two ping-pong patch buffers, a
// culled buffer, an atomic counter array and indirect argument records. The
// host only submits commands; they execute in order on a queue goroutine and
// each kernel fans its work groups out over a bounded set of goroutines.
package kernel

import (
	"fmt"
	"image"
	"runtime"
	"sync/atomic"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/google/uuid"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Options struct {
	Capacity uint32
	Width    int
	Height   int
	Workers  int
	Atlas    *core.LeafAtlas
	Logger   Logger
}

type Device struct {
	label    string
	logger   Logger
	capacity uint32
	workers  int
	atlas    *core.LeafAtlas
	height   *core.HeightField
	target   *Target
	queue    *queue

	// Device memory. Touched only by commands running on the queue.
	patches  [2]*PatchBuffer
	culled   *PatchBuffer
	counters Counters
	dispatch core.DispatchIndirectArgs
	draw     [2]core.DrawIndirectArgs
	fences   atomic.Uint64
	drawErr  error

	// Uniform staging, written by the host between frames.
	cfg core.KernelConfig
}

// NewDevice allocates every buffer up front. A nil height field is refused.
func NewDevice(height *core.HeightField, opts Options) (*Device, error) {
	if height == nil {
		return nil, core.ErrMissingHeightField
	}
	if opts.Capacity == 0 {
		opts.Capacity = core.DefaultCapacity
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 640, 360
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Atlas == nil {
		opts.Atlas = core.NewLeafAtlas(core.DefaultAtlasLevel)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	d := &Device{
		label:    "cpu-" + uuid.NewString(),
		logger:   opts.Logger,
		capacity: opts.Capacity,
		workers:  opts.Workers,
		atlas:    opts.Atlas,
		height:   height,
		target:   NewTarget(opts.Width, opts.Height),
		queue:    newQueue(16),
		patches:  [2]*PatchBuffer{NewPatchBuffer(opts.Capacity), NewPatchBuffer(opts.Capacity)},
		culled:   NewPatchBuffer(opts.Capacity),
	}
	d.logger.Debugf("%s: %d slots per patch buffer, %d workers", d.label, d.capacity, d.workers)
	return d, nil
}

func (d *Device) Label() string { return d.label }

func (d *Device) Capacity() uint32 { return d.capacity }

// Reset seeds buffer 0 with roots and clears every counter, including the
// dropped diagnostic. The next frame must run with parity 0.
func (d *Device) Reset(roots []core.PatchKey) error {
	if uint32(len(roots)) > d.capacity {
		return fmt.Errorf("%w: %d roots for %d slots", core.ErrCapacityExceeded, len(roots), d.capacity)
	}
	d.queue.flush()

	n := uint32(copy(d.patches[0].keys, roots))
	args := core.InitialArgs(n, d.atlas)
	d.counters.Slot(core.CounterPending).Store(0)
	d.counters.Slot(core.CounterCulled).Store(0)
	d.counters.Slot(core.CounterSource).Store(args.Source)
	d.counters.Slot(core.CounterDropped).Store(0)
	d.dispatch = args.Dispatch
	d.draw = args.Draw
	d.drawErr = nil
	d.logger.Debugf("%s: reset to %d roots", d.label, n)
	return nil
}

// BeginFrame stages the frame's configuration record.
func (d *Device) BeginFrame(cfg *core.KernelConfig) error {
	d.cfg = *cfg
	d.cfg.Capacity = d.capacity
	return nil
}

// Subdivide launches the subdivision kernel from buffer parity into the other
// one, sized by the dispatch record the previous generator wrote.
func (d *Device) Subdivide(parity uint32) {
	cfg := d.cfg
	src, dst := d.patches[parity&1], d.patches[(parity+1)&1]
	d.queue.submit(func() {
		s := &subdivision{
			cfg:      &cfg,
			height:   d.height,
			dst:      dst,
			culled:   d.culled,
			counters: &d.counters,
		}
		s.dispatch(src, d.dispatch.X, d.workers)
	})
}

// GenerateArgs launches the single-invocation argument generator.
func (d *Device) GenerateArgs() {
	d.queue.submit(func() {
		args := generateArgs(&d.counters, d.capacity, d.atlas)
		d.dispatch = args.Dispatch
		d.draw = args.Draw
	})
}

// Barrier orders the draw after all earlier writes. Commands already run
// one at a time, so the fence only marks the point in the stream.
func (d *Device) Barrier() {
	d.queue.submit(func() {
		d.fences.Add(1)
	})
}

// Draw instances the leaf atlas once per entry of the culled buffer.
func (d *Device) Draw() {
	cfg := d.cfg
	d.queue.submit(func() {
		d.target.Clear()
		rec := d.draw[cfg.Fill]
		r := &renderer{cfg: &cfg, height: d.height, atlas: d.atlas, target: d.target}
		if err := r.draw(d.culled.Keys(rec.InstanceCount), d.workers); err != nil {
			d.drawErr = err
		}
	})
}

// EndFrame waits for the frame's commands, the software analog of present.
func (d *Device) EndFrame() error {
	d.queue.flush()
	err := d.drawErr
	d.drawErr = nil
	if err != nil {
		return fmt.Errorf("%s: draw failed: %w", d.label, err)
	}
	return nil
}

func (d *Device) Release() {
	d.queue.close()
}

// Image returns the color target after all submitted work completes.
func (d *Device) Image() *image.RGBA {
	d.queue.flush()
	return d.target.Color
}

// Snapshot is a copy of device memory for tests and headless diagnostics.
type Snapshot struct {
	Active   []core.PatchKey
	Culled   []core.PatchKey
	Counters [core.NumCounters]uint32
	Dispatch core.DispatchIndirectArgs
	Draw     [2]core.DrawIndirectArgs
	Fences   uint64
}

// Snapshot waits for the queue and copies the active set of buffer parity,
// i.e. the source of the next frame run with that parity.
func (d *Device) Snapshot(parity uint32) Snapshot {
	d.queue.flush()
	s := Snapshot{
		Dispatch: d.dispatch,
		Draw:     d.draw,
		Fences:   d.fences.Load(),
	}
	for i := range s.Counters {
		s.Counters[i] = d.counters[i].Load()
	}
	s.Active = append([]core.PatchKey(nil), d.patches[parity&1].Keys(s.Counters[core.CounterSource])...)
	s.Culled = append([]core.PatchKey(nil), d.culled.Keys(d.draw[core.FillSolid].InstanceCount)...)
	return s
}
