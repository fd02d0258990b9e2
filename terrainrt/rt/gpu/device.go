// Package gpu runs the subdivision pipeline on a WebGPU device.
//
// Every frame is recorded into one command encoder: the subdivision kernel
// launched indirectly from the dispatch record, the argument generator in a
// separate compute pass, then an indirect instanced draw. The host never
// reads a counter to decide how much work to issue.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/shaders"
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
	// Format of the color targets handed to SetTarget.
	Format wgpu.TextureFormat
	Atlas  *core.LeafAtlas
	Logger Logger
	// ValidateShaders compiles the WGSL with naga before the driver sees it.
	ValidateShaders bool
}

type Device struct {
	label    string
	logger   Logger
	device   *wgpu.Device
	queue    *wgpu.Queue
	capacity uint32
	atlas    *core.LeafAtlas

	configBuf     *wgpu.Buffer
	patchBufs     [2]*wgpu.Buffer
	culledBuf     *wgpu.Buffer
	countersBuf   *wgpu.Buffer
	dispatchBuf   *wgpu.Buffer
	drawBuf       *wgpu.Buffer
	baseQuadBuf   *wgpu.Buffer
	atlasUVBuf    *wgpu.Buffer
	atlasIndexBuf *wgpu.Buffer
	atlasEdgeBuf  *wgpu.Buffer

	heightTex  *wgpu.Texture
	heightView *wgpu.TextureView
	slopeTex   *wgpu.Texture
	slopeView  *wgpu.TextureView

	subdividePipeline *wgpu.ComputePipeline
	batcherPipeline   *wgpu.ComputePipeline
	renderLayout      *wgpu.BindGroupLayout
	renderPipelines   [numRenderPipelines]*wgpu.RenderPipeline

	subdivideGroups [2]*wgpu.BindGroup
	batcherGroup    *wgpu.BindGroup
	renderGroup     *wgpu.BindGroup

	// Render target, owned by the caller.
	target       *wgpu.TextureView
	width        uint32
	height       uint32
	depthTex     *wgpu.Texture
	depthView    *wgpu.TextureView
	clear        wgpu.Color
	cfg          core.KernelConfig
	encoder      *wgpu.CommandEncoder
	fences       uint64
	submitted    uint64
	frameErr     error
	warnedTarget bool
}

// NewDevice uploads the height field and atlas and builds every pipeline.
func NewDevice(device *wgpu.Device, hf *core.HeightField, opts Options) (*Device, error) {
	if hf == nil {
		return nil, core.ErrMissingHeightField
	}
	if opts.Capacity == 0 {
		opts.Capacity = core.DefaultCapacity
	}
	if opts.Atlas == nil {
		opts.Atlas = core.NewLeafAtlas(core.DefaultAtlasLevel)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Format == wgpu.TextureFormatUndefined {
		opts.Format = wgpu.TextureFormatBGRA8Unorm
	}
	if opts.ValidateShaders {
		if err := shaders.Validate(); err != nil {
			return nil, err
		}
	}

	d := &Device{
		label:    "gpu-" + uuid.NewString(),
		logger:   opts.Logger,
		device:   device,
		queue:    device.GetQueue(),
		capacity: opts.Capacity,
		atlas:    opts.Atlas,
		clear:    wgpu.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
	}
	if err := d.init(hf, opts.Format); err != nil {
		d.Release()
		return nil, err
	}
	d.logger.Debugf("%s: %d slots per patch buffer, %d byte key buffers", d.label, d.capacity, uint64(d.capacity)*keySize)
	return d, nil
}

func (d *Device) init(hf *core.HeightField, format wgpu.TextureFormat) error {
	if err := d.uploadStatic(hf); err != nil {
		return err
	}
	if err := d.allocate(); err != nil {
		return err
	}
	if err := d.createPipelines(format); err != nil {
		return err
	}
	return d.createBindGroups()
}

func (d *Device) Label() string { return d.label }

func (d *Device) Capacity() uint32 { return d.capacity }

// SetTarget selects the color view drawn into this frame. The depth buffer
// follows the target size.
func (d *Device) SetTarget(view *wgpu.TextureView, width, height uint32) error {
	d.target = view
	if width == d.width && height == d.height && d.depthView != nil {
		return nil
	}
	d.releaseDepth()
	if width == 0 || height == 0 {
		return nil
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         d.label + " depth",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth: %w", err)
	}
	depthView, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("depth view: %w", err)
	}
	d.depthTex, d.depthView = tex, depthView
	d.width, d.height = width, height
	return nil
}

// Reset seeds buffer 0 with roots and clears every counter, including the
// dropped diagnostic. The next frame must run with parity 0.
func (d *Device) Reset(roots []core.PatchKey) error {
	if uint32(len(roots)) > d.capacity {
		return fmt.Errorf("%w: %d roots for %d slots", core.ErrCapacityExceeded, len(roots), d.capacity)
	}
	n := uint32(len(roots))
	args := core.InitialArgs(n, d.atlas)
	dispatch, draw := packArgs(args)
	var counters [core.NumCounters]uint32
	counters[core.CounterSource] = args.Source

	if n > 0 {
		d.queue.WriteBuffer(d.patchBufs[0], 0, packKeys(roots))
	}
	d.queue.WriteBuffer(d.countersBuf, 0, packCounters(counters))
	d.queue.WriteBuffer(d.dispatchBuf, 0, dispatch)
	d.queue.WriteBuffer(d.drawBuf, 0, draw)
	d.logger.Debugf("%s: reset to %d roots", d.label, n)
	return nil
}

// BeginFrame uploads the frame's configuration record and opens the encoder.
func (d *Device) BeginFrame(cfg *core.KernelConfig) error {
	if d.encoder != nil {
		return fmt.Errorf("%s: frame already open", d.label)
	}
	d.cfg = *cfg
	d.cfg.Capacity = d.capacity
	d.queue.WriteBuffer(d.configBuf, 0, packConfig(&d.cfg, d.atlas))

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%s: command encoder: %w", d.label, err)
	}
	d.encoder = encoder
	d.frameErr = nil
	return nil
}

func (d *Device) fail(what string, err error) {
	if err != nil && d.frameErr == nil {
		d.frameErr = fmt.Errorf("%s: %s: %w", d.label, what, err)
	}
}

// Subdivide launches the subdivision kernel from buffer parity into the
// other one, sized by the dispatch record.
func (d *Device) Subdivide(parity uint32) {
	pass := d.encoder.BeginComputePass(nil)
	pass.SetPipeline(d.subdividePipeline)
	pass.SetBindGroup(0, d.subdivideGroups[parity&1], nil)
	pass.DispatchWorkgroupsIndirect(d.dispatchBuf, 0)
	d.fail("subdivide pass", pass.End())
}

// GenerateArgs runs the single-invocation argument generator.
func (d *Device) GenerateArgs() {
	pass := d.encoder.BeginComputePass(nil)
	pass.SetPipeline(d.batcherPipeline)
	pass.SetBindGroup(0, d.batcherGroup, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	d.fail("batcher pass", pass.End())
}

// Barrier separates the compute writes from the draw that consumes them.
// Pass boundaries already order storage writes before indirect and vertex
// reads, so it only counts fences.
func (d *Device) Barrier() {
	d.fences++
}

// Draw issues the instanced indirect draw for the configured fill mode.
func (d *Device) Draw() {
	if d.target == nil || d.depthView == nil {
		if !d.warnedTarget {
			d.logger.Warnf("%s: no render target, skipping draw", d.label)
			d.warnedTarget = true
		}
		return
	}
	pass := d.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       d.target,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: d.clear,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(d.renderPipelines[renderVariant(d.cfg.Fill, d.cfg.Cull)])
	pass.SetBindGroup(0, d.renderGroup, nil)
	pass.DrawIndirect(d.drawBuf, uint64(d.cfg.Fill)*core.DrawArgsSize)
	d.fail("render pass", pass.End())
}

// EndFrame submits the recorded frame.
func (d *Device) EndFrame() error {
	if d.encoder == nil {
		return fmt.Errorf("%s: no frame open", d.label)
	}
	encoder := d.encoder
	d.encoder = nil
	defer encoder.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		d.fail("finish", err)
		return d.frameErr
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	d.submitted++
	return d.frameErr
}

// Stats reports host-side bookkeeping only. Counter values stay on the
// device; nothing is mapped back.
type Stats struct {
	Submitted uint64
	Fences    uint64
}

func (d *Device) Stats() Stats {
	return Stats{Submitted: d.submitted, Fences: d.fences}
}

func (d *Device) releaseDepth() {
	if d.depthView != nil {
		d.depthView.Release()
		d.depthView = nil
	}
	if d.depthTex != nil {
		d.depthTex.Release()
		d.depthTex = nil
	}
	d.width, d.height = 0, 0
}

// Release frees every device object. Call it once; the Device is unusable afterwards.
func (d *Device) Release() {
	d.releaseBindGroups()
	d.releaseDepth()
	for _, p := range d.renderPipelines {
		if p != nil {
			p.Release()
		}
	}
	for _, p := range []*wgpu.ComputePipeline{d.subdividePipeline, d.batcherPipeline} {
		if p != nil {
			p.Release()
		}
	}
	if d.renderLayout != nil {
		d.renderLayout.Release()
	}
	for _, v := range []*wgpu.TextureView{d.heightView, d.slopeView} {
		if v != nil {
			v.Release()
		}
	}
	for _, t := range []*wgpu.Texture{d.heightTex, d.slopeTex} {
		if t != nil {
			t.Release()
		}
	}
	buffers := []*wgpu.Buffer{
		d.configBuf, d.patchBufs[0], d.patchBufs[1], d.culledBuf, d.countersBuf,
		d.dispatchBuf, d.drawBuf, d.baseQuadBuf, d.atlasUVBuf, d.atlasIndexBuf,
		d.atlasEdgeBuf,
	}
	for _, b := range buffers {
		if b != nil {
			b.Release()
		}
	}
}
