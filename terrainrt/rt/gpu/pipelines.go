package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/shaders"
)

// Render pipeline variants, selected by fill and cull mode.
const (
	pipelineSolid = iota
	pipelineSolidBack
	pipelineWire
	numRenderPipelines
)

const depthFormat = wgpu.TextureFormatDepth32Float

// Binding numbers in group 0. They are shared by all three programs.
const (
	BindingConfig uint32 = iota
	BindingSource
	BindingDestination
	BindingCulled
	BindingCounters
	BindingHeight
	BindingSlope
	BindingBaseQuad
	BindingDispatchArgs
	BindingDrawArgs
	BindingAtlasUVs
	BindingAtlasIndices
	BindingAtlasEdges
)

func renderVariant(fill core.FillMode, cull core.CullMode) int {
	switch {
	case fill == core.FillWireframe:
		return pipelineWire
	case cull == core.CullBack:
		return pipelineSolidBack
	default:
		return pipelineSolid
	}
}

func (d *Device) shaderModule(name, code string) (*wgpu.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          d.label + " " + name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("%s shader: %w", name, err)
	}
	return m, nil
}

func (d *Device) createPipelines(target wgpu.TextureFormat) error {
	subdivide, err := d.shaderModule("subdivide", shaders.SubdivideWGSL)
	if err != nil {
		return err
	}
	defer subdivide.Release()
	batcher, err := d.shaderModule("batcher", shaders.BatcherWGSL)
	if err != nil {
		return err
	}
	defer batcher.Release()
	render, err := d.shaderModule("render", shaders.RenderWGSL)
	if err != nil {
		return err
	}
	defer render.Release()

	d.subdividePipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   d.label + " subdivide",
		Compute: wgpu.ProgrammableStageDescriptor{Module: subdivide, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("subdivide pipeline: %w", err)
	}
	d.batcherPipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   d.label + " batcher",
		Compute: wgpu.ProgrammableStageDescriptor{Module: batcher, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("batcher pipeline: %w", err)
	}

	// The solid and wire vertex stages touch different atlas tables, so the
	// layout is spelled out once and shared instead of derived per pipeline.
	vertex := wgpu.ShaderStageVertex
	storage := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: vertex,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		}
	}
	texture := func(binding uint32, stage wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: stage,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	d.renderLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: d.label + " render layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    BindingConfig,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: ConfigSize,
				},
			},
			storage(BindingCulled),
			texture(BindingHeight, wgpu.ShaderStageVertex),
			texture(BindingSlope, wgpu.ShaderStageFragment),
			storage(BindingBaseQuad),
			storage(BindingAtlasUVs),
			storage(BindingAtlasIndices),
			storage(BindingAtlasEdges),
		},
	})
	if err != nil {
		return fmt.Errorf("render layout: %w", err)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            d.label + " render",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.renderLayout},
	})
	if err != nil {
		return fmt.Errorf("render pipeline layout: %w", err)
	}
	defer layout.Release()

	variants := [numRenderPipelines]struct {
		vs, fs   string
		topology wgpu.PrimitiveTopology
		cull     wgpu.CullMode
		compare  wgpu.CompareFunction
	}{
		pipelineSolid:     {"vs_solid", "fs_main", wgpu.PrimitiveTopologyTriangleList, wgpu.CullModeNone, wgpu.CompareFunctionLess},
		pipelineSolidBack: {"vs_solid", "fs_main", wgpu.PrimitiveTopologyTriangleList, wgpu.CullModeBack, wgpu.CompareFunctionLess},
		pipelineWire:      {"vs_wire", "fs_wire", wgpu.PrimitiveTopologyLineList, wgpu.CullModeNone, wgpu.CompareFunctionLessEqual},
	}
	for i, v := range variants {
		d.renderPipelines[i], err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  fmt.Sprintf("%s render %s/%s", d.label, v.vs, v.fs),
			Layout: layout,
			Vertex: wgpu.VertexState{Module: render, EntryPoint: v.vs},
			Fragment: &wgpu.FragmentState{
				Module:     render,
				EntryPoint: v.fs,
				Targets: []wgpu.ColorTargetState{{
					Format:    target,
					WriteMask: wgpu.ColorWriteMaskAll,
				}},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  v.topology,
				FrontFace: wgpu.FrontFaceCCW,
				CullMode:  v.cull,
			},
			DepthStencil: &wgpu.DepthStencilState{
				Format:            depthFormat,
				DepthWriteEnabled: true,
				DepthCompare:      v.compare,
				StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
				StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			},
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return fmt.Errorf("render pipeline %s: %w", v.vs, err)
		}
	}
	return nil
}

// createBindGroups binds every buffer and texture. It runs again whenever
// ensureBuffer reallocates.
func (d *Device) createBindGroups() error {
	d.releaseBindGroups()

	whole := func(binding uint32, b *wgpu.Buffer) wgpu.BindGroupEntry {
		return wgpu.BindGroupEntry{Binding: binding, Buffer: b, Size: wgpu.WholeSize}
	}
	var err error
	for parity := range d.subdivideGroups {
		d.subdivideGroups[parity], err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("%s subdivide %d", d.label, parity),
			Layout: d.subdividePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				whole(BindingConfig, d.configBuf),
				whole(BindingSource, d.patchBufs[parity]),
				whole(BindingDestination, d.patchBufs[1-parity]),
				whole(BindingCulled, d.culledBuf),
				whole(BindingCounters, d.countersBuf),
				{Binding: BindingHeight, TextureView: d.heightView},
				whole(BindingBaseQuad, d.baseQuadBuf),
			},
		})
		if err != nil {
			return fmt.Errorf("subdivide bind group %d: %w", parity, err)
		}
	}

	d.batcherGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  d.label + " batcher",
		Layout: d.batcherPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			whole(BindingConfig, d.configBuf),
			whole(BindingCounters, d.countersBuf),
			whole(BindingDispatchArgs, d.dispatchBuf),
			whole(BindingDrawArgs, d.drawBuf),
		},
	})
	if err != nil {
		return fmt.Errorf("batcher bind group: %w", err)
	}

	d.renderGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  d.label + " render",
		Layout: d.renderLayout,
		Entries: []wgpu.BindGroupEntry{
			whole(BindingConfig, d.configBuf),
			whole(BindingCulled, d.culledBuf),
			{Binding: BindingHeight, TextureView: d.heightView},
			{Binding: BindingSlope, TextureView: d.slopeView},
			whole(BindingBaseQuad, d.baseQuadBuf),
			whole(BindingAtlasUVs, d.atlasUVBuf),
			whole(BindingAtlasIndices, d.atlasIndexBuf),
			whole(BindingAtlasEdges, d.atlasEdgeBuf),
		},
	})
	if err != nil {
		return fmt.Errorf("render bind group: %w", err)
	}
	return nil
}

func (d *Device) releaseBindGroups() {
	for i, g := range d.subdivideGroups {
		if g != nil {
			g.Release()
			d.subdivideGroups[i] = nil
		}
	}
	if d.batcherGroup != nil {
		d.batcherGroup.Release()
		d.batcherGroup = nil
	}
	if d.renderGroup != nil {
		d.renderGroup.Release()
		d.renderGroup = nil
	}
}
