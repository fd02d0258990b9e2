package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const keySize = 8

func packKeys(keys []core.PatchKey) []byte {
	buf := make([]byte, len(keys)*keySize)
	for i, k := range keys {
		putUints(buf, i*keySize, k.Root, k.Heap)
	}
	return buf
}

func packVec2s(v []mgl32.Vec2) []byte {
	buf := make([]byte, len(v)*8)
	for i, p := range v {
		putFloats(buf, i*8, p[0], p[1])
	}
	return buf
}

func packVec4s(v []mgl32.Vec4) []byte {
	buf := make([]byte, len(v)*16)
	for i, p := range v {
		putFloats(buf, i*16, p[:]...)
	}
	return buf
}

func packUint32s(v []uint32) []byte {
	buf := make([]byte, len(v)*4)
	putUints(buf, 0, v...)
	return buf
}

// heightTexels converts the height field to R32Float rows. Core WebGPU has
// no 16-bit normalized format.
func heightTexels(hf *core.HeightField) []byte {
	buf := make([]byte, len(hf.Heights)*4)
	for i, h := range hf.Heights {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(h)/math.MaxUint16))
	}
	return buf
}

// slopeTexels converts the slopes to RG32Float rows.
func slopeTexels(hf *core.HeightField) []byte {
	return packVec2s(hf.Slopes)
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}

// ensureBuffer (re)creates *buf when it is missing or smaller than size and
// uploads data at offset 0. It reports whether a new buffer was created, in
// which case bind groups referencing the old one are stale.
func (d *Device) ensureBuffer(name string, buf **wgpu.Buffer, size uint64, data []byte, usage wgpu.BufferUsage) (bool, error) {
	size = align4(max(size, uint64(len(data)), 16))
	created := false
	if current := *buf; current == nil || current.GetSize() < size {
		if current != nil {
			current.Release()
		}
		b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: d.label + " " + name,
			Size:  size,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("create %s: %w", name, err)
		}
		*buf = b
		created = true
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(*buf, 0, data)
	}
	return created, nil
}

func (d *Device) createTexture(name string, w, h int, format wgpu.TextureFormat, bytesPerTexel uint32, texels []byte) (*wgpu.Texture, *wgpu.TextureView, error) {
	extent := wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         d.label + " " + name,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", name, err)
	}
	err = d.queue.WriteTexture(tex.AsImageCopy(), texels, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(w) * bytesPerTexel,
		RowsPerImage: uint32(h),
	}, &extent)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("upload %s: %w", name, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("view %s: %w", name, err)
	}
	return tex, view, nil
}

// uploadStatic creates everything that does not change after construction:
// the height and slope textures, the base quad and the leaf atlas tables.
func (d *Device) uploadStatic(hf *core.HeightField) error {
	var err error
	d.heightTex, d.heightView, err = d.createTexture("heights", hf.Width, hf.Height, wgpu.TextureFormatR32Float, 4, heightTexels(hf))
	if err != nil {
		return err
	}
	d.slopeTex, d.slopeView, err = d.createTexture("slopes", hf.Width, hf.Height, wgpu.TextureFormatRG32Float, 8, slopeTexels(hf))
	if err != nil {
		return err
	}

	static := []struct {
		name string
		buf  **wgpu.Buffer
		data []byte
	}{
		{"base quad", &d.baseQuadBuf, packVec4s(core.BaseQuad.RootVertices())},
		{"atlas uvs", &d.atlasUVBuf, packVec2s(d.atlas.UVs)},
		{"atlas indices", &d.atlasIndexBuf, packUint32s(d.atlas.PackedIndices())},
		{"atlas edges", &d.atlasEdgeBuf, packUint32s(d.atlas.Edges)},
	}
	for _, s := range static {
		if _, err := d.ensureBuffer(s.name, s.buf, 0, s.data, wgpu.BufferUsageStorage); err != nil {
			return err
		}
	}
	return nil
}

type bufferSpec struct {
	name  string
	buf   **wgpu.Buffer
	size  uint64
	usage wgpu.BufferUsage
}

// deviceBuffers lists the per-capacity buffers. None of them is mappable or
// a copy source: counters and arguments never leave the device.
func (d *Device) deviceBuffers() []bufferSpec {
	keys := uint64(d.capacity) * keySize
	return []bufferSpec{
		{"config", &d.configBuf, ConfigSize, wgpu.BufferUsageUniform},
		{"patches 0", &d.patchBufs[0], keys, wgpu.BufferUsageStorage},
		{"patches 1", &d.patchBufs[1], keys, wgpu.BufferUsageStorage},
		{"culled", &d.culledBuf, keys, wgpu.BufferUsageStorage},
		{"counters", &d.countersBuf, uint64(4 * core.NumCounters), wgpu.BufferUsageStorage},
		{"dispatch args", &d.dispatchBuf, core.DispatchArgsSize, wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect},
		{"draw args", &d.drawBuf, 2 * core.DrawArgsSize, wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect},
	}
}

// allocate creates the per-capacity buffers.
func (d *Device) allocate() error {
	for _, b := range d.deviceBuffers() {
		if _, err := d.ensureBuffer(b.name, b.buf, b.size, nil, b.usage); err != nil {
			return err
		}
	}
	return nil
}
