package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ConfigSize is the uniform buffer size. The WGSL Config struct is 224 bytes.
const ConfigSize = 256

// Byte offsets of the Config fields.
const (
	offViewProj        = 0
	offPlanes          = 64
	offCameraPos       = 160
	offFovX            = 172
	offLightDir        = 176
	offTargetPixelSize = 188
	offScreenWidth     = 192
	offDisplacement    = 196
	offMaxDepth        = 200
	offCapacity        = 204
	offFlags           = 208
	offShading         = 212
	offSolidVertices   = 216
	offWireVertices    = 220
)

// DepthRemap maps OpenGL clip depth [-w, w] onto the WebGPU range [0, w].
var DepthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func packConfig(k *core.KernelConfig, atlas *core.LeafAtlas) []byte {
	buf := make([]byte, ConfigSize)
	vp := DepthRemap.Mul4(k.ViewProj)
	putFloats(buf, offViewProj, vp[:]...)
	for i, p := range k.Planes {
		putFloats(buf, offPlanes+i*16, p[:]...)
	}
	putFloats(buf, offCameraPos, k.CameraPos[:]...)
	putFloats(buf, offFovX, k.FovX)
	putFloats(buf, offLightDir, k.LightDir[:]...)
	putFloats(buf, offTargetPixelSize, k.TargetPixelSize)
	putFloats(buf, offScreenWidth, k.ScreenWidth)
	putFloats(buf, offDisplacement, k.DisplacementFactor)
	putUints(buf, offMaxDepth, k.MaxDepth, k.Capacity, k.Flags, uint32(k.Shading))
	putUints(buf, offSolidVertices, atlas.TriangleVertexCount(), atlas.LineVertexCount())
	return buf
}

func putFloats(buf []byte, off int, v ...float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(f))
	}
}

func putUints(buf []byte, off int, v ...uint32) {
	for i, u := range v {
		binary.LittleEndian.PutUint32(buf[off+i*4:], u)
	}
}

func packArgs(args core.IndirectArgs) (dispatch, draw []byte) {
	dispatch = make([]byte, core.DispatchArgsSize)
	putUints(dispatch, 0, args.Dispatch.X, args.Dispatch.Y, args.Dispatch.Z)
	draw = make([]byte, 2*core.DrawArgsSize)
	for i, d := range args.Draw {
		putUints(draw, i*core.DrawArgsSize, d.VertexCount, d.InstanceCount, d.FirstVertex, d.FirstInstance)
	}
	return dispatch, draw
}

func packCounters(c [core.NumCounters]uint32) []byte {
	buf := make([]byte, 4*core.NumCounters)
	putUints(buf, 0, c[:]...)
	return buf
}
