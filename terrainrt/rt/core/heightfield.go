package core

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// HeightField holds normalized 16-bit heights and their central-difference slopes.
// It is immutable once built.
type HeightField struct {
	Width   int
	Height  int
	Heights []uint16
	Slopes  []mgl32.Vec2
}

// NewHeightField converts any raster into a height field through its 16-bit gray value.
func NewHeightField(img image.Image) (*HeightField, error) {
	if img == nil {
		return nil, ErrMissingHeightField
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d raster", ErrMissingHeightField, w, h)
	}

	samples := make([]uint16, w*h)
	if gray, ok := img.(*image.Gray16); ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				samples[y*w+x] = gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	} else {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				samples[y*w+x] = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			}
		}
	}
	return newHeightField(w, h, samples)
}

// NewHeightFieldFromSamples builds a height field from a copy of row-major samples.
func NewHeightFieldFromSamples(w, h int, samples []uint16) (*HeightField, error) {
	return newHeightField(w, h, slices.Clone(samples))
}

// newHeightField takes ownership of samples.
func newHeightField(w, h int, samples []uint16) (*HeightField, error) {
	if w <= 0 || h <= 0 || len(samples) == 0 {
		return nil, ErrMissingHeightField
	}
	if len(samples) != w*h {
		return nil, fmt.Errorf("height field: got %d samples for %dx%d", len(samples), w, h)
	}
	hf := &HeightField{
		Width:   w,
		Height:  h,
		Heights: samples,
		Slopes:  make([]mgl32.Vec2, w*h),
	}
	fw, fh := float32(w), float32(h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			zl := hf.At(x-1, y)
			zr := hf.At(x+1, y)
			zb := hf.At(x, y-1)
			zt := hf.At(x, y+1)
			hf.Slopes[y*w+x] = mgl32.Vec2{
				fw * 0.5 * (zr - zl),
				fh * 0.5 * (zt - zb),
			}
		}
	}
	return hf, nil
}

// NewFlatHeightField is a 1x1 field at height zero.
func NewFlatHeightField() *HeightField {
	hf, _ := NewHeightFieldFromSamples(1, 1, []uint16{0})
	return hf
}

func (hf *HeightField) clamp(x, y int) int {
	x = min(max(x, 0), hf.Width-1)
	y = min(max(y, 0), hf.Height-1)
	return y*hf.Width + x
}

// At returns the normalized height of a texel, clamping coordinates to the edge.
func (hf *HeightField) At(x, y int) float32 {
	return float32(hf.Heights[hf.clamp(x, y)]) / 65535
}

// SlopeAt returns the slope of a texel, clamping coordinates to the edge.
func (hf *HeightField) SlopeAt(x, y int) mgl32.Vec2 {
	return hf.Slopes[hf.clamp(x, y)]
}

func (hf *HeightField) texel(uv mgl32.Vec2) (x0, y0 int, tx, ty float32) {
	px := uv[0]*float32(hf.Width) - 0.5
	py := uv[1]*float32(hf.Height) - 0.5
	fx, fy := math32.Floor(px), math32.Floor(py)
	return int(fx), int(fy), px - fx, py - fy
}

// Sample bilinearly filters the height at uv with clamp-to-edge addressing.
func (hf *HeightField) Sample(uv mgl32.Vec2) float32 {
	x, y, tx, ty := hf.texel(uv)
	a := lerp(hf.At(x, y), hf.At(x+1, y), tx)
	b := lerp(hf.At(x, y+1), hf.At(x+1, y+1), tx)
	return lerp(a, b, ty)
}

// SampleSlope bilinearly filters the slope at uv with clamp-to-edge addressing.
func (hf *HeightField) SampleSlope(uv mgl32.Vec2) mgl32.Vec2 {
	x, y, tx, ty := hf.texel(uv)
	a := lerp2(hf.SlopeAt(x, y), hf.SlopeAt(x+1, y), tx)
	b := lerp2(hf.SlopeAt(x, y+1), hf.SlopeAt(x+1, y+1), tx)
	return lerp2(a, b, ty)
}

// Normal returns the unit surface normal at uv for a given displacement scale.
// Slopes are per unit of texture space while the domain spans two units.
func (hf *HeightField) Normal(uv mgl32.Vec2, displacement float32) mgl32.Vec3 {
	s := hf.SampleSlope(uv)
	return mgl32.Vec3{-0.5 * displacement * s[0], -0.5 * displacement * s[1], 1}.Normalize()
}

// HeightRange returns the lowest and highest normalized height.
func (hf *HeightField) HeightRange() (lo, hi float32) {
	lo, hi = 1, 0
	for _, v := range hf.Heights {
		f := float32(v) / 65535
		lo = math32.Min(lo, f)
		hi = math32.Max(hi, f)
	}
	return lo, hi
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func lerp2(a, b mgl32.Vec2, t float32) mgl32.Vec2 {
	return mgl32.Vec2{lerp(a[0], b[0], t), lerp(a[1], b[1], t)}
}
