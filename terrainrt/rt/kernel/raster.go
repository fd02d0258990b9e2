package kernel

import (
	"cmp"
	"image"
	"image/color"
	"image/draw"
	"slices"

	"github.com/chewxy/math32"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg"
)

// Target is a color plus depth framebuffer.
type Target struct {
	Color      *image.RGBA
	Depth      []float32
	ClearColor color.RGBA
}

func NewTarget(width, height int) *Target {
	t := &Target{
		Color:      image.NewRGBA(image.Rect(0, 0, width, height)),
		Depth:      make([]float32, width*height),
		ClearColor: color.RGBA{R: 26, G: 26, B: 31, A: 255},
	}
	t.Clear()
	return t
}

func (t *Target) Width() int  { return t.Color.Rect.Dx() }
func (t *Target) Height() int { return t.Color.Rect.Dy() }

// Clear resets color to ClearColor and depth to the far plane.
func (t *Target) Clear() {
	draw.Draw(t.Color, t.Color.Rect, &image.Uniform{C: t.ClearColor}, image.Point{}, draw.Src)
	for i := range t.Depth {
		t.Depth[i] = 1
	}
}

// screenVertex is a vertex after perspective divide and viewport transform.
// Z is NDC depth in [-1, 1].
type screenVertex struct {
	Pos     mgl32.Vec3
	Color   mgl32.Vec3
	Visible bool
}

const minClipW = 1e-5

func (t *Target) project(clip mgl32.Vec4, col mgl32.Vec3) screenVertex {
	if clip[3] <= minClipW {
		return screenVertex{}
	}
	inv := 1 / clip[3]
	x, y, z := clip[0]*inv, clip[1]*inv, clip[2]*inv
	return screenVertex{
		Pos: mgl32.Vec3{
			(x*0.5 + 0.5) * float32(t.Width()),
			(0.5 - y*0.5) * float32(t.Height()),
			z,
		},
		Color:   col,
		Visible: true,
	}
}

func edge(a, b mgl32.Vec3, px, py float32) float32 {
	return (b[0]-a[0])*(py-a[1]) - (b[1]-a[1])*(px-a[0])
}

// Triangle fills a triangle with depth testing and Gouraud colors.
// Counter-clockwise triangles in NDC are front facing; with the viewport's
// flipped Y they have negative screen area.
func (t *Target) Triangle(a, b, c screenVertex, cull core.CullMode) {
	if !a.Visible || !b.Visible || !c.Visible {
		return
	}
	area := edge(a.Pos, b.Pos, c.Pos[0], c.Pos[1])
	if area == 0 || (cull == core.CullBack && area > 0) {
		return
	}

	w, h := t.Width(), t.Height()
	minX := max(int(math32.Floor(min(a.Pos[0], b.Pos[0], c.Pos[0]))), 0)
	maxX := min(int(math32.Ceil(max(a.Pos[0], b.Pos[0], c.Pos[0]))), w-1)
	minY := max(int(math32.Floor(min(a.Pos[1], b.Pos[1], c.Pos[1]))), 0)
	maxY := min(int(math32.Ceil(max(a.Pos[1], b.Pos[1], c.Pos[1]))), h-1)

	inv := 1 / area
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(b.Pos, c.Pos, px, py) * inv
			w1 := edge(c.Pos, a.Pos, px, py) * inv
			w2 := edge(a.Pos, b.Pos, px, py) * inv
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.Pos[2] + w1*b.Pos[2] + w2*c.Pos[2]
			if z < -1 || z > 1 {
				continue
			}
			idx := y*w + x
			// Depth stored in [0,1].
			depth := z*0.5 + 0.5
			if depth >= t.Depth[idx] {
				continue
			}
			t.Depth[idx] = depth
			col := a.Color.Mul(w0).Add(b.Color.Mul(w1)).Add(c.Color.Mul(w2))
			t.Color.SetRGBA(x, y, toRGBA(col))
		}
	}
}

// Segment is one projected wireframe edge.
type Segment struct {
	X1, Y1, X2, Y2 float64
	Color          color.RGBA
}

// StrokeSegments draws segments over the color buffer, one stroke per color.
func (t *Target) StrokeSegments(segs []Segment, width float64) error {
	if len(segs) == 0 {
		return nil
	}
	slices.SortStableFunc(segs, func(a, b Segment) int {
		return cmp.Compare(rgbaKey(a.Color), rgbaKey(b.Color))
	})

	dc := gg.NewContextForImage(t.Color)
	defer dc.Close()
	dc.SetLineWidth(width)

	for start := 0; start < len(segs); {
		end := start
		col := segs[start].Color
		for end < len(segs) && segs[end].Color == col {
			s := segs[end]
			dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
			end++
		}
		dc.SetColor(col)
		if err := dc.Stroke(); err != nil {
			return err
		}
		start = end
	}
	draw.Draw(t.Color, t.Color.Rect, dc.Image(), image.Point{}, draw.Src)
	return nil
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

func toRGBA(c mgl32.Vec3) color.RGBA {
	conv := func(v float32) uint8 {
		return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.RGBA{R: conv(c[0]), G: conv(c[1]), B: conv(c[2]), A: 255}
}
