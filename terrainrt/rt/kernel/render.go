package kernel

import (
	"image/color"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"
)

// renderer is the state bound to one instanced draw.
type renderer struct {
	cfg    *core.KernelConfig
	height *core.HeightField
	atlas  *core.LeafAtlas
	target *Target
}

// instanceVertices runs the vertex stage for every atlas vertex of one patch.
func (r *renderer) instanceVertices(key core.PatchKey, out []screenVertex) {
	tri := key.Triangle()
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	disp := r.cfg.Displacement()
	depth := key.Depth()

	for i, uv := range r.atlas.UVs {
		local := tri[0].Add(e1.Mul(uv[0])).Add(e2.Mul(uv[1]))
		p := core.BaseQuad.ToDomain(key.Root, local)
		tex := core.DomainUV(p)

		var z float32
		if disp != 0 {
			z = disp * r.height.Sample(tex)
		}
		clip := r.cfg.ViewProj.Mul4x1(mgl32.Vec4{p[0], p[1], z, 1})
		out[i] = r.target.project(clip, r.shade(tex, depth, disp))
	}
}

// shade is the fragment color, evaluated per vertex.
func (r *renderer) shade(uv mgl32.Vec2, depth uint32, disp float32) mgl32.Vec3 {
	switch r.cfg.Shading {
	case core.ShadingLod:
		return lodColor(depth, r.cfg.MaxDepth)
	case core.ShadingNormal:
		n := r.height.Normal(uv, disp)
		return n.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5})
	default:
		n := r.height.Normal(uv, disp)
		d := max(n.Dot(r.cfg.LightDir), 0)
		v := 0.15 + 0.85*d
		return mgl32.Vec3{v, v, v}
	}
}

// lodColor ramps the hue from red at the root to violet at the depth limit.
func lodColor(depth, maxDepth uint32) mgl32.Vec3 {
	t := float64(depth) / float64(max(maxDepth, 1))
	c := colorful.Hsv(300*t, 0.75, 0.95)
	return mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}
}

// draw instances the atlas once per culled key.
func (r *renderer) draw(keys []core.PatchKey, workers int) error {
	stride := len(r.atlas.UVs)
	verts := make([]screenVertex, len(keys)*stride)

	var g errgroup.Group
	g.SetLimit(workers)
	const chunk = 256
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		g.Go(func() error {
			for i := start; i < end; i++ {
				r.instanceVertices(keys[i], verts[i*stride:(i+1)*stride])
			}
			return nil
		})
	}
	_ = g.Wait()

	if r.cfg.Fill == core.FillWireframe {
		return r.strokeEdges(keys, verts, stride)
	}
	for i, key := range keys {
		vs := verts[i*stride : (i+1)*stride]
		table := r.atlas.Table(key.Depth())
		for j := 0; j+2 < len(table); j += 3 {
			r.target.Triangle(vs[table[j]], vs[table[j+1]], vs[table[j+2]], r.cfg.Cull)
		}
	}
	return nil
}

func (r *renderer) strokeEdges(keys []core.PatchKey, verts []screenVertex, stride int) error {
	segs := make([]Segment, 0, len(keys)*len(r.atlas.Edges)/2)
	for i, key := range keys {
		vs := verts[i*stride : (i+1)*stride]
		col := color.RGBA{R: 230, G: 230, B: 230, A: 255}
		if r.cfg.Shading == core.ShadingLod {
			col = toRGBA(lodColor(key.Depth(), r.cfg.MaxDepth))
		}
		for j := 0; j+1 < len(r.atlas.Edges); j += 2 {
			a, b := vs[r.atlas.Edges[j]], vs[r.atlas.Edges[j+1]]
			if !a.Visible || !b.Visible {
				continue
			}
			segs = append(segs, Segment{
				X1: float64(a.Pos[0]), Y1: float64(a.Pos[1]),
				X2: float64(b.Pos[0]), Y2: float64(b.Pos[1]),
				Color: col,
			})
		}
	}
	return r.target.StrokeSegments(segs, 1)
}
