package core

import "github.com/go-gl/mathgl/mgl32"

// QuadGeometry is the static base mesh every patch is instanced from.
type QuadGeometry struct {
	Positions [4]mgl32.Vec4
	Indices   [6]uint32
}

// BaseQuad spans [-1,1] in the XY plane. Heights displace along +Z.
var BaseQuad = QuadGeometry{
	Positions: [4]mgl32.Vec4{
		{-1, -1, 0, 1},
		{1, -1, 0, 1},
		{1, 1, 0, 1},
		{-1, 1, 0, 1},
	},
	Indices: [6]uint32{0, 1, 3, 2, 3, 1},
}

// RootCorner returns corner i (0 = right angle) of root triangle root.
func (q *QuadGeometry) RootCorner(root, i uint32) mgl32.Vec2 {
	p := q.Positions[q.Indices[root*3+i]]
	return mgl32.Vec2{p[0], p[1]}
}

// ToDomain maps a point of the unit right triangle into root triangle root.
func (q *QuadGeometry) ToDomain(root uint32, uv mgl32.Vec2) mgl32.Vec2 {
	v0 := q.RootCorner(root, 0)
	e1 := q.RootCorner(root, 1).Sub(v0)
	e2 := q.RootCorner(root, 2).Sub(v0)
	return v0.Add(e1.Mul(uv[0])).Add(e2.Mul(uv[1]))
}

// RootVertices expands the indexed quad into per-root triangle corners,
// the layout the kernels bind as the base quad slot.
func (q *QuadGeometry) RootVertices() []mgl32.Vec4 {
	out := make([]mgl32.Vec4, 0, len(q.Indices))
	for _, idx := range q.Indices {
		out = append(out, q.Positions[idx])
	}
	return out
}

// DomainUV converts base quad coordinates into height field texture coordinates.
func DomainUV(p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{(p[0] + 1) * 0.5, (p[1] + 1) * 0.5}
}
