package core

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultAtlasLevel is the bisection depth of one rendered leaf: 64 triangles.
const DefaultAtlasLevel = 6

// LeafAtlas is the static triangulation instanced once per surviving patch.
//
// UVs live in the unit right triangle used by PatchKey.Triangle. Indices holds
// one triangle list per depth parity: entry 0 keeps the generated winding and
// entry 1 reverses it, undoing the mirror introduced by an odd number of
// bisections. Edges is the unique edge set as a line list.
type LeafAtlas struct {
	Level   uint32
	UVs     []mgl32.Vec2
	Indices [2][]uint32
	Edges   []uint32
}

// NewLeafAtlas bisects the unit right triangle level times.
func NewLeafAtlas(level uint32) *LeafAtlas {
	a := &LeafAtlas{Level: level}
	lookup := make(map[mgl32.Vec2]uint32)
	vertex := func(p mgl32.Vec2) uint32 {
		if idx, ok := lookup[p]; ok {
			return idx
		}
		idx := uint32(len(a.UVs))
		a.UVs = append(a.UVs, p)
		lookup[p] = idx
		return idx
	}

	var bisect func(v0, v1, v2 mgl32.Vec2, depth uint32)
	bisect = func(v0, v1, v2 mgl32.Vec2, depth uint32) {
		if depth == 0 {
			a.Indices[0] = append(a.Indices[0], vertex(v0), vertex(v1), vertex(v2))
			return
		}
		m := v1.Add(v2).Mul(0.5)
		bisect(m, v1, v0, depth-1)
		bisect(m, v0, v2, depth-1)
	}
	bisect(mgl32.Vec2{0, 0}, mgl32.Vec2{1, 0}, mgl32.Vec2{0, 1}, level)

	// Bisecting mirrors each triangle, so an odd atlas level starts out reversed.
	even := a.Indices[0]
	if level&1 == 1 {
		even = reverseWinding(even)
	}
	a.Indices[0] = even
	a.Indices[1] = reverseWinding(even)
	a.Edges = uniqueEdges(even)
	return a
}

func reverseWinding(tris []uint32) []uint32 {
	out := make([]uint32, len(tris))
	for i := 0; i+2 < len(tris); i += 3 {
		out[i], out[i+1], out[i+2] = tris[i], tris[i+2], tris[i+1]
	}
	return out
}

func uniqueEdges(tris []uint32) []uint32 {
	seen := make(map[[2]uint32]struct{})
	var edges [][2]uint32
	for i := 0; i+2 < len(tris); i += 3 {
		for e := 0; e < 3; e++ {
			a, b := tris[i+e], tris[i+(e+1)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]uint32{a, b}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, key)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	out := make([]uint32, 0, len(edges)*2)
	for _, e := range edges {
		out = append(out, e[0], e[1])
	}
	return out
}

// Table returns the triangle list matching the winding of a patch at depth.
func (a *LeafAtlas) Table(depth uint32) []uint32 {
	return a.Indices[depth&1]
}

// TriangleVertexCount is the per-instance vertex count of a solid draw.
func (a *LeafAtlas) TriangleVertexCount() uint32 {
	return uint32(len(a.Indices[0]))
}

// LineVertexCount is the per-instance vertex count of a wireframe draw.
func (a *LeafAtlas) LineVertexCount() uint32 {
	return uint32(len(a.Edges))
}

// PackedIndices concatenates both parity tables, even first.
func (a *LeafAtlas) PackedIndices() []uint32 {
	out := make([]uint32, 0, len(a.Indices[0])*2)
	out = append(out, a.Indices[0]...)
	return append(out, a.Indices[1]...)
}
