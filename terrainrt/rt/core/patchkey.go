package core

import (
	"fmt"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MinDepth is the depth of the initial patch set. Depth 0 is the root
	// triangle itself, which is never emitted.
	MinDepth = 1
	// MaxSupportedDepth bounds the heap so that barycentric corners stay exact in float32.
	MaxSupportedDepth = 24
	// BranchingFactor is the number of children produced by one bisection.
	BranchingFactor = 2
	// RootTriangles is the number of triangles the base quad is cut into.
	RootTriangles = 2
)

// Debug turns codec misuse (children at the depth limit, malformed keys) into panics.
var Debug = false

// PatchKey identifies one node of the bisection forest.
//
// Root selects the base quad triangle. Heap stores the local path below the
// root behind a marker bit, so Heap = 1<<depth | local and depth = msb(Heap).
type PatchKey struct {
	Root uint32
	Heap uint32
}

// RootKeys returns the initial patch set: both children of both root triangles.
func RootKeys() []PatchKey {
	return []PatchKey{
		{Root: 0, Heap: 0b10},
		{Root: 1, Heap: 0b10},
		{Root: 0, Heap: 0b11},
		{Root: 1, Heap: 0b11},
	}
}

// Encode builds the key of the node with the given global path at depth.
// The path enumerates all nodes at that depth: path = root<<depth | local.
func Encode(path uint32, depth uint32) PatchKey {
	if depth > MaxSupportedDepth {
		if Debug {
			panic(fmt.Sprintf("%v: encode depth %d", ErrInvalidDepth, depth))
		}
		depth = MaxSupportedDepth
	}
	mask := uint32(1)<<depth - 1
	return PatchKey{
		Root: path >> depth,
		Heap: 1<<depth | path&mask,
	}
}

// Decode is the inverse of Encode.
func Decode(k PatchKey) (path uint32, depth uint32) {
	depth = k.Depth()
	mask := uint32(1)<<depth - 1
	return k.Root<<depth | k.Heap&mask, depth
}

// Depth returns the number of bisections between the root triangle and this patch.
func (k PatchKey) Depth() uint32 {
	if k.Heap == 0 {
		if Debug {
			panic(fmt.Sprintf("%v: key (root=%d heap=%#x) has no marker bit", ErrInvalidDepth, k.Root, k.Heap))
		}
		return 0
	}
	return uint32(bits.Len32(k.Heap) - 1)
}

// Children returns the two halves produced by bisecting the patch's hypotenuse.
// Callers must not call it on a key at the configured depth limit.
func (k PatchKey) Children() [BranchingFactor]PatchKey {
	if Debug && k.Depth() >= MaxSupportedDepth {
		panic(fmt.Sprintf("%v: children of root=%d heap=%#x", ErrInvalidDepth, k.Root, k.Heap))
	}
	return [BranchingFactor]PatchKey{
		{Root: k.Root, Heap: k.Heap << 1},
		{Root: k.Root, Heap: k.Heap<<1 | 1},
	}
}

// Parent returns the key the patch was split from.
func (k PatchKey) Parent() PatchKey {
	return PatchKey{Root: k.Root, Heap: k.Heap >> 1}
}

// Valid reports whether the key can appear in a patch buffer bounded by maxDepth.
func (k PatchKey) Valid(maxDepth uint32) bool {
	if k.Heap == 0 || k.Root >= RootTriangles {
		return false
	}
	d := k.Depth()
	return d >= MinDepth && d <= maxDepth
}

func (k PatchKey) String() string {
	if k.Heap == 0 {
		return fmt.Sprintf("patch(root=%d invalid)", k.Root)
	}
	path, depth := Decode(k)
	return fmt.Sprintf("patch(root=%d depth=%d path=%d)", k.Root, depth, path)
}

// Triangle returns the patch corners in the unit right triangle of its root,
// (0,0) being the right angle and (1,0)-(0,1) the hypotenuse. Corner 0 is
// always the right angle and corners 1 and 2 span the hypotenuse.
func (k PatchKey) Triangle() [3]mgl32.Vec2 {
	v0, v1, v2 := mgl32.Vec2{0, 0}, mgl32.Vec2{1, 0}, mgl32.Vec2{0, 1}
	for bit := int(k.Depth()) - 1; bit >= 0; bit-- {
		m := v1.Add(v2).Mul(0.5)
		if (k.Heap>>uint(bit))&1 == 0 {
			v0, v2 = m, v0
		} else {
			v0, v1 = m, v0
		}
	}
	return [3]mgl32.Vec2{v0, v1, v2}
}

// DomainTriangle returns the patch corners in base quad coordinates.
func (k PatchKey) DomainTriangle() [3]mgl32.Vec2 {
	local := k.Triangle()
	var out [3]mgl32.Vec2
	for i, p := range local {
		out[i] = BaseQuad.ToDomain(k.Root, p)
	}
	return out
}

// Mirrored reports whether the patch winding is flipped relative to its root.
// Every bisection mirrors the triangle, so this is the depth parity.
func (k PatchKey) Mirrored() bool {
	return k.Depth()&1 == 1
}
