package core

import "github.com/go-gl/mathgl/mgl32"

// AABBInFrustum reports whether any part of the box lies inside all six planes.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		// The corner furthest along the inward normal. If even that one is
		// behind the plane, the whole box is.
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = aabb[1][axis]
			} else {
				p[axis] = aabb[0][axis]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}

// PatchBounds returns the box enclosing a patch and every height it can be displaced to.
func PatchBounds(tri [3]mgl32.Vec2, maxHeight float32) [2]mgl32.Vec3 {
	lo := mgl32.Vec3{tri[0][0], tri[0][1], 0}
	hi := lo
	for _, p := range tri[1:] {
		lo[0], hi[0] = min(lo[0], p[0]), max(hi[0], p[0])
		lo[1], hi[1] = min(lo[1], p[1]), max(hi[1], p[1])
	}
	hi[2] = max(maxHeight, 0)
	return [2]mgl32.Vec3{lo, hi}
}
