package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumCulling(t *testing.T) {
	// Camera at origin looking down -Z, 90 deg FOV, near 1, far 100.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name     string
		aabbMin  mgl32.Vec3
		aabbMax  mgl32.Vec3
		expected bool
	}{
		{"inside", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"left", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"right", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"behind", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"beyond far", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"straddles left plane", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
		{"encloses frustum", mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AABBInFrustum([2]mgl32.Vec3{tc.aabbMin, tc.aabbMax}, planes)
			if got != tc.expected {
				center := tc.aabbMin.Add(tc.aabbMax).Mul(0.5)
				for i, p := range planes {
					t.Logf("  P%d: %v, dist(center)=%f", i, p, p.Dot(center.Vec4(1)))
				}
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestFrustumOrtho(t *testing.T) {
	proj := mgl32.Ortho(-10, 10, -10, 10, 0, 20)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view))

	assert.True(t, AABBInFrustum([2]mgl32.Vec3{{-1, -1, -6}, {1, 1, -4}}, planes))
	// Far=20 puts the far plane at z=-20.
	assert.False(t, AABBInFrustum([2]mgl32.Vec3{{-1, -1, -26}, {1, 1, -24}}, planes))
}

func TestPatchBounds(t *testing.T) {
	tri := [3]mgl32.Vec2{{-1, -1}, {1, -1}, {-1, 1}}
	b := PatchBounds(tri, 0.3)
	assert.Equal(t, mgl32.Vec3{-1, -1, 0}, b[0])
	assert.Equal(t, mgl32.Vec3{1, 1, 0.3}, b[1])

	flat := PatchBounds(tri, 0)
	assert.Equal(t, float32(0), flat[1][2])
}

func TestCameraView(t *testing.T) {
	cam := NewCameraState()
	v := cam.View(1280, 720)

	assert.Equal(t, uint32(1280), v.Width)
	assert.Greater(t, v.FovX, cam.FovY, "landscape aspect widens the horizontal fov")
	// The default camera looks at the terrain centre.
	assert.True(t, AABBInFrustum([2]mgl32.Vec3{{-0.1, -0.1, 0}, {0.1, 0.1, 0.1}}, v.Planes))
	// Nothing behind it is visible.
	behind := cam.Position.Sub(cam.GetForward().Mul(5))
	assert.False(t, AABBInFrustum([2]mgl32.Vec3{behind.Sub(mgl32.Vec3{0.1, 0.1, 0.1}), behind.Add(mgl32.Vec3{0.1, 0.1, 0.1})}, v.Planes))
}

func TestCameraBasis(t *testing.T) {
	cam := &CameraState{}
	fwd := cam.GetForward()
	right := cam.GetRight()
	assert.InDelta(t, 0, fwd.Dot(right), 1e-6)
	// Right-handed, Z-up: forward x up points right.
	assert.True(t, fwd.Cross(mgl32.Vec3{0, 0, 1}).ApproxEqual(right))
}
