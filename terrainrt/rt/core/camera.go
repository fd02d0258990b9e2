package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FovY        float32 // radians
	Near        float32
	Far         float32
}

// NewCameraState places the camera south of the terrain, looking across it.
func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, -2.5, 1.2},
		Yaw:         math.Pi,
		Pitch:       -0.35,
		Speed:       1.0,
		Sensitivity: 0.003,
		FovY:        mgl32.DegToRad(60),
		Near:        0.01,
		Far:         100,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(-math.Cos(float64(c.Yaw))),
		float32(-math.Sin(float64(c.Yaw))),
		0,
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 0, 1})
}

// FovX derives the horizontal field of view for an aspect ratio.
func (c *CameraState) FovX(aspect float32) float32 {
	return float32(2 * math.Atan(math.Tan(float64(c.FovY)/2)*float64(aspect)))
}

// View is the per-frame camera snapshot handed to the kernels.
type View struct {
	ViewProj mgl32.Mat4
	Position mgl32.Vec3
	Planes   [6]mgl32.Vec4
	FovX     float32
	Width    uint32
	Height   uint32
}

// View snapshots the camera for a framebuffer of the given size.
func (c *CameraState) View(width, height uint32) View {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	proj := mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	vp := proj.Mul4(c.GetViewMatrix())
	return View{
		ViewProj: vp,
		Position: c.Position,
		Planes:   ExtractFrustum(vp),
		FovX:     c.FovX(aspect),
		Width:    width,
		Height:   height,
	}
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes := [6]mgl32.Vec4{
		r3.Add(r0), r3.Sub(r0),
		r3.Add(r1), r3.Sub(r1),
		r3.Add(r2), r3.Sub(r2), // OpenGL-style -1..1 depth
	}
	for i := range planes {
		n := planes[i].Vec3()
		if length := n.Len(); length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}
