package kernel

import (
	"image"
	"image/color"
	"slices"
	"testing"

	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, capacity uint32) *Device {
	t.Helper()
	d, err := NewDevice(core.NewFlatHeightField(), Options{Capacity: capacity, Width: 64, Height: 64, Workers: 4})
	require.NoError(t, err)
	t.Cleanup(d.Release)
	require.NoError(t, d.Reset(core.RootKeys()))
	return d
}

func testKernelConfig(mutate func(*core.AppConfig)) core.KernelConfig {
	cfg := core.DefaultAppConfig()
	mutate(&cfg)
	return cfg.Kernel(core.NewCameraState().View(64, 64))
}

// frame runs the command sequence the frame driver issues and returns the
// parity of the next frame.
func frame(t *testing.T, d *Device, parity uint32, cfg core.KernelConfig) uint32 {
	t.Helper()
	require.NoError(t, d.BeginFrame(&cfg))
	d.Subdivide(parity)
	d.GenerateArgs()
	d.Barrier()
	d.Draw()
	require.NoError(t, d.EndFrame())
	return parity ^ 1
}

func sortedKeys(keys []core.PatchKey) []core.PatchKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b core.PatchKey) int {
		if a.Root != b.Root {
			return int(a.Root) - int(b.Root)
		}
		return int(a.Heap) - int(b.Heap)
	})
	return out
}

func TestMissingHeightField(t *testing.T) {
	_, err := NewDevice(nil, Options{})
	assert.ErrorIs(t, err, core.ErrMissingHeightField)
}

func TestInitialState(t *testing.T) {
	d := newTestDevice(t, 64)
	s := d.Snapshot(0)
	assert.Equal(t, sortedKeys(core.RootKeys()), sortedKeys(s.Active))
	assert.Equal(t, core.DispatchIndirectArgs{X: 1, Y: 1, Z: 1}, s.Dispatch)
	assert.Empty(t, s.Culled)
	for _, k := range s.Active {
		assert.Equal(t, uint32(core.MinDepth), k.Depth())
	}
}

func TestResetRejectsTooManyRoots(t *testing.T) {
	d, err := NewDevice(core.NewFlatHeightField(), Options{Capacity: 2})
	require.NoError(t, err)
	defer d.Release()
	assert.ErrorIs(t, d.Reset(core.RootKeys()), core.ErrCapacityExceeded)
}

func TestEndToEndNoSplitNoCull(t *testing.T) {
	d := newTestDevice(t, 1024)
	cfg := testKernelConfig(func(c *core.AppConfig) {
		c.TargetPixelSize = 1e9
		c.EnableCulling = false
	})

	parity := uint32(0)
	for i := 0; i < 5; i++ {
		parity = frame(t, d, parity, cfg)
		s := d.Snapshot(parity)
		assert.Equal(t, uint32(4), s.Counters[core.CounterSource], "frame %d", i)
		assert.Equal(t, uint32(4), s.Draw[core.FillSolid].InstanceCount, "frame %d", i)
		assert.Equal(t, sortedKeys(core.RootKeys()), sortedKeys(s.Active))
		assert.Equal(t, sortedKeys(core.RootKeys()), sortedKeys(s.Culled))
		assert.Zero(t, s.Counters[core.CounterPending], "generator resets pending")
		assert.Zero(t, s.Counters[core.CounterCulled], "generator resets culled")
		assert.Equal(t, uint64(i+1), s.Fences)
	}
}

func TestSplitConservation(t *testing.T) {
	d := newTestDevice(t, 1024)
	cfg := testKernelConfig(func(c *core.AppConfig) {
		c.TargetPixelSize = 1e-6
		c.EnableCulling = false
	})

	parity := frame(t, d, 0, cfg)
	s := d.Snapshot(parity)
	require.Len(t, s.Active, len(core.RootKeys())*core.BranchingFactor)

	var want []core.PatchKey
	for _, r := range core.RootKeys() {
		c := r.Children()
		want = append(want, c[:]...)
	}
	assert.Equal(t, sortedKeys(want), sortedKeys(s.Active))
	// Parents are drawn this frame, their children next frame.
	assert.Equal(t, sortedKeys(core.RootKeys()), sortedKeys(s.Culled))
}

func TestDepthBound(t *testing.T) {
	const maxDepth = 5
	d := newTestDevice(t, 4096)
	cfg := testKernelConfig(func(c *core.AppConfig) {
		c.TargetPixelSize = 1e-6
		c.EnableCulling = false
		c.MaxDepth = maxDepth
	})

	parity := uint32(0)
	for i := 0; i < 10; i++ {
		parity = frame(t, d, parity, cfg)
		s := d.Snapshot(parity)
		for _, k := range append(s.Active, s.Culled...) {
			require.LessOrEqual(t, k.Depth(), uint32(maxDepth))
		}
	}
	// Fully refined: 2 roots, 2^maxDepth leaves each.
	s := d.Snapshot(parity)
	assert.Len(t, s.Active, core.RootTriangles<<maxDepth)
	assert.Zero(t, s.Counters[core.CounterDropped])
}

func TestFreezeIdempotence(t *testing.T) {
	d := newTestDevice(t, 4096)
	grow := testKernelConfig(func(c *core.AppConfig) {
		c.EnableCulling = false
		c.TargetPixelSize = 2
	})
	parity := uint32(0)
	for i := 0; i < 4; i++ {
		parity = frame(t, d, parity, grow)
	}

	frozen := grow
	frozen.Flags |= core.FlagFreeze
	frozen.TargetPixelSize = 1e-6
	want := sortedKeys(d.Snapshot(parity).Active)
	for i := 0; i < 6; i++ {
		parity = frame(t, d, parity, frozen)
		got := d.Snapshot(parity)
		assert.Equal(t, want, sortedKeys(got.Active), "frame %d", i)
		assert.Equal(t, want, sortedKeys(got.Culled), "frame %d", i)
	}
}

func TestFrozenFramesAreStable(t *testing.T) {
	// One worker keeps work groups in order, so append order is fixed too.
	d, err := NewDevice(core.NewFlatHeightField(), Options{Capacity: 4096, Width: 64, Height: 64, Workers: 1})
	require.NoError(t, err)
	t.Cleanup(d.Release)
	require.NoError(t, d.Reset(core.RootKeys()))

	grow := testKernelConfig(func(c *core.AppConfig) {
		c.EnableCulling = false
		c.TargetPixelSize = 2
	})
	parity := uint32(0)
	for i := 0; i < 4; i++ {
		parity = frame(t, d, parity, grow)
	}

	frozen := grow
	frozen.Flags |= core.FlagFreeze
	frozen.TargetPixelSize = 1e-6
	parity = frame(t, d, parity, frozen)
	want := d.Snapshot(parity)
	want.Fences = 0
	require.NotEmpty(t, want.Active)
	for i := 0; i < 6; i++ {
		parity = frame(t, d, parity, frozen)
		got := d.Snapshot(parity)
		got.Fences = 0
		assert.Equal(t, want, got, "frame %d", i)
	}
}

func TestCullCorrectness(t *testing.T) {
	d := newTestDevice(t, 4096)
	cam := &core.CameraState{
		Position: mgl32.Vec3{0.5, 0, 3},
		Pitch:    -1.5,
		FovY:     mgl32.DegToRad(30),
		Near:     0.1,
		Far:      10,
	}
	cfg := core.DefaultAppConfig()
	cfg.TargetPixelSize = 4
	cfg.MaxDepth = 8
	kc := cfg.Kernel(cam.View(64, 64))

	parity := uint32(0)
	for i := 0; i < 6; i++ {
		parity = frame(t, d, parity, kc)
		s := d.Snapshot(parity)
		require.NotEmpty(t, s.Culled)
		for _, k := range s.Culled {
			b := core.PatchBounds(k.DomainTriangle(), kc.Displacement())
			require.True(t, core.AABBInFrustum(b, kc.Planes), "culled buffer holds invisible %v", k)
		}
		for _, k := range s.Active {
			b := core.PatchBounds(k.Parent().DomainTriangle(), kc.Displacement())
			if k.Depth() > core.MinDepth {
				require.True(t, core.AABBInFrustum(b, kc.Planes), "%v survived an invisible parent", k)
			}
		}
	}
	culledWith := len(d.Snapshot(parity).Culled)

	// Same view without culling instances strictly more patches.
	open := newTestDevice(t, 4096)
	kc.Flags &^= core.FlagCulling
	parity = 0
	for i := 0; i < 6; i++ {
		parity = frame(t, open, parity, kc)
	}
	assert.Greater(t, len(open.Snapshot(parity).Culled), culledWith)
}

func TestOverflowClamps(t *testing.T) {
	d := newTestDevice(t, 6)
	cfg := testKernelConfig(func(c *core.AppConfig) {
		c.TargetPixelSize = 1e-6
		c.EnableCulling = false
	})

	parity := frame(t, d, 0, cfg)
	s := d.Snapshot(parity)
	assert.Len(t, s.Active, 6, "three whole splits fit")
	assert.Equal(t, uint32(2), s.Counters[core.CounterDropped])
	assert.Len(t, s.Culled, 4)
	assert.Equal(t, core.DispatchIndirectArgs{X: 1, Y: 1, Z: 1}, s.Dispatch)

	parents := map[core.PatchKey]int{}
	for _, k := range s.Active {
		parents[k.Parent()]++
	}
	for p, n := range parents {
		assert.Equal(t, core.BranchingFactor, n, "partial split of %v", p)
	}

	// Later frames keep clamping without writing past capacity.
	for i := 0; i < 3; i++ {
		parity = frame(t, d, parity, cfg)
		s = d.Snapshot(parity)
		assert.LessOrEqual(t, len(s.Active), 6)
		assert.LessOrEqual(t, len(s.Culled), 6)
	}
}

func TestDrawCoversPixels(t *testing.T) {
	for _, fill := range []core.FillMode{core.FillSolid, core.FillWireframe} {
		t.Run(fill.String(), func(t *testing.T) {
			d := newTestDevice(t, 1024)
			cfg := testKernelConfig(func(c *core.AppConfig) {
				c.Fill = fill
				c.Shading = core.ShadingLod
				c.TargetPixelSize = 16
			})
			parity := uint32(0)
			for i := 0; i < 3; i++ {
				parity = frame(t, d, parity, cfg)
			}
			img := d.Image()
			assert.Greater(t, countDifferent(img, d.target.ClearColor), 0)
		})
	}
}

func TestBackFaceCulling(t *testing.T) {
	d := newTestDevice(t, 1024)
	// Looking at the quad from below shows only back faces.
	cam := &core.CameraState{Position: mgl32.Vec3{0, 0, -3}, Pitch: 1.5, FovY: mgl32.DegToRad(60), Near: 0.1, Far: 10}
	cfg := core.DefaultAppConfig()
	cfg.Displace = false
	cfg.EnableCulling = false

	cfg.Cull = core.CullNone
	kc := cfg.Kernel(cam.View(64, 64))
	frame(t, d, 0, kc)
	assert.Greater(t, countDifferent(d.Image(), d.target.ClearColor), 0)

	require.NoError(t, d.Reset(core.RootKeys()))
	cfg.Cull = core.CullBack
	kc = cfg.Kernel(cam.View(64, 64))
	frame(t, d, 0, kc)
	assert.Zero(t, countDifferent(d.Image(), d.target.ClearColor))
}

func countDifferent(img *image.RGBA, clear color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != clear {
				n++
			}
		}
	}
	return n
}
