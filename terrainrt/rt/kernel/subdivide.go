package kernel

import (
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// subdivision is the state bound to one launch of the subdivision kernel.
type subdivision struct {
	cfg      *core.KernelConfig
	height   *core.HeightField
	dst      *PatchBuffer
	culled   *PatchBuffer
	counters *Counters
}

// dispatch runs groups work groups over src. Invocations at or past the
// source counter exit immediately, like the tail of a GPU dispatch.
func (s *subdivision) dispatch(src *PatchBuffer, groups uint32, workers int) {
	bound := min(s.counters.Load(core.CounterSource), src.Cap())

	var g errgroup.Group
	g.SetLimit(workers)
	for wg := uint32(0); wg < groups; wg++ {
		g.Go(func() error {
			base := wg * core.WorkgroupSize
			for lid := uint32(0); lid < core.WorkgroupSize; lid++ {
				i := base + lid
				if i >= bound {
					break
				}
				s.invoke(src.keys[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

// invoke processes a single source key.
func (s *subdivision) invoke(key core.PatchKey) {
	tri := key.DomainTriangle()
	disp := s.cfg.Displacement()

	if s.cfg.Has(core.FlagCulling) && !core.AABBInFrustum(core.PatchBounds(tri, disp), s.cfg.Planes) {
		return
	}

	pending := s.counters.Slot(core.CounterPending)
	dropped := s.counters.Slot(core.CounterDropped)
	if !s.cfg.Has(core.FlagFreeze) && key.Depth() < s.cfg.MaxDepth && s.shouldSplit(tri, disp) {
		children := key.Children()
		s.dst.Append(pending, dropped, children[:]...)
	} else {
		s.dst.Append(pending, dropped, key)
	}
	s.culled.Append(s.counters.Slot(core.CounterCulled), dropped, key)
}

// shouldSplit compares the projected hypotenuse against the pixel target.
func (s *subdivision) shouldSplit(tri [3]mgl32.Vec2, disp float32) bool {
	a := s.position(tri[1], disp)
	b := s.position(tri[2], disp)
	return s.cfg.ProjectedPixels(a, b) > s.cfg.TargetPixelSize
}

func (s *subdivision) position(p mgl32.Vec2, disp float32) mgl32.Vec3 {
	var z float32
	if disp != 0 {
		z = disp * s.height.Sample(core.DomainUV(p))
	}
	return mgl32.Vec3{p[0], p[1], z}
}
