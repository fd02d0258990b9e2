package kernel

import "github.com/gekko3d/subd/terrainrt/rt/core"

// generateArgs is the single-invocation argument generator. It is the only
// reader of the pending and culled counters and resets both.
func generateArgs(counters *Counters, capacity uint32, atlas *core.LeafAtlas) core.IndirectArgs {
	pending := counters.Slot(core.CounterPending).Swap(0)
	culled := counters.Slot(core.CounterCulled).Swap(0)
	args := core.GenerateArgs(pending, culled, capacity, atlas)
	counters.Slot(core.CounterSource).Store(args.Source)
	return args
}
