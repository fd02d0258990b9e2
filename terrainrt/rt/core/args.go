package core

// WorkgroupSize is the number of subdivision invocations per work group.
const WorkgroupSize = 64

// Counter names one slot of the shared atomic counter array.
//
// Ownership: the subdivision kernel is the only writer that increments
// Pending, Culled and Dropped; the argument generator is the only one that
// reads and resets Pending and Culled, and the only writer of Source.
type Counter uint32

const (
	CounterPending Counter = iota // keys appended to the destination buffer this frame
	CounterCulled                 // keys appended to the culled buffer this frame
	CounterSource                 // valid entries in the next source buffer
	CounterDropped                // entries lost to full buffers, diagnostic only
	NumCounters
)

// DispatchIndirectArgs matches the GPU indirect dispatch layout.
type DispatchIndirectArgs struct {
	X, Y, Z uint32
}

// DrawIndirectArgs matches the GPU indirect draw layout.
type DrawIndirectArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

const (
	DispatchArgsSize = 12
	DrawArgsSize     = 16
)

// IndirectArgs is everything the generator produces in one invocation.
// Draw is indexed by FillMode.
type IndirectArgs struct {
	Source   uint32
	Dispatch DispatchIndirectArgs
	Draw     [2]DrawIndirectArgs
}

// GenerateArgs turns this frame's counters into next frame's launch size and
// this frame's draw records.
func GenerateArgs(pending, culled, capacity uint32, atlas *LeafAtlas) IndirectArgs {
	pending = min(pending, capacity)
	culled = min(culled, capacity)
	return IndirectArgs{
		Source: pending,
		Dispatch: DispatchIndirectArgs{
			X: (pending + WorkgroupSize - 1) / WorkgroupSize,
			Y: 1,
			Z: 1,
		},
		Draw: [2]DrawIndirectArgs{
			FillSolid:     {VertexCount: atlas.TriangleVertexCount(), InstanceCount: culled},
			FillWireframe: {VertexCount: atlas.LineVertexCount(), InstanceCount: culled},
		},
	}
}

// InitialArgs seeds the first frame with the root set and nothing drawn yet.
func InitialArgs(roots uint32, atlas *LeafAtlas) IndirectArgs {
	return GenerateArgs(roots, 0, roots, atlas)
}
