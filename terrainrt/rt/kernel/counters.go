package kernel

import (
	"sync/atomic"

	"github.com/gekko3d/subd/terrainrt/rt/core"
)

// Counters is the shared atomic counter array, indexed by core.Counter.
type Counters [core.NumCounters]atomic.Uint32

func (c *Counters) Slot(s core.Counter) *atomic.Uint32 { return &c[s] }

func (c *Counters) Load(s core.Counter) uint32 { return c[s].Load() }

// PatchBuffer is a fixed-capacity array of keys with bounded atomic append.
type PatchBuffer struct {
	keys []core.PatchKey
}

func NewPatchBuffer(capacity uint32) *PatchBuffer {
	return &PatchBuffer{keys: make([]core.PatchKey, capacity)}
}

func (b *PatchBuffer) Cap() uint32 { return uint32(len(b.keys)) }

// Keys returns the first n entries.
func (b *PatchBuffer) Keys(n uint32) []core.PatchKey {
	return b.keys[:min(n, b.Cap())]
}

// Append reserves len(keys) consecutive slots on count and writes keys there.
// Either every key is written or none is; on overflow the dropped counter
// grows by len(keys) and count is left untouched.
func (b *PatchBuffer) Append(count, dropped *atomic.Uint32, keys ...core.PatchKey) bool {
	n := uint32(len(keys))
	base, ok := reserve(count, n, b.Cap())
	if !ok {
		dropped.Add(n)
		return false
	}
	copy(b.keys[base:base+n], keys)
	return true
}

func reserve(count *atomic.Uint32, n, capacity uint32) (uint32, bool) {
	for {
		cur := count.Load()
		if cur > capacity || n > capacity-cur {
			return 0, false
		}
		if count.CompareAndSwap(cur, cur+n) {
			return cur, true
		}
	}
}
