package atomicid

import (
	"math/bits"
	"sync/atomic"
	"time"
)

// Clock reports wall clock time in Unix milliseconds.
type Clock interface {
	NowMilli() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) NowMilli() int64 { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(func() int64 {
	return time.Now().UnixMilli()
})

// slotRegistry hands out thread slots from a 256-bit occupancy bitmap. A
// claimed slot stays exclusive until released. When every slot is taken,
// acquire falls back to a modulo counter and the slot is shared.
type slotRegistry struct {
	words    [slotCapacity / 64]atomic.Uint64
	overflow atomic.Uint32
	active   atomic.Int32
}

func (r *slotRegistry) acquire() (slot uint8, exclusive bool) {
	for w := range r.words {
		for {
			cur := r.words[w].Load()
			if cur == ^uint64(0) {
				break
			}
			bit := bits.TrailingZeros64(^cur)
			if r.words[w].CompareAndSwap(cur, cur|uint64(1)<<bit) {
				r.active.Add(1)
				return uint8(w*64 + bit), true
			}
		}
	}
	n := r.overflow.Add(1) - 1
	return uint8(n % slotCapacity), false
}

func (r *slotRegistry) release(slot uint8) {
	w, bit := int(slot)/64, uint(slot)%64
	r.words[w].And(^(uint64(1) << bit))
	r.active.Add(-1)
}

// inUse is the number of exclusively held slots.
func (r *slotRegistry) inUse() int {
	return int(r.active.Load())
}
