package atomicid

import "sync/atomic"

// sharedState is the sequence state of a width without a thread field. The
// word holds (timestamp<<sequenceBits | sequence) + 1 with the full,
// untruncated timestamp; zero means nothing was issued yet.
type sharedState struct {
	word atomic.Uint64
}

// reserveShort claims up to want consecutive sequence values of width w in
// one millisecond with a single compare-and-swap. It returns the millisecond,
// the first sequence value and how many values were claimed (at least one).
func (g *Generator) reserveShort(w Width, want int) (ts int64, start uint64, n int) {
	l := w.Layout()
	sh := &g.short[w.mustIndex()]
	seqBits := uint(l.SequenceBits)
	limit := l.maxSequence()
	if want < 1 {
		want = 1
	}

	for {
		cur := sh.word.Load()
		now := g.now()
		clamped := false

		if cur == 0 {
			ts, start = now, 0
		} else {
			last := int64((cur - 1) >> seqBits)
			seq := (cur - 1) & limit
			switch {
			case now > last:
				ts, start = now, 0
			case seq >= limit:
				clamped = now < last
				ts, start = g.waitNext(last), 0
			default:
				clamped = now < last
				ts, start = last, seq+1
			}
		}

		n = int(min(uint64(want), limit-start+1))
		next := (uint64(ts)<<seqBits | (start + uint64(n) - 1)) + 1
		if sh.word.CompareAndSwap(cur, next) {
			if clamped {
				g.stats.driftClamps.Add(1)
			}
			return ts, start, n
		}
	}
}

func (g *Generator) packShort(l Layout, ts int64, seq uint64) ID {
	id := ID{width: l.Width}
	bw := bitWriter{buf: id.buf[:l.Width.Bytes()]}
	bw.put(uint64(ts), l.TimestampBits)
	bw.put(uint64(g.topo.NodeID()), l.NodeBits)
	bw.put(seq, l.SequenceBits)
	return id
}
