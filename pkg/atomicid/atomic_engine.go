// Package atomicid generates fixed-width, time-ordered unique IDs without
// locking on the generation path.
//
// ID structure (most significant field first):
//
//	┌───────┬───────────┬──────┬───────┬────────┬──────────┬─────────┐
//	│ width │ timestamp │ node │ shard │ thread │ sequence │ entropy │
//	├───────┼───────────┼──────┼───────┼────────┼──────────┼─────────┤
//	│  24   │    12     │  4   │   -   │   -    │    8     │    -    │
//	│  32   │    16     │  4   │   -   │   -    │    12    │    -    │
//	│  64   │    20     │  12  │   8   │   8    │    16    │    -    │
//	│  128  │    44     │  12  │   8   │   8    │    24    │   32    │
//	│  256  │    48     │  12  │   8   │   8    │    32    │   148   │
//	└───────┴───────────┴──────┴───────┴────────┴──────────┴─────────┘
//
// - timestamp: milliseconds since the configured epoch, low bits kept
// - node/shard: topology of the process, see Topology
// - thread: slot of the Session that produced the ID
// - sequence: per slot, per millisecond counter
// - entropy: counter derived fill keyed by the generator seed and session
//
// A Session is the unit of ownership: one goroutine drives it and, while it
// holds its slot exclusively, the slot's sequence state is its alone, so
// Generate needs no synchronization beyond atomic loads of the topology. The
// state belongs to the slot, not the session: a session that later claims
// the same slot continues from the last (timestamp, sequence). IDs from one
// session increase strictly.
// Widths without a thread field (24, 32) keep a single compare-and-swap state
// per Generator instead.
package atomicid

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultSpinLimit bounds the exhaustion wait. A millisecond normally passes
// after a few thousand yields; the limit only matters for clocks coarser than
// one millisecond, where the generator borrows the next millisecond instead.
const DefaultSpinLimit = 1 << 20

// Config configures a Generator. The zero value is usable.
type Config struct {
	// Topology defaults to Default.
	Topology *Topology
	// Clock defaults to SystemClock.
	Clock Clock
	// Seed keys the entropy bits of 128 and 256-bit IDs. Zero draws a seed
	// from a random UUID.
	Seed uint64
	// SpinLimit defaults to DefaultSpinLimit.
	SpinLimit int
	// PoolSize is the number of idle sessions kept for the Generator level
	// helpers. Defaults to 2 * GOMAXPROCS.
	PoolSize int
}

// Generator owns the thread slots, the shared short-width states and a pool
// of sessions for callers that do not manage their own.
type Generator struct {
	topo      *Topology
	clock     Clock
	seed      uint64
	spinLimit int

	slots      slotRegistry
	lanes      [slotCapacity][len(layouts)]laneState
	serials    atomic.Uint64
	short      [2]sharedState
	sequential atomic.Uint64
	idle       chan *Session

	stats engineStats
}

// NewGenerator builds a Generator from cfg.
func NewGenerator(cfg Config) *Generator {
	if cfg.Topology == nil {
		cfg.Topology = Default
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Seed == 0 {
		cfg.Seed = randomSeed()
	}
	if cfg.SpinLimit <= 0 {
		cfg.SpinLimit = DefaultSpinLimit
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2 * runtime.GOMAXPROCS(0)
	}
	return &Generator{
		topo:      cfg.Topology,
		clock:     cfg.Clock,
		seed:      cfg.Seed,
		spinLimit: cfg.SpinLimit,
		idle:      make(chan *Session, cfg.PoolSize),
	}
}

func randomSeed() uint64 {
	u := uuid.New()
	s := binary.BigEndian.Uint64(u[:8]) ^ binary.BigEndian.Uint64(u[8:])
	if s == 0 {
		s = 1
	}
	return s
}

// Topology returns the topology the generator reads.
func (g *Generator) Topology() *Topology { return g.topo }

// now is the current timestamp relative to the epoch, never negative.
func (g *Generator) now() int64 {
	ts := g.clock.NowMilli() - g.topo.Epoch()
	if ts < 0 {
		return 0
	}
	return ts
}

// waitNext spins until the clock passes last. If the clock has not moved
// after spinLimit reads it returns last+1.
func (g *Generator) waitNext(last int64) int64 {
	g.stats.exhaustionWaits.Add(1)
	for i := 0; i < g.spinLimit; i++ {
		if ts := g.now(); ts > last {
			return ts
		}
		runtime.Gosched()
	}
	g.stats.borrowedMillis.Add(1)
	return last + 1
}

// laneState is the sequence state of one slot for one width.
type laneState struct {
	primed bool
	last   int64
	seq    uint64
	draws  uint64
}

// Session generates IDs for one goroutine. It is not safe for concurrent use.
// Close releases its thread slot.
type Session struct {
	gen       *Generator
	slot      uint8
	exclusive bool
	serial    uint64
	states    [len(layouts)]*laneState
}

// NewSession claims a thread slot. It never fails: once all slots are held,
// the session shares a slot, keeps a private sequence state and Shared
// reports true. Uniqueness across sessions is guaranteed while at most 256
// sessions are open per generator and topology. Past that, 128 and 256-bit
// IDs stay distinct through their per-session entropy; 64-bit IDs of shared
// sessions may collide.
func (g *Generator) NewSession() *Session {
	slot, exclusive := g.slots.acquire()
	s := &Session{gen: g, slot: slot, exclusive: exclusive, serial: g.serials.Add(1) - 1}
	if !exclusive {
		g.stats.sharedSessions.Add(1)
		return s
	}
	// The bitmap CAS orders these states after the previous owner's writes.
	for i := range s.states {
		s.states[i] = &g.lanes[slot][i]
	}
	return s
}

// Slot is the thread slot packed into the session's IDs.
func (s *Session) Slot() uint8 { return s.slot }

// Shared reports whether the slot may also be held by another session.
func (s *Session) Shared() bool { return !s.exclusive }

// Close returns the slot to the generator. The session must not be used
// afterwards.
func (s *Session) Close() {
	if s.exclusive {
		s.gen.slots.release(s.slot)
		s.exclusive = false
	}
	s.states = [len(layouts)]*laneState{}
	s.gen = nil
}

func (s *Session) state(w Width) *laneState {
	i := w.mustIndex()
	st := s.states[i]
	if st == nil {
		st = &laneState{}
		s.states[i] = st
	}
	return st
}

// advance moves st to the next slot after reading the clock once.
func (s *Session) advance(st *laneState, limit uint64) {
	ts := s.gen.now()
	switch {
	case !st.primed || ts > st.last:
		st.primed = true
		st.last = ts
		st.seq = 0
	case st.seq >= limit:
		if ts < st.last {
			s.gen.stats.driftClamps.Add(1)
		}
		st.last = s.gen.waitNext(st.last)
		st.seq = 0
	default:
		if ts < st.last {
			s.gen.stats.driftClamps.Add(1)
		}
		st.seq++
	}
}

// Generate returns the next ID of width w. It never fails; sequence
// exhaustion and backwards clock steps only add latency. It panics on an
// unsupported width.
func (s *Session) Generate(w Width) ID {
	l := w.Layout()
	if !l.HasThread() {
		ts, seq, _ := s.gen.reserveShort(w, 1)
		return s.gen.packShort(l, ts, seq)
	}
	st := s.state(w)
	s.advance(st, l.maxSequence())
	return s.pack(l, st)
}

// Next returns the next ID of width w encoded with e.
func (s *Session) Next(w Width, e Encoding) string {
	return Encode(s.Generate(w), e)
}

func (s *Session) pack(l Layout, st *laneState) ID {
	topo := s.gen.topo
	id := ID{width: l.Width}
	bw := bitWriter{buf: id.buf[:l.Width.Bytes()]}
	bw.put(uint64(st.last), l.TimestampBits)
	bw.put(uint64(topo.NodeID()), l.NodeBits)
	bw.put(uint64(topo.ShardID()), l.ShardBits)
	bw.put(uint64(s.slot), l.ThreadBits)
	bw.put(st.seq, l.SequenceBits)
	if l.EntropyBits > 0 {
		s.gen.fillEntropy(&bw, l, s.slot, s.serial, st.draws)
		st.draws++
	}
	return id
}

// fillEntropy writes l.EntropyBits from a splitmix64 stream keyed by the
// generator seed, the session serial, the slot, the width and the per-state
// draw counter.
func (g *Generator) fillEntropy(bw *bitWriter, l Layout, slot uint8, serial, draw uint64) {
	x := mix64(g.seed^mix64(serial+1)) ^ uint64(slot)<<56 ^ uint64(l.Width)<<40 ^ draw*0x9e3779b97f4a7c15
	for left := l.EntropyBits; left > 0; {
		n := min(left, 64)
		x += 0x9e3779b97f4a7c15
		bw.put(mix64(x), n)
		left -= n
	}
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Stats counts the rare events of the generation path.
type Stats struct {
	DriftClamps      uint64 `json:"drift_clamps"`
	ExhaustionWaits  uint64 `json:"exhaustion_waits"`
	BorrowedMillis   uint64 `json:"borrowed_millis"`
	SharedSessions   uint64 `json:"shared_sessions"`
	ActiveSessions   int    `json:"active_sessions"`
	SequentialIssued uint64 `json:"sequential_issued"`
}

type engineStats struct {
	driftClamps     atomic.Uint64
	exhaustionWaits atomic.Uint64
	borrowedMillis  atomic.Uint64
	sharedSessions  atomic.Uint64
}

// Stats returns a snapshot of the generator counters.
func (g *Generator) Stats() Stats {
	return Stats{
		DriftClamps:      g.stats.driftClamps.Load(),
		ExhaustionWaits:  g.stats.exhaustionWaits.Load(),
		BorrowedMillis:   g.stats.borrowedMillis.Load(),
		SharedSessions:   g.stats.sharedSessions.Load(),
		ActiveSessions:   g.slots.inUse(),
		SequentialIssued: g.sequential.Load(),
	}
}
