package atomicid

import "sync"

// borrow takes an idle session from the pool or opens a new one.
func (g *Generator) borrow() *Session {
	select {
	case s := <-g.idle:
		return s
	default:
		return g.NewSession()
	}
}

// giveBack parks s for reuse, closing it when the pool is full.
func (g *Generator) giveBack(s *Session) {
	select {
	case g.idle <- s:
	default:
		s.Close()
	}
}

// Generate returns one ID from a pooled session. Safe for concurrent use.
func (g *Generator) Generate(w Width) ID {
	s := g.borrow()
	defer g.giveBack(s)
	return s.Generate(w)
}

// GenerateBatch returns n IDs from one pooled session.
func (g *Generator) GenerateBatch(w Width, n int) []ID {
	s := g.borrow()
	defer g.giveBack(s)
	return s.GenerateBatch(w, n)
}

// New returns one encoded ID.
func (g *Generator) New(w Width, e Encoding) string {
	return Encode(g.Generate(w), e)
}

// Batch returns n encoded IDs.
func (g *Generator) Batch(w Width, e Encoding, n int) []string {
	s := g.borrow()
	defer g.giveBack(s)
	return s.NextBatch(w, e, n)
}

// Drain closes every idle session in the pool.
func (g *Generator) Drain() {
	for {
		select {
		case s := <-g.idle:
			s.Close()
		default:
			return
		}
	}
}

var defaultGenerator = sync.OnceValue(func() *Generator {
	return NewGenerator(Config{Topology: Default})
})

// DefaultGenerator is the generator behind the package-level helpers. It
// reads the Default topology.
func DefaultGenerator() *Generator { return defaultGenerator() }

func New(w Width, e Encoding) string { return defaultGenerator().New(w, e) }

func Batch(w Width, e Encoding, n int) []string { return defaultGenerator().Batch(w, e, n) }

func Generate(w Width) ID { return defaultGenerator().Generate(w) }

func GenerateBatch(w Width, n int) []ID { return defaultGenerator().GenerateBatch(w, n) }

// Sequential returns the next sequential 64-bit ID in encoding e.
func Sequential(e Encoding) string {
	return Encode(defaultGenerator().Sequential(), e)
}

// SequentialBatch returns n sequential 64-bit IDs in encoding e.
func SequentialBatch(e Encoding, n int) []string {
	ids := defaultGenerator().SequentialBatch(n)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = Encode(id, e)
	}
	return out
}
