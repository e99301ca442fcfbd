package atomicid

// Sequential returns the next value of a plain 64-bit counter starting at
// zero. The values are unique and increasing within the generator but carry
// no timestamp or topology.
func (g *Generator) Sequential() ID {
	return FromUint64(W64, g.sequential.Add(1)-1)
}

// SequentialBatch reserves n consecutive counter values at once.
func (g *Generator) SequentialBatch(n int) []ID {
	if n <= 0 {
		return []ID{}
	}
	end := g.sequential.Add(uint64(n))
	out := make([]ID, n)
	for i := range out {
		out[i] = FromUint64(W64, end-uint64(n)+uint64(i))
	}
	return out
}
