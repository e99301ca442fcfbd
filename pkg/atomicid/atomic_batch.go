package atomicid

// GenerateBatch returns n IDs of width w, identical to n successive Generate
// calls under the same clock. The clock is read once per millisecond run
// instead of once per ID. n <= 0 returns an empty slice.
func (s *Session) GenerateBatch(w Width, n int) []ID {
	l := w.Layout()
	if n <= 0 {
		return []ID{}
	}
	out := make([]ID, 0, n)

	if !l.HasThread() {
		for len(out) < n {
			ts, start, got := s.gen.reserveShort(w, n-len(out))
			for i := 0; i < got; i++ {
				out = append(out, s.gen.packShort(l, ts, start+uint64(i)))
			}
		}
		return out
	}

	st := s.state(w)
	limit := l.maxSequence()
	for len(out) < n {
		s.advance(st, limit)
		out = append(out, s.pack(l, st))
		// Remaining capacity of this millisecond.
		for len(out) < n && st.seq < limit {
			st.seq++
			out = append(out, s.pack(l, st))
		}
	}
	return out
}

// NextBatch is GenerateBatch with every ID encoded with e.
func (s *Session) NextBatch(w Width, e Encoding, n int) []string {
	ids := s.GenerateBatch(w, n)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = Encode(id, e)
	}
	return out
}
