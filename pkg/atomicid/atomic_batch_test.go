package atomicid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatch_MatchesSingleCalls(t *testing.T) {
	tests := []struct {
		width Width
		n     int
	}{
		{W24, 700},
		{W32, 5000},
		{W64, 70000},
		{W128, 1000},
		{W256, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.width.String(), func(t *testing.T) {
			newGen := func() *Generator {
				return NewGenerator(Config{
					Topology:  testTopology(t, 9, 4),
					Clock:     frozen(777),
					Seed:      2024,
					SpinLimit: 4,
				})
			}

			batchSession := newGen().NewSession()
			defer batchSession.Close()
			loopSession := newGen().NewSession()
			defer loopSession.Close()

			batch := batchSession.GenerateBatch(tt.width, tt.n)
			require.Len(t, batch, tt.n)
			for i, got := range batch {
				want := loopSession.Generate(tt.width)
				require.Equal(t, want, got, "mismatch at %d", i)
			}
		})
	}
}

func TestGenerateBatch_Empty(t *testing.T) {
	gen := NewGenerator(Config{})
	s := gen.NewSession()
	defer s.Close()

	assert.Empty(t, s.GenerateBatch(W64, 0))
	assert.Empty(t, s.GenerateBatch(W64, -3))
	assert.NotNil(t, s.NextBatch(W128, Base58, 0))
}

func TestGenerateBatch_ContinuesSession(t *testing.T) {
	gen := NewGenerator(Config{Topology: testTopology(t, 1, 0), Clock: frozen(42)})
	s := gen.NewSession()
	defer s.Close()

	first := s.Generate(W64)
	batch := s.GenerateBatch(W64, 10)
	after := s.Generate(W64)

	assert.Equal(t, 1, batch[0].Compare(first))
	for i := 1; i < len(batch); i++ {
		assert.Equal(t, 1, batch[i].Compare(batch[i-1]))
	}
	assert.Equal(t, uint64(11), after.Fields().Sequence)
}

func TestNextBatch_FixedLength(t *testing.T) {
	gen := NewGenerator(Config{})
	s := gen.NewSession()
	defer s.Close()

	for _, w := range Widths {
		for _, enc := range Encodings {
			for _, str := range s.NextBatch(w, enc, 20) {
				require.Len(t, str, FixedLength(w, enc))
			}
		}
	}
}

func BenchmarkGenerateBatch64(b *testing.B) {
	gen := NewGenerator(Config{})
	s := gen.NewSession()
	defer s.Close()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.GenerateBatch(W64, 1000)
	}
}
