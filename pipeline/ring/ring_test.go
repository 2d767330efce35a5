package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRingBasicReadWrite(t *testing.T) {
	r := New(16, OverflowTruncate)
	n := r.Write([]int16{1, 2, 3, 4})
	require.Equal(t, 4, n)
	dst := make([]int16, 4)
	got := r.Read(dst)
	require.Equal(t, 4, got)
	require.Equal(t, []int16{1, 2, 3, 4}, dst)
}

func TestRingTruncatesOnOverflow(t *testing.T) {
	r := New(4, OverflowTruncate)
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = int16(i)
	}
	n := r.Write(samples)
	require.LessOrEqual(t, n, r.Capacity())
}

func TestRingUnderrunReportsShortfall(t *testing.T) {
	r := New(16, OverflowTruncate)
	r.Write([]int16{1, 2})
	dst := make([]int16, 4)
	n := r.Read(dst)
	require.Equal(t, 2, n)
}

// TestRingFIFOProperty checks invariant 1 from spec §8: for any interleaving
// of writes and reads, the concatenation of read samples is a prefix of the
// concatenation of written samples.
func TestRingFIFOProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := New(64, OverflowTruncate)
		var written, read []int16
		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 1, 200).Draw(rt, "ops")
		for _, op := range ops {
			if op == 0 {
				n := rapid.IntRange(1, 8).Draw(rt, "writeLen")
				batch := make([]int16, n)
				for i := range batch {
					batch[i] = int16(len(written) + i)
				}
				wrote := r.Write(batch)
				written = append(written, batch[:wrote]...)
			} else {
				n := rapid.IntRange(1, 8).Draw(rt, "readLen")
				dst := make([]int16, n)
				got := r.Read(dst)
				read = append(read, dst[:got]...)
			}
		}
		require.LessOrEqual(rt, len(read), len(written))
		require.Equal(rt, written[:len(read)], read)
	})
}
