package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadTypeTableFixedMapping(t *testing.T) {
	cases := []struct {
		id ID
		pt uint8
	}{
		{IDG711ULaw, 0},
		{IDG711ALaw, 8},
		{IDG722, 9},
		{IDOpus, 111},
	}
	for _, c := range cases {
		info, ok := InfoForID(c.id)
		require.True(t, ok)
		require.Equal(t, c.pt, info.PayloadType)

		back, ok := InfoForPayloadType(c.pt)
		require.True(t, ok)
		require.Equal(t, c.id, back.ID)
	}
}

func TestG722ClockRateQuirk(t *testing.T) {
	info, ok := InfoForID(IDG722)
	require.True(t, ok)
	require.Equal(t, 16000, info.SampleRate)
	require.Equal(t, 8000, info.RTPClockRate)
}

// TestPCMRoundTrip covers invariant #11 (reset idempotence) and the codec
// round-trip laws for the PCM passthrough variant.
func TestPCMRoundTrip(t *testing.T) {
	enc := NewPCMEncoder(8000, 1)
	dec := NewPCMDecoder(8000, 1)

	pcm := []int16{1, -1, 32767, -32768, 0, 1234}
	buf := make([]byte, MaxEncodedSize(IDPCM, len(pcm)))
	n, err := enc.Encode(pcm, buf)
	require.NoError(t, err)

	out := make([]int16, len(pcm))
	m, err := dec.Decode(buf[:n], out)
	require.NoError(t, err)
	require.Equal(t, len(pcm), m)
	require.Equal(t, pcm, out)

	enc.Reset()
	dec.Reset()
	n2, err := enc.Encode(pcm, buf)
	require.NoError(t, err)
	require.Equal(t, n, n2)
}

func TestDecayedRepetitionPLCFadesToZero(t *testing.T) {
	last := []int16{1000, 1000, 1000, 1000}
	out := make([]int16, 40)
	n, err := decayedRepetitionPLC(last, out, 40)
	require.NoError(t, err)
	require.Equal(t, 40, n)
	require.Less(t, abs(out[39]), abs(out[0]))
}

func TestDecayedRepetitionPLCWithNoHistoryIsSilence(t *testing.T) {
	out := make([]int16, 10)
	n, err := decayedRepetitionPLC(nil, out, 10)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	for _, s := range out {
		require.Equal(t, int16(0), s)
	}
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
