package rtpsession

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuildPacketSequenceAndTimestampAdvance(t *testing.T) {
	s := New(0x11223344, 0, 8000)
	p1 := s.BuildPacket([]byte{1, 2, 3}, false, 160)
	p2 := s.BuildPacket([]byte{4, 5, 6}, false, 160)

	require.Equal(t, p1.SequenceNumber+1, p2.SequenceNumber)
	require.Equal(t, p1.Timestamp+160, p2.Timestamp)
	require.Equal(t, uint32(0x11223344), p1.SSRC)
}

func TestSequenceWrapsAt16Bit(t *testing.T) {
	s := New(1, 0, 8000)
	s.sendSeq.v = 0xFFFF
	p := s.BuildPacket(nil, false, 160)
	require.Equal(t, uint16(0), p.SequenceNumber)
}

func TestParseRejectsShortPacket(t *testing.T) {
	s := New(1, 0, 8000)
	_, err := s.Parse([]byte{1, 2, 3}, time.Now())
	require.Error(t, err)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	s := New(1, 0, 8000)
	buf := make([]byte, 12)
	buf[0] = 0x00 // version 0
	_, err := s.Parse(buf, time.Now())
	require.Error(t, err)
}

func TestParseRoundTripPreservesPayloadAndExtendsSequence(t *testing.T) {
	sender := New(0xAABBCCDD, 0, 8000)
	receiver := New(0xAABBCCDD, 0, 8000)

	pkt := sender.BuildPacket([]byte("hello"), true, 160)
	raw, err := pkt.Marshal()
	require.NoError(t, err)

	parsed, err := receiver.Parse(raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), parsed.Payload)
	require.Equal(t, uint32(pkt.SequenceNumber), parsed.SeqExt)
	require.True(t, parsed.Marker)
}

// TestExtendedSequenceMonotonicUnderWrap covers invariant: extended sequence
// numbers strictly increase across a 16-bit sequence rollover.
func TestExtendedSequenceMonotonicUnderWrap(t *testing.T) {
	r := New(1, 0, 8000)
	var prev uint32
	seq := uint16(65533)
	for i := 0; i < 6; i++ {
		ext := r.extendSequence(seq)
		if i > 0 {
			require.Greater(t, ext, prev)
		}
		prev = ext
		seq++
	}
}

func TestReceiverJitterIsNonNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := New(1, 0, 8000)
		base := time.Now()
		seq := uint16(0)
		ts := uint32(0)
		for i := 0; i < rapid.IntRange(2, 50).Draw(rt, "n"); i++ {
			h := rtp.Header{Version: 2, SequenceNumber: seq, Timestamp: ts, SSRC: 1}
			raw, err := h.Marshal()
			require.NoError(rt, err)
			arrival := base.Add(time.Duration(i) * 20 * time.Millisecond)
			_, err = s.Parse(raw, arrival)
			require.NoError(rt, err)
			seq++
			ts += 160
			require.GreaterOrEqual(rt, s.JitterMs(), 0.0)
		}
	})
}

func TestSenderReportIntervalJitterBounds(t *testing.T) {
	lo := NextSenderReportInterval(-1)
	hi := NextSenderReportInterval(1)
	require.Equal(t, 4*time.Second, lo)
	require.Equal(t, 6*time.Second, hi)
}

func TestReceiverReportFractionLostComputation(t *testing.T) {
	s := New(1, 0, 8000)
	rr := s.BuildReceiverReport(2, 100, 10, nil)
	require.Len(t, rr.Reports, 1)
	require.InDelta(t, 25, rr.Reports[0].FractionLost, 1) // 10/100 * 256 ≈ 25.6
}
