package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FrameDuration:     20 * time.Millisecond,
		InitialDelay:      60 * time.Millisecond,
		MinDelay:          20 * time.Millisecond,
		MaxDelay:          200 * time.Millisecond,
		PLCMaxConsecutive: 5,
	}
}

func TestEmptyBufferConceals(t *testing.T) {
	b := New(testConfig())
	_, d := b.Pop()
	require.Equal(t, DirectiveConceal, d)
}

func TestPrebufferingHoldsUntilTargetDelayReached(t *testing.T) {
	b := New(testConfig())
	b.Insert(Packet{SeqExt: 0})
	_, d := b.Pop()
	require.Equal(t, DirectiveConceal, d, "one 20ms frame is below the 60ms initial target delay")
}

func TestPlaysInOrderOnceTargetDelayReached(t *testing.T) {
	b := New(testConfig())
	for i := uint32(0); i < 4; i++ {
		b.Insert(Packet{SeqExt: i, Payload: []byte{byte(i)}})
	}
	pkt, d := b.Pop()
	require.Equal(t, DirectivePlay, d)
	require.Equal(t, uint32(0), pkt.SeqExt)
}

func TestOutOfOrderPacketsPlayInSequenceOrder(t *testing.T) {
	b := New(testConfig())
	for _, seq := range []uint32{3, 1, 0, 2} {
		b.Insert(Packet{SeqExt: seq, Payload: []byte{byte(seq)}})
	}
	var order []uint32
	for i := 0; i < 4; i++ {
		pkt, d := b.Pop()
		require.Equal(t, DirectivePlay, d)
		order = append(order, pkt.SeqExt)
	}
	require.Equal(t, []uint32{0, 1, 2, 3}, order)
}

func TestMissingPacketConcealsThenResumes(t *testing.T) {
	b := New(testConfig())
	b.Insert(Packet{SeqExt: 0})
	b.Insert(Packet{SeqExt: 1})
	b.Insert(Packet{SeqExt: 2})
	b.Insert(Packet{SeqExt: 4}) // seq 3 never arrives

	_, d := b.Pop()
	require.Equal(t, DirectivePlay, d) // 0
	_, d = b.Pop()
	require.Equal(t, DirectivePlay, d) // 1
	_, d = b.Pop()
	require.Equal(t, DirectivePlay, d) // 2
	_, d = b.Pop()
	require.Equal(t, DirectiveConceal, d) // 3 missing, not yet over PLC limit
	_, d = b.Pop()
	require.Equal(t, DirectivePlay, d) // 4
}

func TestStaleLateArrivalIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDelay = 20 * time.Millisecond // one buffered frame ends prebuffering
	b := New(cfg)
	b.Insert(Packet{SeqExt: 0})
	b.Insert(Packet{SeqExt: 1})
	b.Pop() // plays seq 0, nextSeq becomes 1

	b.Insert(Packet{SeqExt: 0}) // late arrival behind playout point
	require.Equal(t, 1, b.Depth())
}

func TestConsecutiveConcealmentExceedsLimitTriggersSilence(t *testing.T) {
	cfg := testConfig()
	cfg.PLCMaxConsecutive = 3
	b := New(cfg)
	b.Insert(Packet{SeqExt: 0})
	b.Insert(Packet{SeqExt: 1})
	b.Insert(Packet{SeqExt: 2})
	b.Pop() // play 0
	b.Pop() // play 1
	b.Pop() // play 2

	var lastDirective Directive
	for i := 0; i < 4; i++ {
		_, lastDirective = b.Pop()
		if lastDirective == DirectiveSilence {
			break
		}
	}
	require.Equal(t, DirectiveSilence, lastDirective)
	require.Equal(t, StateDraining, b.State())
}

func TestDrainingRevertsToPlayingOnNextArrival(t *testing.T) {
	cfg := testConfig()
	cfg.PLCMaxConsecutive = 2
	cfg.InitialDelay = 20 * time.Millisecond // one buffered frame ends prebuffering
	b := New(cfg)
	b.Insert(Packet{SeqExt: 0})
	b.Pop() // play 0, nextSeq now 1

	var d Directive
	for i := 0; i < 3; i++ {
		_, d = b.Pop()
	}
	require.Equal(t, DirectiveSilence, d)
	require.Equal(t, StateDraining, b.State())

	b.Insert(Packet{SeqExt: b.nextSeq})
	pkt, d := b.Pop()
	require.Equal(t, DirectivePlay, d)
	require.Equal(t, StatePlaying, b.State())
	require.Equal(t, 0, b.consecutiveConcealed)
	_ = pkt
}

func TestTargetDelayStaysWithinConfiguredBounds(t *testing.T) {
	b := New(testConfig())
	for i := uint32(0); i < 50; i++ {
		b.Insert(Packet{SeqExt: i})
		b.Pop()
		require.GreaterOrEqual(t, b.TargetDelay(), b.cfg.MinDelay)
		require.LessOrEqual(t, b.TargetDelay(), b.cfg.MaxDelay)
	}
}
