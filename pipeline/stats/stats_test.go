package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMOSStaysWithinDocumentedRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		delay := rapid.Float64Range(0, 1000).Draw(rt, "delay")
		loss := rapid.Float64Range(0, 1).Draw(rt, "loss")
		codec := CodecClass(rapid.IntRange(0, 3).Draw(rt, "codec"))
		mos := ComputeMOS(delay, loss, codec)
		require.GreaterOrEqual(rt, mos, 1.0)
		require.LessOrEqual(rt, mos, 4.5)
	})
}

func TestMOSDecreasesAsLossIncreases(t *testing.T) {
	low := ComputeMOS(50, 0.0, CodecClassG711)
	high := ComputeMOS(50, 0.2, CodecClassG711)
	require.Greater(t, low, high)
}

func TestMOSDecreasesAsDelayIncreases(t *testing.T) {
	low := ComputeMOS(20, 0.0, CodecClassG711)
	high := ComputeMOS(400, 0.0, CodecClassG711)
	require.Greater(t, low, high)
}

func TestPristineConditionsYieldHighMOS(t *testing.T) {
	mos := ComputeMOS(20, 0.0, CodecClassG711)
	require.Greater(t, mos, 4.0)
}

func TestAggregatorLossFractionComputation(t *testing.T) {
	a := NewAggregator()
	a.Record(FrameEvent{PacketsSent: 100, PacketsReceived: 90, PacketsLost: 10})
	require.InDelta(t, 0.1, a.LossFraction(), 0.001)
}

func TestAggregatorSnapshotIncludesMOS(t *testing.T) {
	a := NewAggregator()
	a.Record(FrameEvent{PacketsSent: 100, PacketsReceived: 100, JitterMs: 5, RoundTripMs: 40})
	snap := a.Snapshot(CodecClassG711, 30)
	require.Equal(t, uint64(100), snap.PacketsSent)
	require.Greater(t, snap.MOS, 1.0)
}
