package bwe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUpdateNeverExceedsConfiguredBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		e := New(cfg)
		now := time.Unix(0, 0)
		for i := 0; i < rapid.IntRange(1, 200).Draw(rt, "n"); i++ {
			sent := uint64(rapid.IntRange(1, 1000).Draw(rt, "sent"))
			lost := uint64(rapid.IntRange(0, int(sent)).Draw(rt, "lost"))
			rtt := rapid.Float64Range(0, 1000).Draw(rt, "rtt")
			jitterMs := rapid.Float64Range(0, 500).Draw(rt, "jitter")
			now = now.Add(time.Duration(rapid.IntRange(1, 2000).Draw(rt, "dt")) * time.Millisecond)
			got := e.Update(now, Feedback{PacketsSent: sent, PacketsLost: lost, RTTMs: rtt, JitterMs: jitterMs})
			require.GreaterOrEqual(rt, got, cfg.MinBitrateBPS)
			require.LessOrEqual(rt, got, cfg.MaxBitrateBPS)
		}
	})
}

func TestSustainedHighLossDecreasesBitrate(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	now := time.Unix(0, 0)
	start := e.BitrateBPS()
	for i := 0; i < 10; i++ {
		now = now.Add(2 * time.Second) // exceed hold time each round
		e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 50})
	}
	require.Less(t, e.BitrateBPS(), start)
}

func TestHighRTTAloneDecreasesBitrate(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	now := time.Unix(0, 0)
	start := e.BitrateBPS()
	for i := 0; i < 10; i++ {
		now = now.Add(2 * time.Second)
		e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 0, RTTMs: 450})
	}
	require.Less(t, e.BitrateBPS(), start)
}

func TestDecreaseRespectsHoldTime(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	now := time.Unix(0, 0)
	first := e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 90})
	now = now.Add(100 * time.Millisecond) // well within hold time
	second := e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 90})
	require.Equal(t, first, second)
}

func TestSustainedLowLossIncreasesBitrate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBitrateBPS = cfg.MinBitrateBPS
	e := New(cfg)
	now := time.Unix(0, 0)
	prev := e.BitrateBPS()
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		cur := e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 0})
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.Greater(t, prev, cfg.MinBitrateBPS)
}

func TestOnBitrateChangeFiresWithOldAndNew(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	var fired int
	var lastOld, lastNew int
	e.OnBitrateChange(func(oldBPS, newBPS int, tier Tier) {
		fired++
		lastOld, lastNew = oldBPS, newBPS
	})
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 0})
	}
	require.Greater(t, fired, 0)
	require.NotEqual(t, lastOld, lastNew)
}

func TestTierClassificationBoundaries(t *testing.T) {
	require.Equal(t, TierExcellent, tierFor(0, 10, 5))
	require.Equal(t, TierGood, tierFor(0.02, 80, 30))
	require.Equal(t, TierFair, tierFor(0.08, 150, 60))
	require.Equal(t, TierPoor, tierFor(0.15, 300, 0))
	require.Equal(t, TierBad, tierFor(0.5, 500, 0))
}

func TestDecreaseTriggeredByRTTEvenWithoutLoss(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	now := time.Unix(0, 0)
	before := e.BitrateBPS()
	e.Update(now, Feedback{PacketsSent: 100, PacketsLost: 0, RTTMs: 500})
	require.Less(t, e.BitrateBPS(), before)
}
