// Package stats implements the C10 statistics/MOS package (spec §4.10): a
// per-frame counter aggregator plus an ITU-T G.107 E-model MOS estimate
// derived from one-way delay, packet loss, and codec impairment factors.
package stats

import "time"

// FrameEvent is one accounting update fed in from the send/receive paths.
type FrameEvent struct {
	BytesSent       int
	BytesReceived   int
	PacketsSent     int
	PacketsReceived int
	PacketsLost     int
	PacketsConcealed int
	JitterMs        float64
	RoundTripMs      float64
}

// Aggregator accumulates FrameEvents into running totals and exposes a
// point-in-time Snapshot. It is intentionally not safe for concurrent
// mutation from multiple goroutines; the orchestrator funnels updates
// through its single stats-owning goroutine (spec §5 "single writer").
type Aggregator struct {
	start time.Time

	bytesSent, bytesReceived             uint64
	packetsSent, packetsReceived         uint64
	packetsLost, packetsConcealed        uint64
	lastJitterMs, lastRTTMs              float64
}

func NewAggregator() *Aggregator {
	return &Aggregator{start: time.Time{}}
}

func (a *Aggregator) Record(ev FrameEvent) {
	if a.start.IsZero() {
		a.start = timeNow()
	}
	a.bytesSent += uint64(ev.BytesSent)
	a.bytesReceived += uint64(ev.BytesReceived)
	a.packetsSent += uint64(ev.PacketsSent)
	a.packetsReceived += uint64(ev.PacketsReceived)
	a.packetsLost += uint64(ev.PacketsLost)
	a.packetsConcealed += uint64(ev.PacketsConcealed)
	if ev.JitterMs > 0 {
		a.lastJitterMs = ev.JitterMs
	}
	if ev.RoundTripMs > 0 {
		a.lastRTTMs = ev.RoundTripMs
	}
}

// timeNow is a seam so the aggregator's "session start" bookkeeping doesn't
// force every caller (including workflow-script-driven tests) to supply a
// clock; production code always calls the real clock.
var timeNow = time.Now

// LossFraction returns cumulative loss as a fraction of packets expected
// (received + lost), 0 when nothing has been sent yet.
func (a *Aggregator) LossFraction() float64 {
	expected := a.packetsReceived + a.packetsLost
	if expected == 0 {
		return 0
	}
	return float64(a.packetsLost) / float64(expected)
}

// Snapshot is the public, read-only view of accumulated counters.
type Snapshot struct {
	Duration        time.Duration
	BytesSent, BytesReceived     uint64
	PacketsSent, PacketsReceived uint64
	PacketsLost, PacketsConcealed uint64
	JitterMs, RTTMs               float64
	LossFraction                  float64
	MOS                            float64
}

func (a *Aggregator) Snapshot(codec CodecClass, oneWayDelayMs float64) Snapshot {
	var dur time.Duration
	if !a.start.IsZero() {
		dur = timeNow().Sub(a.start)
	}
	loss := a.LossFraction()
	return Snapshot{
		Duration:         dur,
		BytesSent:        a.bytesSent,
		BytesReceived:    a.bytesReceived,
		PacketsSent:      a.packetsSent,
		PacketsReceived:  a.packetsReceived,
		PacketsLost:       a.packetsLost,
		PacketsConcealed:  a.packetsConcealed,
		JitterMs:          a.lastJitterMs,
		RTTMs:             a.lastRTTMs,
		LossFraction:      loss,
		MOS:               ComputeMOS(oneWayDelayMs, loss, codec),
	}
}
