package rtpsession

import (
	"time"

	"github.com/pion/rtcp"
)

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01), used to build 64-bit NTP timestamps for
// sender reports.
const ntpEpochOffset = 2208988800

// toNTP converts a wall-clock time to a 64-bit NTP timestamp (32.32 fixed point).
func toNTP(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return secs | frac
}

// fromNTPMiddle extracts the middle 32 bits of an NTP timestamp, the form
// used for LastSenderReport/LastReceiverReport fields (RFC 3550 §6.4.1).
func fromNTPMiddle(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}

// SenderReportState is everything needed to build and later reconcile a
// sender report, kept separate from Session so packet tests can exercise it
// without needing a live clock.
type SenderReportState struct {
	lastSR     uint32
	lastSRTime time.Time
}

// BuildSenderReport emits an RTCP SR reflecting the current send-side state,
// per spec §4.4's "periodic sender report every ~5s (jittered ±20%)".
func (s *Session) BuildSenderReport(now time.Time, srState *SenderReportState) *rtcp.SenderReport {
	ntp := toNTP(now)
	srState.lastSR = fromNTPMiddle(ntp)
	srState.lastSRTime = now

	return &rtcp.SenderReport{
		SSRC:        s.ssrc,
		NTPTime:     ntp,
		RTPTime:     s.sendTS,
		PacketCount: uint32(s.packetsSent),
		OctetCount:  uint32(s.bytesSent),
	}
}

// BuildReceiverReport emits an RTCP RR summarizing receive-side quality for
// the remote SSRC this session is tracking, including fraction lost in the
// most recent reporting interval and the cumulative loss count.
func (s *Session) BuildReceiverReport(remoteSSRC uint32, expectedSinceLastReport, lostSinceLastReport uint32, remoteSR *SenderReportState) *rtcp.ReceiverReport {
	var fraction uint8
	if expectedSinceLastReport > 0 {
		fraction = uint8((uint64(lostSinceLastReport) * 256) / uint64(expectedSinceLastReport))
	}

	var lsr, dlsr uint32
	if remoteSR != nil && !remoteSR.lastSRTime.IsZero() {
		lsr = remoteSR.lastSR
		dlsr = uint32(time.Since(remoteSR.lastSRTime).Seconds() * 65536)
	}

	return &rtcp.ReceiverReport{
		SSRC: s.ssrc,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               remoteSSRC,
				FractionLost:       fraction,
				TotalLost:          uint32(s.packetsLost),
				LastSequenceNumber: s.cycles<<16 | uint32(s.maxSeq),
				Jitter:             uint32(s.jitter),
				LastSenderReport:   lsr,
				Delay:              dlsr,
			},
		},
	}
}

// RecordReceivedSenderReport captures the LSR state needed to compute RTT
// once this SR is reflected back in a peer's receiver report (RFC 3550
// §6.4.1). arrival is when the SR was received locally, used as the
// reference clock for DLSR in BuildReceiverReport.
func RecordReceivedSenderReport(sr *rtcp.SenderReport, arrival time.Time) SenderReportState {
	return SenderReportState{
		lastSR:     fromNTPMiddle(sr.NTPTime),
		lastSRTime: arrival,
	}
}

// ReportMetrics is the ingested view of a peer's RTCP RR, the shape the
// bandwidth estimator (C6) consumes as its loss/RTT input.
type ReportMetrics struct {
	FractionLost float64 // 0..1
	CumulativeLost uint32
	JitterMs     float64
	RTT          time.Duration
	HasRTT       bool
}

// IngestReceiverReport extracts loss/jitter/RTT from a received RR, computing
// RTT = now - LSR - DLSR when this session's own SR was reflected back
// (RFC 3550 §6.4.1).
func (s *Session) IngestReceiverReport(rr *rtcp.ReceiverReport, ourSR *SenderReportState, now time.Time) []ReportMetrics {
	out := make([]ReportMetrics, 0, len(rr.Reports))
	for _, rep := range rr.Reports {
		m := ReportMetrics{
			FractionLost:   float64(rep.FractionLost) / 256,
			CumulativeLost: rep.TotalLost,
			JitterMs:       float64(rep.Jitter) * 1000 / float64(s.clockRate),
		}
		if rep.LastSenderReport != 0 && rep.LastSenderReport == ourSR.lastSR {
			nowNTPMiddle := fromNTPMiddle(toNTP(now))
			rtt32 := nowNTPMiddle - rep.LastSenderReport - rep.Delay
			m.RTT = time.Duration(float64(rtt32)/65536*float64(time.Second))
			m.HasRTT = true
		}
		out = append(out, m)
	}
	return out
}

// NextSenderReportInterval returns the jittered SR interval described by
// spec §4.4 (~5s, ±20%), taking a caller-supplied jitter fraction in [-1,1]
// so tests can exercise the boundary deterministically instead of depending
// on math/rand.
func NextSenderReportInterval(jitterFraction float64) time.Duration {
	base := 5 * time.Second
	return base + time.Duration(float64(base)*0.2*jitterFraction)
}
