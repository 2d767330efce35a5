package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/pion/rtcp"
	"go.uber.org/zap"

	"voicecore/pipeline/bwe"
	"voicecore/pipeline/rtpsession"
)

// isRTCPPacket distinguishes an RTCP compound packet from RTP on a shared
// transport by payload type (RFC 5761 §4: RTCP PTs 200-204 never overlap
// the dynamic/static RTP PT range this pipeline uses).
func isRTCPPacket(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	pt := buf[1]
	return pt >= 200 && pt <= 204
}

// rtcpLoop periodically builds and sends a compound SR+RR report (spec
// §4.4: "periodic sender report every ~5s, jittered ±20%"). Received RTCP is
// handled inline in recvLoop via ingestRTCP, not on this goroutine.
func (o *Orchestrator) rtcpLoop(ctx context.Context) {
	defer o.wg.Done()
	if o.transport == nil {
		return
	}

	timer := time.NewTimer(rtpsession.NextSenderReportInterval(rand.Float64()*2 - 1))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			o.sendRTCPReport()
			timer.Reset(rtpsession.NextSenderReportInterval(rand.Float64()*2 - 1))
		}
	}
}

// sendRTCPReport emits a compound SR (about our send-side stream) + RR
// (about what we've received of the peer's stream) per spec §4.4/C4.
func (o *Orchestrator) sendRTCPReport() {
	now := time.Now()

	sr := o.rtpSend.BuildSenderReport(now, &o.srSendState)

	recvSnap := o.rtpRecv.Snapshot()
	expectedSince := uint32((recvSnap.PacketsReceived + recvSnap.PacketsLost) -
		(o.lastRRSnapshot.PacketsReceived + o.lastRRSnapshot.PacketsLost))
	lostSince := uint32(recvSnap.PacketsLost - o.lastRRSnapshot.PacketsLost)
	o.lastRRSnapshot = recvSnap

	var remoteSR *rtpsession.SenderReportState
	if o.remoteSSRC != 0 {
		remoteSR = &o.remoteSRState
	}
	rr := o.rtpRecv.BuildReceiverReport(o.remoteSSRC, expectedSince, lostSince, remoteSR)

	raw, err := rtcp.Marshal([]rtcp.Packet{sr, rr})
	if err != nil {
		o.log.Warn("rtcp marshal failed", zap.Error(err))
		return
	}
	if err := o.transport.Send(raw); err != nil {
		o.log.Warn("rtcp send failed", zap.Error(err))
	}
}

// ingestRTCP parses a received compound RTCP packet, recording the peer's SR
// for our own future RR's LSR/DLSR fields, and feeding any RR's loss/RTT/
// jitter into the bandwidth estimator (spec §2/§4.4: RR ingestion feeds C6,
// replacing the jitter-buffer concealment-ratio proxy this pipeline used
// before a live RTCP channel was wired).
func (o *Orchestrator) ingestRTCP(raw []byte) {
	packets, err := rtcp.Unmarshal(raw)
	if err != nil {
		o.log.Warn("rtcp unmarshal failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, pkt := range packets {
		switch p := pkt.(type) {
		case *rtcp.SenderReport:
			o.remoteSSRC = p.SSRC
			o.remoteSRState = rtpsession.RecordReceivedSenderReport(p, now)

		case *rtcp.ReceiverReport:
			metrics := o.rtpSend.IngestReceiverReport(p, &o.srSendState, now)

			sentNow := o.rtpSend.Snapshot().PacketsSent
			sentSince := sentNow - o.lastBWESentPackets
			o.lastBWESentPackets = sentNow

			for _, m := range metrics {
				lostSince := uint64(m.FractionLost * float64(sentSince))
				var rttMs float64
				if m.HasRTT {
					rttMs = float64(m.RTT.Milliseconds())
				}
				o.estimator.Update(now, bwe.Feedback{
					PacketsSent: sentSince,
					PacketsLost: lostSince,
					RTTMs:       rttMs,
					JitterMs:    m.JitterMs,
				})
			}
		}
	}
}
