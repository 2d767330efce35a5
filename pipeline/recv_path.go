package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/pion/rtp"
	"go.uber.org/zap"

	"voicecore/pipeline/jitter"
	"voicecore/pipeline/srtp"
	"voicecore/pipeline/stats"
)

// recvLoop is the network receive thread (spec §4.9's receive path):
// transport -> RTCP/SRTP demux -> RTP parse -> jitter buffer insert.
func (o *Orchestrator) recvLoop(ctx context.Context) {
	defer o.wg.Done()
	if o.transport == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := o.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Warn("transport recv failed", zap.Error(err))
			continue
		}
		if isRTCPPacket(raw) {
			o.ingestRTCP(raw)
			continue
		}
		o.ingestPacket(raw, time.Now())
	}
}

func (o *Orchestrator) ingestPacket(raw []byte, arrival time.Time) {
	if len(raw) < 12 {
		return
	}

	var hdr rtp.Header
	if err := hdr.Unmarshal(raw); err != nil {
		o.log.Warn("rtp header parse failed", zap.Error(err))
		return
	}
	headerLen := hdr.MarshalSize()
	o.remoteSSRC = hdr.SSRC

	plaintext := raw
	if o.srtpRecv != nil {
		pt, err := o.srtpRecv.Unprotect(raw, headerLen, hdr.SequenceNumber)
		if err != nil {
			// Auth failure, replay, and too-old are single-frame errors: drop
			// and count, never escalate to EventFatalError (spec §7 — this
			// is what keeps a replayed/corrupted packet from faulting the
			// whole pipeline, per S4 and the single-bit-flip property).
			switch {
			case errors.Is(err, srtp.ErrAuthFailed):
				o.log.Warn("srtp unprotect: auth failed, dropping frame", zap.Error(err))
				o.statsAgg.Record(stats.FrameEvent{PacketsLost: 1})
			case errors.Is(err, srtp.ErrReplay), errors.Is(err, srtp.ErrTooOld):
				o.log.Warn("srtp unprotect: replay/too-old, dropping frame", zap.Error(err))
				o.statsAgg.Record(stats.FrameEvent{PacketsLost: 1})
			default:
				o.log.Warn("srtp unprotect failed", zap.Error(err))
			}
			return
		}
		plaintext = append(append([]byte(nil), raw[:headerLen]...), pt...)
	}

	parsed, err := o.rtpRecv.Parse(plaintext, arrival)
	if err != nil {
		o.log.Warn("rtp parse failed", zap.Error(err))
		return
	}

	o.jitterBuf.Insert(jitter.Packet{
		SeqExt:    parsed.SeqExt,
		Timestamp: parsed.Timestamp,
		Payload:   append([]byte(nil), parsed.Payload...), // the transport may reuse raw
		Received:  arrival,
	})

	o.statsAgg.Record(stats.FrameEvent{
		BytesReceived: len(raw), PacketsReceived: 1,
		JitterMs: o.rtpRecv.JitterMs(),
	})
}

// playoutLoop is the playout clock (spec §4.7/§4.9): pops one jitter-buffer
// decision per frame tick, decodes or conceals accordingly, runs the
// receive-side DSP chain, and feeds the result to the playback ring and (for
// AEC) the far-end reference path.
func (o *Orchestrator) playoutLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.playoutFrame()
		}
	}
}

// playoutFrame decodes (or conceals) one frame at the codec's native rate,
// runs the receive-side DSP chain at that rate, then (if the host's
// configured rate differs) resamples up to host rate before pushing it to
// the AEC far-end reference and the playback ring. Buffers are sized fresh
// each tick since a runtime codec swap (SetCodec) can change the codec's
// native frame size between ticks.
func (o *Orchestrator) playoutFrame() {
	o.applyPendingConfig()

	codecPCM := make([]int16, o.codecFrameSize)
	hostPCM := codecPCM
	if o.resampleRecv != nil {
		hostPCM = make([]int16, o.cfg.FrameSize())
	}

	pkt, directive := o.jitterBuf.Pop()

	var n int
	var err error
	switch directive {
	case jitter.DirectivePlay:
		n, err = o.decoder.Decode(pkt.Payload, codecPCM)
		o.silenceFadeGain = 1
	case jitter.DirectiveSkip:
		n, err = o.decoder.Decode(pkt.Payload, codecPCM)
		o.statsAgg.Record(stats.FrameEvent{PacketsLost: 1})
		o.silenceFadeGain = 1
	case jitter.DirectiveConceal, jitter.DirectiveStretch:
		n, err = o.decoder.PLC(codecPCM, len(codecPCM))
		o.statsAgg.Record(stats.FrameEvent{PacketsConcealed: 1})
		o.silenceFadeGain = 1
	case jitter.DirectiveSilence:
		// Past plc_max_consecutive, PLC synthesis stops; fade the last
		// successfully produced frame to silence instead (spec §4.7) until
		// playout resumes on a real packet.
		if len(o.lastPlayoutPCM) == len(codecPCM) {
			for i := range codecPCM {
				codecPCM[i] = int16(float64(o.lastPlayoutPCM[i]) * o.silenceFadeGain)
			}
		}
		n = len(codecPCM)
		o.silenceFadeGain -= 0.2
		if o.silenceFadeGain < 0 {
			o.silenceFadeGain = 0
		}
		o.statsAgg.Record(stats.FrameEvent{PacketsConcealed: 1})
	}
	if err != nil {
		o.log.Warn("decode/plc failed", zap.Error(err))
		for i := range codecPCM {
			codecPCM[i] = 0
		}
		n = len(codecPCM)
	}
	for i := n; i < len(codecPCM); i++ {
		codecPCM[i] = 0
	}

	if directive != jitter.DirectiveSilence {
		if len(o.lastPlayoutPCM) != len(codecPCM) {
			o.lastPlayoutPCM = make([]int16, len(codecPCM))
		}
		copy(o.lastPlayoutPCM, codecPCM)
	}

	o.recvChain.Process(codecPCM)

	out := codecPCM
	if o.resampleRecv != nil {
		if _, err := o.resampleRecv.Process(codecPCM, hostPCM); err != nil {
			o.log.Warn("resample to host rate failed", zap.Error(err))
			for i := range hostPCM {
				hostPCM[i] = 0
			}
		}
		out = hostPCM
	}

	if o.aec != nil {
		o.aec.PushFarEnd(out)
	}

	o.playbackRing.Write(out)
}
