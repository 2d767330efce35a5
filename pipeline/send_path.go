package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voicecore/pipeline/stats"
)

// sendLoop is the capture processing thread (spec §4.9's send path): ring ->
// DSP -> encode -> RTP -> SRTP -> transport, ticked once per configured
// frame duration.
func (o *Orchestrator) sendLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sendFrame()
		}
	}
}

// sendFrame processes one capture-side frame at the host's configured
// sample rate, then (if the codec's native rate differs) resamples into
// codecPCM before encoding — the DSP chain always runs at capture rate so
// AEC/AGC/VAD operate on the same samples the microphone actually produced.
// Buffers are sized fresh each tick since a runtime codec swap (SetCodec)
// can change the codec's native frame size between ticks.
func (o *Orchestrator) sendFrame() {
	o.applyPendingConfig()

	hostPCM := make([]int16, o.cfg.FrameSize())
	codecPCM := hostPCM
	if o.resampleSend != nil {
		codecPCM = make([]int16, o.codecFrameSize)
	}
	encoded := make([]byte, codecMaxEncodedSize(o.codecInfo, o.codecFrameSize))

	n := o.captureRing.Read(hostPCM)
	if n < len(hostPCM) {
		for i := n; i < len(hostPCM); i++ {
			hostPCM[i] = 0 // pad a partial frame with silence rather than stalling the clock
		}
	}

	o.sendChain.Process(hostPCM)

	frameToEncode := hostPCM
	if o.resampleSend != nil {
		if _, err := o.resampleSend.Process(hostPCM, codecPCM); err != nil {
			o.log.Warn("resample to codec rate failed", zap.Error(err))
			return
		}
		frameToEncode = codecPCM
	}

	encLen, err := o.encoder.Encode(frameToEncode, encoded)
	if err != nil {
		o.log.Warn("encode failed", zap.Error(err))
		return
	}
	payload := encoded[:encLen]

	samplesPerFrame := uint32(frameSizeAtClockRate(o.codecInfo, o.cfg.FrameDuration))
	rtpPkt := o.rtpSend.BuildPacket(payload, false, samplesPerFrame)

	// Fired once per produced packet, pre-SRTP, on this send thread (spec
	// §4.9/§6's on_encoded_data(bytes, size, timestamp)). Copied so the
	// asynchronously delivered notification owns its own bytes.
	o.disp.emit(Notification{Event: EventEncodedData, Data: EncodedFrame{
		Payload:      append([]byte(nil), payload...),
		Size:         len(payload),
		TimestampRTP: rtpPkt.Timestamp,
	}})

	header, err := rtpPkt.Header.Marshal()
	if err != nil {
		o.log.Warn("rtp header marshal failed", zap.Error(err))
		return
	}

	var wire []byte
	if o.srtpSend != nil {
		wire, err = o.srtpSend.Protect(header, rtpPkt.Payload, rtpPkt.SequenceNumber)
		if err != nil {
			o.log.Warn("srtp protect failed", zap.Error(err))
			return
		}
	} else {
		full, merr := rtpPkt.Marshal()
		if merr != nil {
			o.log.Warn("rtp marshal failed", zap.Error(merr))
			return
		}
		wire = full
	}

	if o.transport != nil {
		if err := o.transport.Send(wire); err != nil {
			o.log.Warn("transport send failed", zap.Error(err))
		}
	}

	o.statsAgg.Record(stats.FrameEvent{
		BytesSent: len(wire), PacketsSent: 1,
	})
}
