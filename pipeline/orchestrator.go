package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicecore/pipeline/bwe"
	"voicecore/pipeline/codec"
	"voicecore/pipeline/dsp"
	"voicecore/pipeline/jitter"
	"voicecore/pipeline/resample"
	"voicecore/pipeline/ring"
	"voicecore/pipeline/rtpsession"
	"voicecore/pipeline/srtp"
	"voicecore/pipeline/stats"
	"voicecore/pipeline/transport"
)

// Orchestrator owns the full duplex media graph (spec §4.9, C9): it is the
// single-writer coordinator for state transitions, and spawns the send,
// network-receive, and playout goroutines that move audio between the host
// application and the wire.
type Orchestrator struct {
	cfg Config
	log *zap.Logger

	sm   *stateMachine
	disp *dispatcher

	transport transport.Transport

	captureRing  *ring.Ring // mic PCM in, written by host, read by sendLoop
	playbackRing *ring.Ring // decoded PCM out, written by playoutLoop, read by host

	encoder codec.Encoder
	decoder codec.Decoder

	rtpSend *rtpsession.Session
	rtpRecv *rtpsession.Session

	srtpSend *srtp.Session
	srtcpSend *srtp.RTCPSession
	srtpRecv *srtp.Session
	srtcpRecv *srtp.RTCPSession

	estimator *bwe.Estimator
	jitterBuf *jitter.Buffer

	sendChain *dsp.Chain
	recvChain *dsp.Chain
	aec       *dsp.AEC

	statsAgg  *stats.Aggregator
	codecInfo codec.Info

	// resampleSend/resampleRecv bridge the host's configured sample rate to
	// the codec's native rate (spec §4.2, C2) when they differ — e.g. a
	// 48kHz capture device running the G.711 codec's fixed 8kHz. Nil when
	// cfg.SampleRate already matches the codec's native rate, in which case
	// codecFrameSize == the host frame size and no conversion runs.
	resampleSend   *resample.Resampler
	resampleRecv   *resample.Resampler
	codecFrameSize int

	// silenceFadeGain scales retained PCM content down to silence once the
	// jitter buffer has given up on PLC (jitter.DirectiveSilence), reset to
	// 1 whenever playout resumes (spec §4.7). lastPlayoutPCM is the most
	// recent successfully decoded/concealed frame, the source material the
	// fade-out scales down from tick to tick.
	silenceFadeGain float64
	lastPlayoutPCM  []int16

	// RTCP bookkeeping (spec §4.4/§4.6): srSendState tracks our own last
	// sent SR for RTT computation on ingested RRs; remoteSRState/remoteSSRC
	// track the peer's last SR so our own RRs can report LSR/DLSR back.
	remoteSSRC            uint32
	srSendState           rtpsession.SenderReportState
	remoteSRState         rtpsession.SenderReportState
	lastRRSnapshot        rtpsession.Stats // rtpRecv.Snapshot() as of the last RR we sent
	lastBWESentPackets    uint64           // rtpSend.Snapshot().PacketsSent as of the last RR we ingested

	mu                sync.Mutex // guards runtime-tunable fields below
	bitrate           int
	pendingEncoder    codec.Encoder
	pendingDecoder    codec.Decoder
	pendingRebuildDSP bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures optional Orchestrator dependencies at construction time.
type Option func(*Orchestrator)

// WithSRTP enables SRTP protection of RTP packets using the given profile
// and master key material. RTCP reports are sent and received unprotected.
// If either session cannot be created, the error is logged and the
// orchestrator runs without SRTP.
func WithSRTP(profile srtp.Profile, ssrc uint32, masterKey, masterSalt []byte) Option {
	return func(o *Orchestrator) {
		send, err := srtp.NewSession(profile, ssrc, masterKey, masterSalt, 0)
		if err != nil {
			o.log.Error("srtp session init failed", zap.Error(err))
			return
		}
		recv, err := srtp.NewSession(profile, ssrc, masterKey, masterSalt, 0)
		if err != nil {
			o.log.Error("srtp session init failed", zap.Error(err))
			return
		}
		o.srtpSend, o.srtpRecv = send, recv
	}
}

// New builds an Orchestrator. The caller provides the transport (a UDP
// socket, loopback pair, or test double) and an SSRC identifying this
// endpoint's outbound RTP stream.
func New(cfg Config, ssrc uint32, t transport.Transport, log *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if log == nil {
		log = zap.NewNop()
	}

	encCfg := encoderConfigFor(cfg)
	enc, err := codec.NewEncoder(encCfg)
	if err != nil {
		return nil, newError("orchestrator", KindInvalidParameter, "encoder", err)
	}
	dec, err := codec.NewDecoder(encCfg)
	if err != nil {
		return nil, newError("orchestrator", KindInvalidParameter, "decoder", err)
	}
	info := enc.Info()

	frameSize := cfg.FrameSize()
	captureCapacity := frameSize * 8
	playbackCapacity := frameSize * 8

	codecFrameSize := frameSize
	var resampleSend, resampleRecv *resample.Resampler
	if cfg.SampleRate != info.SampleRate {
		resampleSend, err = resample.Create(cfg.SampleRate, info.SampleRate, cfg.Channels, resample.Quality(5))
		if err != nil {
			return nil, newError("orchestrator", KindInvalidParameter, "resample-send", err)
		}
		resampleRecv, err = resample.Create(info.SampleRate, cfg.SampleRate, cfg.Channels, resample.Quality(5))
		if err != nil {
			return nil, newError("orchestrator", KindInvalidParameter, "resample-recv", err)
		}
		codecFrameSize = resampleSend.OutputFrames(frameSize)
	}

	o := &Orchestrator{
		cfg:            cfg,
		log:            log,
		captureRing:    ring.New(captureCapacity, ring.OverflowTruncate),
		playbackRing:   ring.New(playbackCapacity, ring.OverflowTruncate),
		encoder:        enc,
		decoder:        dec,
		codecInfo:      info,
		resampleSend:   resampleSend,
		resampleRecv:   resampleRecv,
		codecFrameSize: codecFrameSize,
		rtpSend:        rtpsession.New(ssrc, info.PayloadType, uint32(info.RTPClockRate)),
		rtpRecv:        rtpsession.New(ssrc, info.PayloadType, uint32(info.RTPClockRate)),
		estimator:      bwe.New(bwe.DefaultConfig()),
		jitterBuf: jitter.New(jitter.Config{
			FrameDuration:     cfg.FrameDuration,
			InitialDelay:      time.Duration(cfg.Jitter.InitialDelayMs) * time.Millisecond,
			MinDelay:          time.Duration(cfg.Jitter.MinDelayMs) * time.Millisecond,
			MaxDelay:          time.Duration(cfg.Jitter.MaxDelayMs) * time.Millisecond,
			PLCMaxConsecutive: cfg.Jitter.PLCMaxConsecutive,
		}),
		statsAgg:        stats.NewAggregator(),
		bitrate:         cfg.Bitrate,
		silenceFadeGain: 1,
	}
	o.sm = newStateMachine(o.onStateChange)
	o.disp = newDispatcher(log)
	o.transport = t

	o.buildDSPChains()

	for _, opt := range opts {
		opt(o)
	}

	o.estimator.OnBitrateChange(func(oldBPS, newBPS int, tier bwe.Tier) {
		o.disp.emit(Notification{Event: EventBitrateChanged, Data: BitrateChange{
			OldBPS: oldBPS, NewBPS: newBPS, Tier: tier.String(),
		}})
		if bs, ok := o.encoder.(codec.BitrateSetter); ok {
			_ = bs.SetBitrate(newBPS)
		}
	})

	return o, nil
}

// encoderConfigFor translates the pipeline Config into the codec package's
// EncoderConfig, shared by New and SetCodec so a runtime codec swap builds
// its encoder/decoder pair the same way the initial one was built.
func encoderConfigFor(cfg Config) codec.EncoderConfig {
	return codec.EncoderConfig{
		Name: cfg.Codec, SampleRate: cfg.SampleRate, Channels: cfg.Channels,
		Bitrate: cfg.Bitrate, OpusApplication: cfg.OpusApplication,
		OpusComplexity: cfg.OpusComplexity, OpusVBR: cfg.EnableVBR,
		OpusFEC: cfg.EnableFEC, OpusDTX: cfg.EnableDTX,
		G711ALaw: cfg.G711UseALaw, G722BitrateMode: cfg.G722BitrateMode,
	}
}

func (o *Orchestrator) buildDSPChains() {
	var sendNodes []dsp.Node
	if o.cfg.EnableAEC {
		o.aec = dsp.NewAEC(64, o.cfg.FrameSize()/2, 0.3)
		sendNodes = append(sendNodes, o.aec)
	}
	if o.cfg.EnableDenoise {
		engine := dsp.EngineSpectralSubtraction
		if o.cfg.DenoiseEngine == "rnnoise" {
			engine = dsp.EngineRNNoiseLike
		}
		sendNodes = append(sendNodes, dsp.NewDenoiser(engine))
	}
	if o.cfg.EnableAGC {
		sendNodes = append(sendNodes, dsp.NewAGC(dsp.AGCAdaptive, 4128, 1))
	}
	sendNodes = append(sendNodes, dsp.NewVAD(dsp.VADEnergy))
	o.sendChain = dsp.NewChain(sendNodes...)

	o.recvChain = dsp.NewChain(
		dsp.NewEqualizer(0),
		dsp.NewCompressor(20000, 4),
	)
}

func (o *Orchestrator) onStateChange(from, to State) {
	o.disp.emit(Notification{Event: EventStateChanged, Data: to})
	if to == StateFaulted {
		o.disp.emit(Notification{Event: EventFatalError, Data: fmt.Sprintf("faulted from %s", from)})
	}
}

// OnEvent registers a sink for asynchronous notifications.
func (o *Orchestrator) OnEvent(sink EventSink) {
	o.disp.register(sink)
}

// Start transitions Stopped -> Starting -> Running and launches the
// send/receive/playout goroutines.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.sm.transition(StateStarting); err != nil {
		return newError("orchestrator", KindAlreadyInitialized, "start", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	go o.disp.run()

	if err := o.sm.transition(StateRunning); err != nil {
		o.sm.fault()
		return newError("orchestrator", KindDeviceStartFailed, "start", err)
	}

	o.wg.Add(4)
	go o.sendLoop(runCtx)
	go o.recvLoop(runCtx)
	go o.playoutLoop(runCtx)
	go o.rtcpLoop(runCtx)

	return nil
}

// Stop transitions Running -> Stopping -> Stopped, waits for all goroutines
// to exit, and releases codec/SRTP resources.
func (o *Orchestrator) Stop() error {
	if err := o.sm.transition(StateStopping); err != nil {
		return newError("orchestrator", KindNotInitialized, "stop", err)
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.disp.stop()

	if o.srtpSend != nil {
		o.srtpSend.Close()
	}
	if o.srtpRecv != nil {
		o.srtpRecv.Close()
	}
	if o.resampleSend != nil {
		o.resampleSend.Destroy()
	}
	if o.resampleRecv != nil {
		o.resampleRecv.Destroy()
	}

	return o.sm.transition(StateStopped)
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State { return o.sm.Current() }

// WriteCaptureFrame pushes freshly captured microphone PCM16 samples into
// the send-side ring buffer.
func (o *Orchestrator) WriteCaptureFrame(pcm []int16) int {
	return o.captureRing.Write(pcm)
}

// ReadPlaybackFrame pulls decoded PCM16 samples ready for playback.
func (o *Orchestrator) ReadPlaybackFrame(out []int16) int {
	return o.playbackRing.Read(out)
}

// SetBitrate applies a runtime bitrate change at the next frame boundary
// (spec §4.9: "codec/bitrate changes take effect between frames, never
// mid-frame").
func (o *Orchestrator) SetBitrate(bps int) error {
	bs, ok := o.encoder.(codec.BitrateSetter)
	if !ok {
		return newError("orchestrator", KindInvalidParameter, "codec does not support runtime bitrate control", nil)
	}
	o.mu.Lock()
	o.bitrate = bps
	o.mu.Unlock()
	return bs.SetBitrate(bps)
}

// SetCodec swaps the active encoder/decoder pair at the next frame boundary
// (spec §4.9: "accepts set_codec ... applied at frame boundaries, never
// mid-frame"). The new codec's RTP payload type and clock rate take effect
// on the same boundary without resetting sequence/timestamp state (S6: "state
// never leaves Running, first packet at the new PT appears on the next frame
// boundary").
func (o *Orchestrator) SetCodec(name string) error {
	cfg := o.cfg
	cfg.Codec = name
	encCfg := encoderConfigFor(cfg)

	enc, err := codec.NewEncoder(encCfg)
	if err != nil {
		return newError("orchestrator", KindInvalidParameter, "set-codec-encoder", err)
	}
	dec, err := codec.NewDecoder(encCfg)
	if err != nil {
		return newError("orchestrator", KindInvalidParameter, "set-codec-decoder", err)
	}

	o.mu.Lock()
	o.cfg.Codec = name
	o.pendingEncoder = enc
	o.pendingDecoder = dec
	o.mu.Unlock()
	return nil
}

// SetDenoiseEngine swaps the send-side denoiser implementation at the next
// frame boundary (spec §4.9's set_denoise_engine).
func (o *Orchestrator) SetDenoiseEngine(engine string) error {
	if engine != "speexdsp" && engine != "rnnoise" {
		return newError("orchestrator", KindInvalidParameter, "unknown denoise engine "+engine, nil)
	}
	o.mu.Lock()
	o.cfg.DenoiseEngine = engine
	o.pendingRebuildDSP = true
	o.mu.Unlock()
	return nil
}

// applyPendingConfig installs any codec swap or DSP-chain rebuild requested
// by SetCodec/SetDenoiseEngine since the last frame, at a frame boundary
// (spec §4.9). Safe to call from both the send and playout threads: it is a
// no-op once the pending change has been consumed.
func (o *Orchestrator) applyPendingConfig() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pendingEncoder != nil {
		info := o.pendingEncoder.Info()
		o.encoder = o.pendingEncoder
		o.decoder = o.pendingDecoder
		o.codecInfo = info
		o.pendingEncoder = nil
		o.pendingDecoder = nil

		if o.resampleSend != nil {
			o.resampleSend.Destroy()
			o.resampleSend = nil
		}
		if o.resampleRecv != nil {
			o.resampleRecv.Destroy()
			o.resampleRecv = nil
		}
		o.codecFrameSize = o.cfg.FrameSize()
		if o.cfg.SampleRate != info.SampleRate {
			if rs, err := resample.Create(o.cfg.SampleRate, info.SampleRate, o.cfg.Channels, resample.Quality(5)); err == nil {
				o.resampleSend = rs
				o.codecFrameSize = rs.OutputFrames(o.cfg.FrameSize())
			} else {
				o.log.Warn("resample-send rebuild after codec swap failed", zap.Error(err))
			}
			if rr, err := resample.Create(info.SampleRate, o.cfg.SampleRate, o.cfg.Channels, resample.Quality(5)); err == nil {
				o.resampleRecv = rr
			} else {
				o.log.Warn("resample-recv rebuild after codec swap failed", zap.Error(err))
			}
		}

		o.rtpSend.SetCodecParams(info.PayloadType, uint32(info.RTPClockRate))
		o.rtpRecv.SetCodecParams(info.PayloadType, uint32(info.RTPClockRate))
	}

	if o.pendingRebuildDSP {
		o.pendingRebuildDSP = false
		o.buildDSPChains()
	}
}

// SendReceivePacket injects a raw wire packet (RTP or RTCP, SRTP-protected
// when enabled) as if it had just arrived over the transport. This is the
// out-of-band delivery entry point spec §4.9/§4.11 names send_receive_packet
// for callers (WASM hosts, local loopback integrations) that hand packets to
// the pipeline directly instead of through a Transport implementation.
func (o *Orchestrator) SendReceivePacket(raw []byte) {
	if isRTCPPacket(raw) {
		o.ingestRTCP(raw)
		return
	}
	o.ingestPacket(raw, time.Now())
}

// Stats returns a point-in-time statistics/MOS snapshot.
func (o *Orchestrator) Stats() stats.Snapshot {
	class := stats.CodecClassG711
	switch o.codecInfo.ID {
	case codec.IDG722:
		class = stats.CodecClassG722
	case codec.IDOpus:
		if o.codecInfo.SampleRate >= 16000 {
			class = stats.CodecClassOpusWideband
		} else {
			class = stats.CodecClassOpusNarrowband
		}
	}
	delayMs := float64(o.jitterBuf.TargetDelay().Milliseconds())
	return o.statsAgg.Snapshot(class, delayMs)
}
