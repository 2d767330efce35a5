//go:build opus

package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusEncoder wraps gopkg.in/hraban/opus.v2 (libopus cgo bindings), gated
// behind the `opus` build tag exactly as the teacher repo gates its own
// Opus registration behind `(opus || with_opus_c) && cgo` — libopus isn't
// always available at build time, so the codec is opt-in.
type OpusEncoder struct {
	enc  *opus.Encoder
	info Info
}

func applicationFromString(s string) opus.Application {
	switch s {
	case "audio":
		return opus.AppAudio
	case "lowdelay":
		return opus.AppRestrictedLowdelay
	default:
		return opus.AppVoIP
	}
}

// NewOpusEncoder builds an encoder per spec §4.3/§6's recognized Opus options.
func NewOpusEncoder(sampleRate, channels int, application string, complexity int, bitrate int, vbr, fec, dtx bool) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, applicationFromString(application))
	if err != nil {
		return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "create encoder", Err: err}
	}
	if err := enc.SetComplexity(complexity); err != nil {
		return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "complexity", Err: err}
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "bitrate", Err: err}
		}
	}
	if err := enc.SetInBandFEC(fec); err != nil {
		return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "fec", Err: err}
	}
	if err := enc.SetDTX(dtx); err != nil {
		return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "dtx", Err: err}
	}
	return &OpusEncoder{
		enc: enc,
		info: Info{
			ID: IDOpus, SampleRate: sampleRate, RTPClockRate: 48000, PayloadType: 111,
			Channels: channels, MaxPacketSize: 1500,
		},
	}, nil
}

func (e *OpusEncoder) Info() Info { return e.info }

func (e *OpusEncoder) Reset() {
	_ = e.enc.ResetState()
}

func (e *OpusEncoder) Encode(pcm []int16, out []byte) (int, error) {
	n, err := e.enc.Encode(pcm, out)
	if err != nil {
		return 0, &Error{Codec: IDOpus, Op: "encode", SubReason: "libopus", Err: err}
	}
	return n, nil
}

func (e *OpusEncoder) SetBitrate(bps int) error {
	if err := e.enc.SetBitrate(bps); err != nil {
		return &Error{Codec: IDOpus, Op: "config", SubReason: "bitrate", Err: err}
	}
	return nil
}

func (e *OpusEncoder) SetPacketLossPercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("opus: packet loss percent out of range: %d", percent)
	}
	if err := e.enc.SetPacketLossPerc(percent); err != nil {
		return &Error{Codec: IDOpus, Op: "config", SubReason: "packet_loss_perc", Err: err}
	}
	return nil
}

// OpusDecoder wraps the matching libopus decoder, including native PLC via
// DecodePLC; Decode with an empty packet is routed to PLC.
type OpusDecoder struct {
	dec  *opus.Decoder
	info Info
}

func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, &Error{Codec: IDOpus, Op: "config", SubReason: "create decoder", Err: err}
	}
	return &OpusDecoder{
		dec: dec,
		info: Info{
			ID: IDOpus, SampleRate: sampleRate, RTPClockRate: 48000, PayloadType: 111,
			Channels: channels, MaxPacketSize: 1500,
		},
	}, nil
}

func (d *OpusDecoder) Info() Info { return d.info }
func (d *OpusDecoder) Reset()     { _ = d.dec.ResetState() }

func (d *OpusDecoder) Decode(packet []byte, outPCM []int16) (int, error) {
	if len(packet) == 0 {
		return d.PLC(outPCM, len(outPCM))
	}
	n, err := d.dec.Decode(packet, outPCM)
	if err != nil {
		return 0, &Error{Codec: IDOpus, Op: "decode", SubReason: "libopus", Err: err}
	}
	return n, nil
}

// PLC asks libopus to conceal the requested span natively (in frame-size
// multiples); spec §4.3 equates decode(nil) with plc().
func (d *OpusDecoder) PLC(outPCM []int16, samplesToSynthesize int) (int, error) {
	n := samplesToSynthesize
	if n > len(outPCM) {
		n = len(outPCM)
	}
	if err := d.dec.DecodePLC(outPCM[:n]); err != nil {
		return 0, &Error{Codec: IDOpus, Op: "decode", SubReason: "plc", Err: err}
	}
	return n, nil
}
