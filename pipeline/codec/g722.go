package codec

import (
	"fmt"

	"github.com/gotranspile/g722"
)

var g722BitrateByMode = [3]int{64000, 56000, 48000}

// G722Encoder wraps github.com/gotranspile/g722 (a transpiled libg722 port).
// G.722 samples at 16kHz but is declared at an 8kHz RTP clock rate (spec
// §4.3's preserved RFC 3551 quirk) and packs 2 samples into 1 byte.
type G722Encoder struct {
	enc  *g722.Encoder
	info Info
}

// NewG722Encoder builds an encoder for bitrateMode in {0,1,2} -> {64k,56k,48k}.
func NewG722Encoder(bitrateMode int) (*G722Encoder, error) {
	if bitrateMode < 0 || bitrateMode > 2 {
		return nil, fmt.Errorf("g722: invalid bitrate mode %d", bitrateMode)
	}
	bitrate := g722BitrateByMode[bitrateMode]
	enc := g722.NewEncoder(bitrate)
	return &G722Encoder{
		enc: enc,
		info: Info{
			ID: IDG722, SampleRate: 16000, RTPClockRate: 8000, PayloadType: 9, Channels: 1,
		},
	}, nil
}

func (e *G722Encoder) Info() Info { return e.info }
func (e *G722Encoder) Reset()     { e.enc.Reset() }

func (e *G722Encoder) Encode(pcm []int16, out []byte) (int, error) {
	need := len(pcm) / 2
	if len(out) < need {
		return 0, &Error{Codec: IDG722, Op: "encode", SubReason: "buffer too small", Err: fmt.Errorf("need %d have %d", need, len(out))}
	}
	encoded := e.enc.Encode(pcm)
	n := copy(out, encoded)
	return n, nil
}

// G722Decoder mirrors G722Encoder. PLC reuses the shared decayed-repetition
// strategy (spec §4.3: "PLC implemented as decayed repetition of last frame").
type G722Decoder struct {
	dec      *g722.Decoder
	info     Info
	lastGood []int16
}

func NewG722Decoder(bitrateMode int) (*G722Decoder, error) {
	if bitrateMode < 0 || bitrateMode > 2 {
		return nil, fmt.Errorf("g722: invalid bitrate mode %d", bitrateMode)
	}
	bitrate := g722BitrateByMode[bitrateMode]
	dec := g722.NewDecoder(bitrate)
	return &G722Decoder{
		dec: dec,
		info: Info{
			ID: IDG722, SampleRate: 16000, RTPClockRate: 8000, PayloadType: 9, Channels: 1,
		},
	}, nil
}

func (d *G722Decoder) Info() Info { return d.info }
func (d *G722Decoder) Reset()     { d.dec.Reset() }

func (d *G722Decoder) Decode(packet []byte, outPCM []int16) (int, error) {
	if len(packet) == 0 {
		return d.PLC(outPCM, len(outPCM))
	}
	decoded := d.dec.Decode(packet)
	n := len(decoded)
	if n > len(outPCM) {
		n = len(outPCM)
	}
	copy(outPCM, decoded[:n])
	if cap(d.lastGood) < n {
		d.lastGood = make([]int16, n)
	}
	d.lastGood = d.lastGood[:n]
	copy(d.lastGood, outPCM[:n])
	return n, nil
}

func (d *G722Decoder) PLC(outPCM []int16, samplesToSynthesize int) (int, error) {
	return decayedRepetitionPLC(d.lastGood, outPCM, samplesToSynthesize)
}
