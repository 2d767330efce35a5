package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// G711Encoder wraps github.com/zaf/g711's stateless A-law/µ-law conversion.
// G.711 has no internal state (spec §4.3), so Reset is a no-op.
type G711Encoder struct {
	aLaw bool
	info Info
	buf  []byte // scratch LE PCM buffer
}

func NewG711Encoder(aLaw bool) *G711Encoder {
	info := Info{ID: IDG711ULaw, SampleRate: 8000, RTPClockRate: 8000, PayloadType: 0, Channels: 1}
	if aLaw {
		info.ID = IDG711ALaw
		info.PayloadType = 8
	}
	return &G711Encoder{aLaw: aLaw, info: info}
}

func (e *G711Encoder) Info() Info { return e.info }
func (e *G711Encoder) Reset()     {}

func (e *G711Encoder) Encode(pcm []int16, out []byte) (int, error) {
	need := len(pcm)
	if len(out) < need {
		return 0, &Error{Codec: e.info.ID, Op: "encode", SubReason: "buffer too small", Err: fmt.Errorf("need %d have %d", need, len(out))}
	}
	if cap(e.buf) < len(pcm)*2 {
		e.buf = make([]byte, len(pcm)*2)
	}
	le := e.buf[:len(pcm)*2]
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(le[i*2:], uint16(s))
	}
	var encoded []byte
	if e.aLaw {
		encoded = g711.Pcm2Alaw(le)
	} else {
		encoded = g711.Pcm2Ulaw(le)
	}
	n := copy(out, encoded)
	return n, nil
}

// G711Decoder mirrors G711Encoder on the decode side, including the
// decayed-repetition PLC required by spec §4.3.
type G711Decoder struct {
	aLaw     bool
	info     Info
	lastGood []int16 // last successfully decoded frame, for decayed PLC
}

func NewG711Decoder(aLaw bool) *G711Decoder {
	info := Info{ID: IDG711ULaw, SampleRate: 8000, RTPClockRate: 8000, PayloadType: 0, Channels: 1}
	if aLaw {
		info.ID = IDG711ALaw
		info.PayloadType = 8
	}
	return &G711Decoder{aLaw: aLaw, info: info}
}

func (d *G711Decoder) Info() Info { return d.info }

func (d *G711Decoder) Reset() {
	d.lastGood = nil
}

func (d *G711Decoder) Decode(packet []byte, outPCM []int16) (int, error) {
	if len(packet) == 0 {
		return d.PLC(outPCM, len(outPCM))
	}
	var le []byte
	if d.aLaw {
		le = g711.Alaw2Pcm(packet)
	} else {
		le = g711.Ulaw2Pcm(packet)
	}
	n := len(le) / 2
	if n > len(outPCM) {
		n = len(outPCM)
	}
	for i := 0; i < n; i++ {
		outPCM[i] = int16(binary.LittleEndian.Uint16(le[i*2:]))
	}
	if cap(d.lastGood) < n {
		d.lastGood = make([]int16, n)
	}
	d.lastGood = d.lastGood[:n]
	copy(d.lastGood, outPCM[:n])
	return n, nil
}

// PLC repeats the last good frame with linear amplitude decay, per spec
// §4.3's "decayed repetition of last frame" contract (shared with G.722).
func (d *G711Decoder) PLC(outPCM []int16, samplesToSynthesize int) (int, error) {
	return decayedRepetitionPLC(d.lastGood, outPCM, samplesToSynthesize)
}

// decayedRepetitionPLC tiles the last known-good frame into out, scaling
// amplitude down linearly to zero by the end of the requested span, the
// common "hold last frame and fade" PLC strategy for stateless narrowband
// codecs that lack a native concealment mode.
func decayedRepetitionPLC(lastGood []int16, outPCM []int16, samplesToSynthesize int) (int, error) {
	n := samplesToSynthesize
	if n > len(outPCM) {
		n = len(outPCM)
	}
	if len(lastGood) == 0 {
		for i := 0; i < n; i++ {
			outPCM[i] = 0
		}
		return n, nil
	}
	for i := 0; i < n; i++ {
		decay := 1.0 - float64(i)/float64(n)
		src := lastGood[i%len(lastGood)]
		outPCM[i] = int16(float64(src) * decay)
	}
	return n, nil
}
