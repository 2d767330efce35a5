package codec

import "fmt"

// PCMCodec is a stateless passthrough "codec": encode copies int16 samples to
// bytes (little-endian) and decode reverses it. It exists for loopback tests
// and for the Non-goal-adjacent "raw" RTP profile, and gives PLC a trivial,
// fully-deterministic implementation (decayed silence) useful in tests.
type PCMCodec struct {
	info Info
}

func NewPCMEncoder(sampleRate, channels int) *PCMCodec {
	return &PCMCodec{info: Info{ID: IDPCM, SampleRate: sampleRate, RTPClockRate: sampleRate, Channels: channels}}
}

func NewPCMDecoder(sampleRate, channels int) *PCMCodec {
	return &PCMCodec{info: Info{ID: IDPCM, SampleRate: sampleRate, RTPClockRate: sampleRate, Channels: channels}}
}

func (c *PCMCodec) Info() Info { return c.info }

func (c *PCMCodec) Encode(pcm []int16, out []byte) (int, error) {
	need := len(pcm) * 2
	if len(out) < need {
		return 0, &Error{Codec: IDPCM, Op: "encode", SubReason: "buffer too small", Err: fmt.Errorf("need %d have %d", need, len(out))}
	}
	for i, s := range pcm {
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return need, nil
}

func (c *PCMCodec) Decode(packet []byte, outPCM []int16) (int, error) {
	if len(packet) == 0 {
		return c.PLC(outPCM, len(outPCM))
	}
	n := len(packet) / 2
	if n > len(outPCM) {
		n = len(outPCM)
	}
	for i := 0; i < n; i++ {
		outPCM[i] = int16(uint16(packet[i*2]) | uint16(packet[i*2+1])<<8)
	}
	return n, nil
}

// PLC for the PCM codec emits silence; there is no signal model to extrapolate from.
func (c *PCMCodec) PLC(outPCM []int16, samplesToSynthesize int) (int, error) {
	n := samplesToSynthesize
	if n > len(outPCM) {
		n = len(outPCM)
	}
	for i := 0; i < n; i++ {
		outPCM[i] = 0
	}
	return n, nil
}

func (c *PCMCodec) Reset() {}

func (c *PCMCodec) SetBitrate(bps int) error { return nil }
