//go:build !opus

package codec

import "fmt"

// OpusEncoder/OpusDecoder stand in for the cgo libopus bindings when built
// without the `opus` tag, so the rest of the module (and its tests) compile
// and run without requiring libopus headers. Calling NewOpusEncoder/Decoder
// fails clearly instead of silently falling back to a different codec.
type OpusEncoder struct{}
type OpusDecoder struct{}

func NewOpusEncoder(sampleRate, channels int, application string, complexity int, bitrate int, vbr, fec, dtx bool) (*OpusEncoder, error) {
	return nil, fmt.Errorf("opus: built without the 'opus' build tag (libopus unavailable)")
}

func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	return nil, fmt.Errorf("opus: built without the 'opus' build tag (libopus unavailable)")
}

func (e *OpusEncoder) Info() Info                        { return Info{} }
func (e *OpusEncoder) Reset()                             {}
func (e *OpusEncoder) Encode(pcm []int16, out []byte) (int, error) {
	return 0, fmt.Errorf("opus: unavailable")
}
func (e *OpusEncoder) SetBitrate(bps int) error             { return fmt.Errorf("opus: unavailable") }
func (e *OpusEncoder) SetPacketLossPercent(percent int) error { return fmt.Errorf("opus: unavailable") }

func (d *OpusDecoder) Info() Info { return Info{} }
func (d *OpusDecoder) Reset()     {}
func (d *OpusDecoder) Decode(packet []byte, outPCM []int16) (int, error) {
	return 0, fmt.Errorf("opus: unavailable")
}
func (d *OpusDecoder) PLC(outPCM []int16, samplesToSynthesize int) (int, error) {
	return 0, fmt.Errorf("opus: unavailable")
}
