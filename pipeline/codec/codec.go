// Package codec implements the C3 codec operator contract (spec §4.3): a
// uniform encode/decode/PLC/reset surface over Opus, G.711, G.722, and a PCM
// passthrough variant used for loopback testing, plus the fixed codec<->RTP
// payload-type table from §4.3/§6.
package codec

import "fmt"

// ID identifies a codec variant.
type ID int

const (
	IDOpus ID = iota
	IDG711ULaw
	IDG711ALaw
	IDG722
	IDPCM
)

func (id ID) String() string {
	switch id {
	case IDOpus:
		return "opus"
	case IDG711ULaw:
		return "pcmu"
	case IDG711ALaw:
		return "pcma"
	case IDG722:
		return "g722"
	case IDPCM:
		return "pcm"
	default:
		return "unknown"
	}
}

// Info describes a codec's framing and clock parameters.
type Info struct {
	ID            ID
	SampleRate    int // PCM sample rate the codec operates at
	RTPClockRate  int // RTP timestamp clock rate (differs from SampleRate for G.722)
	PayloadType   uint8
	Channels      int
	MaxPacketSize int
}

// Encoder is the C3 encoder capability set.
type Encoder interface {
	// Encode compresses samples of PCM16 input into out, returning bytes written.
	Encode(pcm []int16, out []byte) (int, error)
	Reset()
	Info() Info
}

// BitrateSetter is the optional encoder capability for runtime bitrate control.
type BitrateSetter interface {
	SetBitrate(bps int) error
}

// PacketLossSetter is the optional encoder capability informing in-band FEC.
type PacketLossSetter interface {
	SetPacketLossPercent(percent int) error
}

// Decoder is the C3 decoder capability set.
type Decoder interface {
	// Decode decompresses packet into PCM16 samples written to outPCM,
	// returning samples written. A nil/empty packet is equivalent to PLC.
	Decode(packet []byte, outPCM []int16) (int, error)
	// PLC synthesizes samplesToSynthesize samples of concealment audio.
	PLC(outPCM []int16, samplesToSynthesize int) (int, error)
	Reset()
	Info() Info
}

// MaxEncodedSize caps encoder output per spec §4.3's §3 sizing rules.
func MaxEncodedSize(id ID, samples int) int {
	switch id {
	case IDOpus:
		return 1500
	case IDG711ULaw, IDG711ALaw:
		return samples
	case IDG722:
		return samples / 2
	case IDPCM:
		return samples * 2
	default:
		return 0
	}
}

// payloadTypeTable is the fixed codec<->PT mapping from spec §4.3/§6. G.722's
// RTP clock rate of 8000 despite 16kHz sampling is the documented RFC 3551
// quirk, preserved exactly.
var payloadTypeTable = []Info{
	{ID: IDG711ULaw, SampleRate: 8000, RTPClockRate: 8000, PayloadType: 0, Channels: 1},
	{ID: IDG711ALaw, SampleRate: 8000, RTPClockRate: 8000, PayloadType: 8, Channels: 1},
	{ID: IDG722, SampleRate: 16000, RTPClockRate: 8000, PayloadType: 9, Channels: 1},
	{ID: IDOpus, SampleRate: 48000, RTPClockRate: 48000, PayloadType: 111, Channels: 2},
}

// InfoForID returns the fixed table entry for a codec ID.
func InfoForID(id ID) (Info, bool) {
	for _, info := range payloadTypeTable {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// InfoForPayloadType is the reverse lookup used by the RTP session to map an
// inbound packet's PT back to a codec.
func InfoForPayloadType(pt uint8) (Info, bool) {
	for _, info := range payloadTypeTable {
		if info.PayloadType == pt {
			return info, true
		}
	}
	return Info{}, false
}

// Error taxonomy sub-reasons for codec-level failures (spec §7: EncodeFailed/
// DecodeFailed/InvalidConfig with the codec-specific sub-reason preserved).
type Error struct {
	Codec     ID
	Op        string // "encode" | "decode" | "config"
	SubReason string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s: %s failed (%s): %v", e.Codec, e.Op, e.SubReason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
