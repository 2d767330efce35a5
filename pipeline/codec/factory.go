package codec

import "fmt"

// EncoderConfig carries the recognized codec configuration options from spec §6.
type EncoderConfig struct {
	Name            string // "opus" | "pcmu" | "pcma" | "g722" | "pcm"
	SampleRate      int
	Channels        int
	Bitrate         int
	OpusApplication string
	OpusComplexity  int
	OpusVBR         bool
	OpusFEC         bool
	OpusDTX         bool
	G711ALaw        bool
	G722BitrateMode int
}

// NewEncoder builds the encoder variant named by cfg.Name.
func NewEncoder(cfg EncoderConfig) (Encoder, error) {
	switch cfg.Name {
	case "opus":
		return NewOpusEncoder(cfg.SampleRate, cfg.Channels, cfg.OpusApplication, cfg.OpusComplexity, cfg.Bitrate, cfg.OpusVBR, cfg.OpusFEC, cfg.OpusDTX)
	case "pcmu":
		return NewG711Encoder(false), nil
	case "pcma":
		return NewG711Encoder(true), nil
	case "g722":
		return NewG722Encoder(cfg.G722BitrateMode)
	case "pcm":
		return NewPCMEncoder(cfg.SampleRate, cfg.Channels), nil
	default:
		return nil, fmt.Errorf("codec: unknown encoder %q", cfg.Name)
	}
}

// NewDecoder builds the decoder variant named by cfg.Name.
func NewDecoder(cfg EncoderConfig) (Decoder, error) {
	switch cfg.Name {
	case "opus":
		return NewOpusDecoder(cfg.SampleRate, cfg.Channels)
	case "pcmu":
		return NewG711Decoder(false), nil
	case "pcma":
		return NewG711Decoder(true), nil
	case "g722":
		return NewG722Decoder(cfg.G722BitrateMode)
	case "pcm":
		return NewPCMDecoder(cfg.SampleRate, cfg.Channels), nil
	default:
		return nil, fmt.Errorf("codec: unknown decoder %q", cfg.Name)
	}
}

// DecoderForPayloadType resolves a decoder directly from a wire PT, the path
// the RTP receiver uses to build a decoder for a payload type it hasn't
// negotiated configuration for locally.
func DecoderForPayloadType(pt uint8) (Decoder, error) {
	info, ok := InfoForPayloadType(pt)
	if !ok {
		return nil, fmt.Errorf("codec: unknown payload type %d", pt)
	}
	switch info.ID {
	case IDG711ULaw:
		return NewG711Decoder(false), nil
	case IDG711ALaw:
		return NewG711Decoder(true), nil
	case IDG722:
		return NewG722Decoder(0)
	case IDOpus:
		return NewOpusDecoder(info.SampleRate, info.Channels)
	default:
		return nil, fmt.Errorf("codec: unmapped payload type %d", pt)
	}
}
