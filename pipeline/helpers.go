package pipeline

import (
	"time"

	"voicecore/pipeline/codec"
)

// codecMaxEncodedSize sizes an encode output buffer for one frame.
func codecMaxEncodedSize(info codec.Info, frameSamples int) int {
	return codec.MaxEncodedSize(info.ID, frameSamples)
}

// frameSizeAtClockRate converts a frame duration into RTP timestamp units,
// using the codec's RTP clock rate rather than its PCM sample rate — the
// two differ for G.722 per spec §4.3's RFC 3551 quirk (8000Hz clock despite
// 16kHz sampling).
func frameSizeAtClockRate(info codec.Info, frameDuration time.Duration) int {
	return int(int64(info.RTPClockRate) * frameDuration.Milliseconds() / 1000)
}
