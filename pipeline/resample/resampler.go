// Package resample implements the C2 resampler contract (spec §4.2): a
// stateful frame-in/frame-out rate converter. It wraps
// github.com/tphakala/go-audio-resampler (the SIMD-accelerated resampler the
// teacher repo pulls in as an indirect dependency for its own SIP<->Telegram
// rate matching) instead of hand-rolling filter math.
package resample

import (
	"fmt"
	"math"

	rs "github.com/tphakala/go-audio-resampler"
)

// Quality is the 0..10 speed/quality trade-off knob from spec §4.2.
type Quality int

// Resampler converts PCM16 mono/multi-channel frames between two fixed
// sample rates, retaining filter history across calls.
type Resampler struct {
	inRate, outRate int
	channels        int
	quality         Quality
	impl            *rs.Resampler
}

// Create builds a resampler for the given rate pair. Unsupported rate pairs
// fail with InvalidParam per spec §4.2.
func Create(inRate, outRate, channels int, quality Quality) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rate pair %d->%d", inRate, outRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("resample: invalid channel count %d", channels)
	}
	if quality < 0 || quality > 10 {
		return nil, fmt.Errorf("resample: invalid quality %d", quality)
	}
	impl, err := rs.New(inRate, outRate, channels, int(quality))
	if err != nil {
		return nil, fmt.Errorf("resample: create: %w", err)
	}
	return &Resampler{inRate: inRate, outRate: outRate, channels: channels, quality: quality, impl: impl}, nil
}

// OutputFrames returns ⌈input_frames × out_rate / in_rate⌉, the exact output
// sample count spec §4.2 mandates for a given input frame count.
func (r *Resampler) OutputFrames(inputFrames int) int {
	return int(math.Ceil(float64(inputFrames) * float64(r.outRate) / float64(r.inRate)))
}

// Process converts in (PCM16, interleaved if stereo) into out, which must
// have capacity for at least OutputFrames(len(in)/channels)*channels samples.
// Returns the number of samples actually written.
func (r *Resampler) Process(in []int16, out []int16) (int, error) {
	n, err := r.impl.Process(in, out)
	if err != nil {
		return 0, fmt.Errorf("resample: process: %w", err)
	}
	return n, nil
}

// Reset clears the resampler's filter history, as if freshly created.
func (r *Resampler) Reset() {
	r.impl.Reset()
}

// Destroy releases any resources held by the underlying implementation.
func (r *Resampler) Destroy() {
	r.impl.Close()
}

func (r *Resampler) InRate() int  { return r.inRate }
func (r *Resampler) OutRate() int { return r.outRate }
