package dsp

import (
	"math"
	"math/rand"
)

// Equalizer is a minimal single-band shelving filter on the receive path
// (spec §4.8's receive-side chain). Real deployments would run a multi-band
// biquad cascade; this stand-in applies one first-order shelf, which is
// enough to exercise the chain's degrade/bypass contract without a DSP
// filter-design dependency in scope.
type Equalizer struct {
	gainLowShelf float64
	cutoffRatio  float64 // fraction of samples in the frame treated as "low" via a simple moving average
	state        float64
}

func NewEqualizer(gainLowShelfDB float64) *Equalizer {
	gain := dbToLinear(gainLowShelfDB)
	return &Equalizer{gainLowShelf: gain, cutoffRatio: 0.1}
}

func (e *Equalizer) Name() string { return "equalizer" }

func (e *Equalizer) Process(frame []int16) NodeStatus {
	const alpha = 0.05 // smoothing factor approximating a low shelf corner
	for i, s := range frame {
		e.state = alpha*float64(s) + (1-alpha)*e.state
		low := e.state
		high := float64(s) - low
		frame[i] = clampInt16(low*e.gainLowShelf + high)
	}
	return NodeOK
}

func (e *Equalizer) Reset() { e.state = 0 }

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// Compressor is a simple feed-forward dynamic range compressor with a fixed
// knee, used on the receive path to tame sudden level jumps from codec
// concealment events (spec §4.8).
type Compressor struct {
	thresholdRMS float64
	ratio        float64
	envelope     float64
}

func NewCompressor(thresholdRMS, ratio float64) *Compressor {
	return &Compressor{thresholdRMS: thresholdRMS, ratio: ratio}
}

func (c *Compressor) Name() string { return "compressor" }

func (c *Compressor) Process(frame []int16) NodeStatus {
	rms := rmsOf(frame)
	c.envelope = 0.7*c.envelope + 0.3*rms
	if c.envelope <= c.thresholdRMS || c.envelope == 0 {
		return NodeOK
	}
	excessDB := 20 * math.Log10(c.envelope/c.thresholdRMS)
	reducedDB := excessDB * (1 - 1/c.ratio)
	gain := dbToLinear(-reducedDB)
	applyGain(frame, gain)
	return NodeOK
}

func (c *Compressor) Reset() { c.envelope = 0 }

// ComfortNoiseGenerator injects low-level synthetic noise during DTX/PLC gaps
// so silence doesn't sound like a dropped call (spec §4.8, paired with the
// jitter buffer's DirectiveConceal/DirectiveStretch outputs).
type ComfortNoiseGenerator struct {
	levelRMS float64
	rng      *rand.Rand
}

func NewComfortNoiseGenerator(levelRMS float64, seed int64) *ComfortNoiseGenerator {
	return &ComfortNoiseGenerator{levelRMS: levelRMS, rng: rand.New(rand.NewSource(seed))}
}

func (c *ComfortNoiseGenerator) Name() string { return "comfort_noise" }

// Process overwrites a silent/concealed frame with low-level noise; callers
// only route concealed frames through this node.
func (c *ComfortNoiseGenerator) Process(frame []int16) NodeStatus {
	for i := range frame {
		frame[i] = clampInt16(c.levelRMS * (2*c.rng.Float64() - 1))
	}
	return NodeOK
}

func (c *ComfortNoiseGenerator) Reset() {}
