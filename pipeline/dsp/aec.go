package dsp

import "math"

// AEC implements acoustic echo cancellation as a normalized least-mean-
// squares adaptive filter against a far-end reference signal, with an
// explicit delay line to compensate for the render-to-capture path latency
// (spec §4.8: "far-end reference must be time-aligned to the near-end
// capture before the adaptive filter can converge").
type AEC struct {
	filter     []float64 // adaptive filter taps
	farEndHist []float64 // ring of recent far-end samples, length = len(filter)+delay
	histPos    int

	delaySamples int
	stepSize     float64
	leak         float64

	divergenceCount int
}

// NewAEC creates an AEC node. tapCount sets the adaptive filter length
// (longer taps model longer room impulse responses at higher CPU cost);
// delaySamples is the initial render-to-capture delay estimate.
func NewAEC(tapCount, delaySamples int, stepSize float64) *AEC {
	return &AEC{
		filter:       make([]float64, tapCount),
		farEndHist:   make([]float64, tapCount+delaySamples),
		delaySamples: delaySamples,
		stepSize:     stepSize,
		leak:         1e-6,
	}
}

func (a *AEC) Name() string { return "aec" }

// PushFarEnd records a far-end (render) frame into the delay line ahead of
// the matching near-end Process call, per the orchestrator's "fork the
// post-resample output to the AEC reference path" wiring (spec §4.9).
func (a *AEC) PushFarEnd(frame []int16) {
	for _, s := range frame {
		a.farEndHist[a.histPos] = float64(s)
		a.histPos = (a.histPos + 1) % len(a.farEndHist)
	}
}

// Process cancels the estimated echo from the near-end frame in place using
// the current filter taps, then adapts the taps by NLMS.
func (a *AEC) Process(frame []int16) NodeStatus {
	n := len(a.filter)
	energyAccum := 0.0

	for i, sample := range frame {
		ref := a.referenceWindow(i, n)

		estimate := 0.0
		for k := 0; k < n; k++ {
			estimate += a.filter[k] * ref[k]
		}

		near := float64(sample)
		err := near - estimate
		frame[i] = clampInt16(err)

		energy := 1e-6
		for _, r := range ref {
			energy += r * r
		}
		energyAccum += energy

		mu := a.stepSize / energy
		for k := 0; k < n; k++ {
			a.filter[k] += mu * err * ref[k] * (1 - a.leak)
		}
	}

	if math.IsNaN(energyAccum) || math.IsInf(energyAccum, 0) {
		a.divergenceCount++
		if a.divergenceCount > 3 {
			return NodeFatal
		}
		a.Reset()
		return NodeDegraded
	}
	a.divergenceCount = 0
	return NodeOK
}

// referenceWindow returns the n most recent far-end samples as of logical
// position i in the current frame, shifted by the configured delay.
func (a *AEC) referenceWindow(i, n int) []float64 {
	out := make([]float64, n)
	base := a.histPos - a.delaySamples - (n - i)
	for k := 0; k < n; k++ {
		idx := (base + k) % len(a.farEndHist)
		if idx < 0 {
			idx += len(a.farEndHist)
		}
		out[k] = a.farEndHist[idx]
	}
	return out
}

// SetDelay updates the render-to-capture delay estimate, e.g. when the
// orchestrator recalibrates against reported output latency (spec §9 open
// question, resolved in DESIGN.md).
func (a *AEC) SetDelay(samples int) {
	a.delaySamples = samples
}

func (a *AEC) Reset() {
	for i := range a.filter {
		a.filter[i] = 0
	}
	for i := range a.farEndHist {
		a.farEndHist[i] = 0
	}
	a.histPos = 0
	a.divergenceCount = 0
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
