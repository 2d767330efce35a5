package dsp

// Engine selects the noise-suppression algorithm. The pipeline's
// denoise_engine setting maps "speexdsp" to EngineSpectralSubtraction and
// "rnnoise" to EngineRNNoiseLike.
type Engine int

const (
	EngineSpectralSubtraction Engine = iota
	EngineRNNoiseLike
)

// Denoiser performs single-channel noise suppression. The spectral
// subtraction path estimates a noise floor from low-energy frames and
// subtracts it in a simple time-domain envelope follower (a declared
// approximation of the frequency-domain algorithm for CPU-constrained
// paths); the rnnoise-like path is a fixed small-window smoother that
// stands in for a learned model without requiring one (no RNNoise cgo
// binding is in the dependency set assembled for this spec).
type Denoiser struct {
	engine Engine

	noiseFloor float64
	smoothed   float64

	// declared algorithmic delay in samples, reported so the orchestrator can
	// keep AEC/jitter timing budgets accurate (spec §4.8's "every DSP node
	// declares its processing delay").
	delaySamples int
}

func NewDenoiser(engine Engine) *Denoiser {
	d := &Denoiser{engine: engine}
	if engine == EngineRNNoiseLike {
		d.delaySamples = 80 // ~10ms lookahead at 8kHz-equivalent framing
	}
	return d
}

func (d *Denoiser) Name() string { return "denoise" }

// DelaySamples reports this node's fixed processing latency.
func (d *Denoiser) DelaySamples() int { return d.delaySamples }

func (d *Denoiser) Process(frame []int16) NodeStatus {
	switch d.engine {
	case EngineSpectralSubtraction:
		d.processSpectralSubtraction(frame)
	case EngineRNNoiseLike:
		d.processRNNoiseLike(frame)
	}
	return NodeOK
}

func (d *Denoiser) processSpectralSubtraction(frame []int16) {
	energy := frameEnergy(frame)
	if energy < d.noiseFloor || d.noiseFloor == 0 {
		d.noiseFloor = 0.95*d.noiseFloor + 0.05*energy
	}
	if d.noiseFloor == 0 {
		return
	}
	gain := 1 - clamp01(d.noiseFloor/(energy+1))
	for i, s := range frame {
		frame[i] = int16(float64(s) * gain)
	}
}

func (d *Denoiser) processRNNoiseLike(frame []int16) {
	const alpha = 0.3
	for i, s := range frame {
		d.smoothed = alpha*float64(s) + (1-alpha)*d.smoothed
		frame[i] = int16(d.smoothed)
	}
}

func (d *Denoiser) Reset() {
	d.noiseFloor = 0
	d.smoothed = 0
}

func frameEnergy(frame []int16) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	if len(frame) == 0 {
		return 0
	}
	return sum / float64(len(frame))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
