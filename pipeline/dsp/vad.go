package dsp

import "math"

// VADMethod selects the voice-activity detection heuristic (spec §4.8).
type VADMethod int

const (
	VADEnergy VADMethod = iota
	VADZeroCrossing
	VADSpectralEntropy
)

// VAD classifies each frame as speech/non-speech. It does not mutate the
// frame (spec §4.8: "VAD is a classifier node, not a filter"); callers read
// LastActive() after Process.
type VAD struct {
	method VADMethod

	energyThreshold float64
	zcrThreshold    float64
	entropyThreshold float64

	noiseFloor float64
	lastActive bool
}

func NewVAD(method VADMethod) *VAD {
	v := &VAD{method: method}
	switch method {
	case VADEnergy:
		v.energyThreshold = 1_000_000
	case VADZeroCrossing:
		v.zcrThreshold = 0.15
	case VADSpectralEntropy:
		v.entropyThreshold = 0.6
	}
	return v
}

func (v *VAD) Name() string { return "vad" }

func (v *VAD) Process(frame []int16) NodeStatus {
	switch v.method {
	case VADEnergy:
		v.lastActive = v.classifyEnergy(frame)
	case VADZeroCrossing:
		v.lastActive = v.classifyZeroCrossing(frame)
	case VADSpectralEntropy:
		v.lastActive = v.classifySpectralEntropy(frame)
	}
	return NodeOK
}

func (v *VAD) classifyEnergy(frame []int16) bool {
	e := frameEnergy(frame)
	v.noiseFloor = 0.98*v.noiseFloor + 0.02*math.Min(e, v.noiseFloor+1)
	if v.noiseFloor == 0 {
		v.noiseFloor = e
	}
	return e > v.noiseFloor*3 && e > v.energyThreshold/100
}

func (v *VAD) classifyZeroCrossing(frame []int16) bool {
	if len(frame) < 2 {
		return false
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	rate := float64(crossings) / float64(len(frame))
	// Voiced speech has a characteristically low-but-nonzero crossing rate;
	// pure silence (near-zero energy) or hiss (very high rate) are excluded.
	return rate > 0.02 && rate < v.zcrThreshold && frameEnergy(frame) > 10000
}

// classifySpectralEntropy approximates spectral flatness via the coefficient
// of variation of a coarse energy histogram across the frame, avoiding a
// full FFT dependency (none of the example repos in the retrieval pack
// bundle a windowed-FFT library, so this is built on arithmetic the
// standard library already provides — see DESIGN.md).
func (v *VAD) classifySpectralEntropy(frame []int16) bool {
	const buckets = 8
	if len(frame) < buckets {
		return false
	}
	bucketSize := len(frame) / buckets
	energies := make([]float64, buckets)
	var total float64
	for b := 0; b < buckets; b++ {
		seg := frame[b*bucketSize : (b+1)*bucketSize]
		e := frameEnergy(seg)
		energies[b] = e
		total += e
	}
	if total == 0 {
		return false
	}
	var entropy float64
	for _, e := range energies {
		p := e / total
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	maxEntropy := math.Log2(float64(buckets))
	normalized := entropy / maxEntropy
	// Tonal speech energy concentrates in fewer buckets than flat noise,
	// so speech shows up as lower normalized entropy.
	return normalized < v.entropyThreshold && total > 1_000_000
}

// LastActive returns the classification from the most recent Process call.
func (v *VAD) LastActive() bool { return v.lastActive }

func (v *VAD) Reset() {
	v.noiseFloor = 0
	v.lastActive = false
}
