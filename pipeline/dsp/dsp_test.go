package dsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fatalNode struct{ calls int }

func (f *fatalNode) Name() string { return "fatal" }
func (f *fatalNode) Process(frame []int16) NodeStatus {
	f.calls++
	return NodeFatal
}
func (f *fatalNode) Reset() { f.calls = 0 }

func TestChainBypassesFatalNodeAfterFirstFailure(t *testing.T) {
	fn := &fatalNode{}
	chain := NewChain(fn)
	frame := make([]int16, 160)

	statuses := chain.Process(frame)
	require.Equal(t, []NodeStatus{NodeFatal}, statuses)
	require.Equal(t, 1, fn.calls)

	statuses = chain.Process(frame)
	require.Equal(t, []NodeStatus{NodeBypassed}, statuses)
	require.Equal(t, 1, fn.calls, "fatal node should not run again while bypassed")
}

func TestResetNodeClearsBypass(t *testing.T) {
	fn := &fatalNode{}
	chain := NewChain(fn)
	frame := make([]int16, 10)
	chain.Process(frame)
	require.True(t, chain.Bypassed("fatal"))

	require.NoError(t, chain.ResetNode("fatal"))
	require.False(t, chain.Bypassed("fatal"))
}

func TestResetNodeUnknownNameErrors(t *testing.T) {
	chain := NewChain()
	require.Error(t, chain.ResetNode("nope"))
}

func TestAECReducesEchoWhenFarEndMatchesNearEnd(t *testing.T) {
	aec := NewAEC(32, 0, 0.5)
	farEnd := make([]int16, 160)
	for i := range farEnd {
		farEnd[i] = int16(1000)
	}

	var lastEnergy float64
	for iter := 0; iter < 50; iter++ {
		aec.PushFarEnd(farEnd)
		near := make([]int16, 160)
		copy(near, farEnd) // near end is pure echo of far end
		status := aec.Process(near)
		require.NotEqual(t, NodeFatal, status)
		lastEnergy = frameEnergy(near)
	}
	require.Less(t, lastEnergy, frameEnergy(farEnd))
}

func TestDenoiserReducesLowLevelNoiseFloorOverTime(t *testing.T) {
	d := NewDenoiser(EngineSpectralSubtraction)
	noise := []int16{5, -4, 6, -5, 4, -6, 5, -4}
	var buf []int16
	for i := 0; i < 20; i++ {
		buf = append([]int16(nil), noise...)
		d.Process(buf)
	}
	require.Equal(t, "denoise", d.Name())
	require.Less(t, frameEnergy(buf), frameEnergy(noise))
}

func TestAGCFixedAppliesConstantGain(t *testing.T) {
	agc := NewAGC(AGCFixed, 0, 2.0)
	frame := []int16{100, -100, 200}
	agc.Process(frame)
	require.Equal(t, []int16{200, -200, 400}, frame)
}

func TestAGCAdaptiveConvergesTowardTarget(t *testing.T) {
	agc := NewAGC(AGCAdaptive, 10000, 1)
	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = 100
	}
	var rms float64
	for i := 0; i < 50; i++ {
		buf := append([]int16(nil), frame...)
		agc.Process(buf)
		rms = rmsOf(buf)
	}
	require.Greater(t, rms, 100.0)
}

func TestVADEnergyDetectsLoudFrameOverSilence(t *testing.T) {
	v := NewVAD(VADEnergy)
	silence := make([]int16, 160)
	for i := 0; i < 10; i++ {
		v.Process(silence)
	}
	require.False(t, v.LastActive())

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 20000
	}
	v.Process(loud)
	require.True(t, v.LastActive())
}

func TestEqualizerIsStableOnSilence(t *testing.T) {
	eq := NewEqualizer(6)
	frame := make([]int16, 160)
	status := eq.Process(frame)
	require.Equal(t, NodeOK, status)
	for _, s := range frame {
		require.Equal(t, int16(0), s)
	}
}

func TestCompressorReducesLevelAboveThreshold(t *testing.T) {
	c := NewCompressor(1000, 4)
	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 20000
	}
	before := rmsOf(loud)
	for i := 0; i < 5; i++ {
		c.Process(loud)
	}
	require.Less(t, rmsOf(loud), before)
}

func TestComfortNoiseGeneratorStaysWithinLevel(t *testing.T) {
	cn := NewComfortNoiseGenerator(500, 42)
	frame := make([]int16, 160)
	cn.Process(frame)
	for _, s := range frame {
		require.LessOrEqual(t, s, int16(500))
		require.GreaterOrEqual(t, s, int16(-500))
	}
}
