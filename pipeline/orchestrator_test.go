package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voicecore/pipeline/transport"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Codec = "pcmu" // avoid requiring the cgo `opus` build tag in tests
	cfg.SampleRate = 8000
	cfg.FrameDuration = 20 * time.Millisecond
	return cfg
}

func TestOrchestratorLoopbackDuplexDeliversAudio(t *testing.T) {
	cfg := testConfig()
	a, b := transport.NewLoopbackPair(64)

	alice, err := New(cfg, 0x1, a, zap.NewNop())
	require.NoError(t, err)
	bob, err := New(cfg, 0x2, b, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, alice.Start(ctx))
	require.NoError(t, bob.Start(ctx))
	defer alice.Stop()
	defer bob.Stop()

	frame := make([]int16, cfg.FrameSize())
	for i := range frame {
		frame[i] = int16(1000)
	}
	for i := 0; i < 20; i++ {
		alice.WriteCaptureFrame(frame)
		time.Sleep(cfg.FrameDuration)
	}

	time.Sleep(100 * time.Millisecond)

	out := make([]int16, cfg.FrameSize())
	n := bob.ReadPlaybackFrame(out)
	require.Greater(t, n, 0)

	stats := bob.Stats()
	require.Greater(t, stats.PacketsReceived, uint64(0))
}

func TestOrchestratorRejectsDoubleStart(t *testing.T) {
	cfg := testConfig()
	a, _ := transport.NewLoopbackPair(8)
	o, err := New(cfg, 0x1, a, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, o.Start(ctx))
	defer o.Stop()

	require.Error(t, o.Start(ctx))
}

func TestOrchestratorStopIsIdempotentFailure(t *testing.T) {
	cfg := testConfig()
	a, _ := transport.NewLoopbackPair(8)
	o, err := New(cfg, 0x1, a, zap.NewNop())
	require.NoError(t, err)

	require.Error(t, o.Stop()) // not started yet
}
