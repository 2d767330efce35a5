package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigFrameSize(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 960, cfg.FrameSize()) // 48000Hz * 20ms
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audio:
  sample_rate: 16000
  channels: 1
  frame_duration_ms: 20
codec:
  name: pcma
  g711_use_alaw: true
jitter:
  min_delay_ms: 20
  max_delay_ms: 300
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 16000, cfg.SampleRate)
	require.Equal(t, "pcma", cfg.Codec)
	require.True(t, cfg.G711UseALaw)
	require.Equal(t, 320, cfg.FrameSize())
}

func TestLoadConfigRejectsInvalidSampleRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  sample_rate: 11025\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsInvertedJitterBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jitter:\n  min_delay_ms: 300\n  max_delay_ms: 100\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
