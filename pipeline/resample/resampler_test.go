package resample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputFramesRounding(t *testing.T) {
	r, err := Create(8000, 48000, 1, 5)
	require.NoError(t, err)
	defer r.Destroy()

	// 8kHz -> 48kHz is a clean 6x ratio: spec boundary behavior #14.
	require.Equal(t, 120, r.OutputFrames(20))
}

func TestCreateRejectsInvalidParams(t *testing.T) {
	_, err := Create(0, 48000, 1, 5)
	require.Error(t, err)

	_, err = Create(8000, 48000, 3, 5)
	require.Error(t, err)

	_, err = Create(8000, 48000, 1, 11)
	require.Error(t, err)
}

func TestResetDoesNotChangeRates(t *testing.T) {
	r, err := Create(16000, 48000, 1, 7)
	require.NoError(t, err)
	defer r.Destroy()

	r.Reset()
	require.Equal(t, 16000, r.InRate())
	require.Equal(t, 48000, r.OutRate())
}
