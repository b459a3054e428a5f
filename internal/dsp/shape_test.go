package dsp_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftClip_BoundedByOne(t *testing.T) {
	t.Parallel()

	out := dsp.SoftClip(dsp.NewBuffer([]float64{-10, -0.1, 0, 0.1, 10}, testRate), 6)

	assert.LessOrEqual(t, dsp.Peak(out), 1.0)
	assert.InDelta(t, math.Tanh(0.6), out.Samples[3], 1e-12)
	assert.Zero(t, out.Samples[2])
}

func TestHardClip(t *testing.T) {
	t.Parallel()

	out, err := dsp.HardClip(dsp.NewBuffer([]float64{-2, -0.25, 0.25, 2}, testRate), 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, -0.25, 0.25, 0.5}, out.Samples)

	_, err = dsp.HardClip(out, -1)
	require.ErrorIs(t, err, dsp.ErrInvalidParam)
}

func TestRingModulate_ShiftsEnergyToSidebands(t *testing.T) {
	t.Parallel()

	in := testutil.Sine(1000, testRate, 0.5, 1)

	out, err := dsp.RingModulate(in, 50)
	require.NoError(t, err)

	require.Equal(t, in.Len(), out.Len())
	assert.Less(t, dsp.BandEnergy(out, 990, 1010), 0.01)
	assert.Greater(t, dsp.BandEnergy(out, 940, 1060), 0.99)

	_, err = dsp.RingModulate(in, testRate)
	require.ErrorIs(t, err, dsp.ErrCutoffOutOfRange)
}

func TestSineFold(t *testing.T) {
	t.Parallel()

	out := dsp.SineFold(dsp.NewBuffer([]float64{0, 0.25, 0.5}, testRate))

	assert.InDelta(t, 0, out.Samples[0], 1e-12)
	assert.InDelta(t, 1, out.Samples[1], 1e-12)
	assert.InDelta(t, 0, out.Samples[2], 1e-12)
}

func TestSignNoise_FollowsInputSign(t *testing.T) {
	t.Parallel()

	in := testutil.Sine(440, testRate, 0.5, 0.1)
	out := dsp.SignNoise(in, 0.02, rand.New(rand.NewPCG(1, 2)))

	require.Equal(t, in.Len(), out.Len())

	for i, x := range in.Samples {
		if x == 0 {
			assert.Zero(t, out.Samples[i])
		}
	}

	assert.Greater(t, dsp.RMS(out), 0.0)
	assert.Less(t, dsp.RMS(out), 0.05)
}

func TestAddNoise_IsDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	in := testutil.Sine(440, testRate, 0.5, 0.05)

	a := dsp.AddNoise(in, 0.002, rand.New(rand.NewPCG(7, 7)))
	b := dsp.AddNoise(in, 0.002, rand.New(rand.NewPCG(7, 7)))

	assert.Equal(t, a.Samples, b.Samples)
	assert.Less(t, testutil.MaxAbsDiff(in.Samples, a.Samples), 0.02)
}
