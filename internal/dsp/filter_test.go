package dsp_test

import (
	"testing"

	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 22050

func TestLowpass_RejectsCutoffOutsideNyquist(t *testing.T) {
	t.Parallel()

	buf := testutil.Sine(440, testRate, 0.5, 0.1)

	for _, cutoff := range []float64{0, -10, testRate / 2, testRate} {
		_, err := dsp.Lowpass(buf, cutoff, dsp.DefaultOrder)
		require.ErrorIs(t, err, dsp.ErrCutoffOutOfRange, "cutoff %v", cutoff)
	}
}

func TestHighpass_RejectsInvalidOrder(t *testing.T) {
	t.Parallel()

	_, err := dsp.Highpass(testutil.Sine(440, testRate, 0.5, 0.1), 80, 0)
	require.ErrorIs(t, err, dsp.ErrInvalidOrder)
}

func TestFilters_PreserveLength(t *testing.T) {
	t.Parallel()

	buf := testutil.Sine(440, testRate, 0.5, 0.25)

	low, err := dsp.Lowpass(buf, 3000, 5)
	require.NoError(t, err)
	high, err := dsp.Highpass(buf, 80, 4)
	require.NoError(t, err)
	band, err := dsp.Bandpass(buf, 300, 3400, 5)
	require.NoError(t, err)

	assert.Equal(t, buf.Len(), low.Len())
	assert.Equal(t, buf.Len(), high.Len())
	assert.Equal(t, buf.Len(), band.Len())
	testutil.RequireFinite(t, band.Samples)
}

func TestBandpass_EnergyInsideAndOutsideBand(t *testing.T) {
	t.Parallel()

	skip := testRate / 10

	tests := []struct {
		name     string
		freq     float64
		minRatio float64
		maxRatio float64
	}{
		{name: "in band", freq: 1000, minRatio: 0.8, maxRatio: 1.2},
		{name: "below band", freq: 60, minRatio: 0, maxRatio: 0.01},
		{name: "above band", freq: 8000, minRatio: 0, maxRatio: 0.01},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in := testutil.Sine(tc.freq, testRate, 0.5, 1)

			out, err := dsp.Bandpass(in, 300, 3400, dsp.DefaultOrder)
			require.NoError(t, err)

			ratio := testutil.Tail(out, skip) / testutil.Tail(in, skip)
			assert.GreaterOrEqual(t, ratio, tc.minRatio)
			assert.LessOrEqual(t, ratio, tc.maxRatio)
		})
	}
}

func TestBandpass_RejectsInvertedBand(t *testing.T) {
	t.Parallel()

	_, err := dsp.Bandpass(testutil.Sine(440, testRate, 0.5, 0.1), 3400, 300, 5)
	require.ErrorIs(t, err, dsp.ErrInvalidBand)
}

func TestNotch_RemovesCenterKeepsNeighbours(t *testing.T) {
	t.Parallel()

	skip := testRate / 10

	center := testutil.Sine(800, testRate, 0.5, 1)
	out, err := dsp.Notch(center, 800, 5)
	require.NoError(t, err)
	assert.Less(t, testutil.Tail(out, skip)/testutil.Tail(center, skip), 0.01)

	away := testutil.Sine(3000, testRate, 0.5, 1)
	out, err = dsp.Notch(away, 800, 5)
	require.NoError(t, err)
	assert.Greater(t, testutil.Tail(out, skip)/testutil.Tail(away, skip), 0.9)
}

func TestNotch_HigherQIsNarrower(t *testing.T) {
	t.Parallel()

	skip := testRate / 10
	in := testutil.Sine(900, testRate, 0.5, 1)

	wide, err := dsp.Notch(in, 800, 1)
	require.NoError(t, err)
	narrow, err := dsp.Notch(in, 800, 25)
	require.NoError(t, err)

	assert.Greater(t, testutil.Tail(narrow, skip), testutil.Tail(wide, skip))
}

func TestNotch_RejectsNonPositiveQ(t *testing.T) {
	t.Parallel()

	_, err := dsp.Notch(testutil.Sine(440, testRate, 0.5, 0.1), 800, 0)
	require.ErrorIs(t, err, dsp.ErrInvalidQ)
}

func TestFilters_RejectInvalidRate(t *testing.T) {
	t.Parallel()

	_, err := dsp.Lowpass(dsp.NewBuffer([]float64{0, 1}, 0), 100, 2)
	require.ErrorIs(t, err, dsp.ErrInvalidRate)
}
