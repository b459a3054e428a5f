// Package testutil provides deterministic test signals and tolerance helpers.
package testutil

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/stretchr/testify/require"
)

// Sine returns seconds of a sine wave at freq Hz.
func Sine(freq float64, rate int, amplitude, seconds float64) dsp.Buffer {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	step := 2 * math.Pi * freq / float64(rate)

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return dsp.NewBuffer(out, rate)
}

// Noise returns uniform white noise in [-amplitude, amplitude] with a fixed seed.
func Noise(seed uint64, rate int, amplitude float64, n int) dsp.Buffer {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, n)

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return dsp.NewBuffer(out, rate)
}

// Mix sums buffers sample by sample; the result has the shortest length.
func Mix(buffers ...dsp.Buffer) dsp.Buffer {
	if len(buffers) == 0 {
		return dsp.Buffer{}
	}

	n := buffers[0].Len()
	for _, b := range buffers[1:] {
		n = min(n, b.Len())
	}

	out := make([]float64, n)
	for _, b := range buffers {
		for i := range out {
			out[i] += b.Samples[i]
		}
	}

	return dsp.NewBuffer(out, buffers[0].Rate)
}

// MaxAbsDiff returns the largest absolute difference between a and b.
func MaxAbsDiff(a, b []float64) float64 {
	var worst float64

	for i := range min(len(a), len(b)) {
		worst = math.Max(worst, math.Abs(a[i]-b[i]))
	}

	return worst
}

// RequireFinite fails the test if any sample is NaN or infinite.
func RequireFinite(t *testing.T, samples []float64) {
	t.Helper()

	for i, v := range samples {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "sample %d is not finite: %v", i, v)
	}
}

// Tail returns the energy of samples from skip to the end, ignoring filter
// start-up transients.
func Tail(b dsp.Buffer, skip int) float64 {
	if skip >= b.Len() {
		return 0
	}

	return dsp.Energy(dsp.NewBuffer(b.Samples[skip:], b.Rate))
}

// Fade applies a raised-cosine ramp of seconds to both ends of b.
func Fade(b dsp.Buffer, seconds float64) dsp.Buffer {
	n := len(b.Samples)
	ramp := int(seconds * float64(b.Rate))
	out := make([]float64, n)

	for i, x := range b.Samples {
		edge := min(i, n-1-i)
		if edge < ramp {
			x *= 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(ramp))
		}

		out[i] = x
	}

	return dsp.NewBuffer(out, b.Rate)
}
