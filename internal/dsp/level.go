package dsp

import (
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// DefaultPeak is the target peak amplitude of Normalize.
const DefaultPeak = 0.95

// Peak returns the largest absolute sample value.
func Peak(b Buffer) float64 {
	var peak float64

	for _, x := range b.Samples {
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}

	return peak
}

// Energy returns the sum of squared samples.
func Energy(b Buffer) float64 {
	var sum float64
	for _, x := range b.Samples {
		sum += x * x
	}

	return sum
}

// RMS returns the root mean square level, 0 for empty buffers.
func RMS(b Buffer) float64 {
	if len(b.Samples) == 0 {
		return 0
	}

	return math.Sqrt(Energy(b) / float64(len(b.Samples)))
}

// Normalize scales the buffer so its peak equals target. Silent buffers are
// returned unchanged.
func Normalize(b Buffer, target float64) Buffer {
	peak := Peak(b)
	if peak == 0 {
		return b.Clone()
	}

	return b.with(scale(b.Samples, target/peak))
}

// Gain multiplies every sample by g.
func Gain(b Buffer, g float64) Buffer {
	return b.with(scale(b.Samples, g))
}

// Reverse returns the samples in reverse order.
func Reverse(b Buffer) Buffer {
	n := len(b.Samples)
	out := make([]float64, n)

	for i, x := range b.Samples {
		out[n-1-i] = x
	}

	return b.with(out)
}

// Stutter takes the leading len/divisor samples, repeats them repeat times and
// prepends the repetitions to the untouched original.
func Stutter(b Buffer, divisor, repeat int) (Buffer, error) {
	if divisor < 1 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "divisor", float64(divisor))
	}

	if repeat < 1 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "repeat", float64(repeat))
	}

	chunk := b.Samples[:len(b.Samples)/divisor]
	if len(chunk) == 0 {
		return b.Clone(), nil
	}

	out := make([]float64, 0, repeat*len(chunk)+len(b.Samples))
	for range repeat {
		out = append(out, chunk...)
	}

	out = append(out, b.Samples...)

	return b.with(out), nil
}

func scale(samples []float64, g float64) []float64 {
	out := make([]float64, len(samples))
	vecmath.ScaleBlock(out, samples, g)

	return out
}
