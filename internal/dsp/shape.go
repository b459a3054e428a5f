package dsp

import (
	"fmt"
	"math"
	"math/rand/v2"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// SoftClip applies tanh(gain*x).
func SoftClip(b Buffer, gain float64) Buffer {
	out := make([]float64, len(b.Samples))
	for i, x := range b.Samples {
		out[i] = math.Tanh(gain * x)
	}

	return b.with(out)
}

// HardClip clamps every sample to [-limit, limit].
func HardClip(b Buffer, limit float64) (Buffer, error) {
	if limit < 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "limit", limit)
	}

	out := make([]float64, len(b.Samples))
	for i, x := range b.Samples {
		out[i] = math.Max(-limit, math.Min(limit, x))
	}

	return b.with(out), nil
}

// RingModulate multiplies the signal by a sine carrier at freq Hz.
func RingModulate(b Buffer, freq float64) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	err = checkCutoff(b, freq)
	if err != nil {
		return Buffer{}, err
	}

	carrier := make([]float64, len(b.Samples))
	w := 2 * math.Pi * freq / float64(b.Rate)

	for i := range carrier {
		carrier[i] = math.Sin(w * float64(i))
	}

	out := make([]float64, len(b.Samples))
	vecmath.MulBlock(out, b.Samples, carrier)

	return b.with(out), nil
}

// SineFold maps every sample through sin(2*pi*x), folding loud passages back
// on themselves.
func SineFold(b Buffer) Buffer {
	out := make([]float64, len(b.Samples))
	for i, x := range b.Samples {
		out[i] = math.Sin(2 * math.Pi * x)
	}

	return b.with(out)
}

// AddNoise adds Gaussian noise with standard deviation sigma.
func AddNoise(b Buffer, sigma float64, rng *rand.Rand) Buffer {
	out := make([]float64, len(b.Samples))
	for i, x := range b.Samples {
		out[i] = x + rng.NormFloat64()*sigma
	}

	return b.with(out)
}

// SignNoise replaces the signal with Gaussian noise carrying the sign of each
// input sample, which keeps the rhythm of speech but none of its pitch.
func SignNoise(b Buffer, sigma float64, rng *rand.Rand) Buffer {
	noise := make([]float64, len(b.Samples))
	signs := make([]float64, len(b.Samples))

	for i, x := range b.Samples {
		noise[i] = rng.NormFloat64() * sigma
		signs[i] = sign(x)
	}

	vecmath.MulBlockInPlace(noise, signs)

	return b.with(noise)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
