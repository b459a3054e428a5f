package dsp

import (
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultNoiseWindow is the leading span, in seconds, used to estimate noise.
const DefaultNoiseWindow = 0.1

// BandMask zeroes every frequency bin outside [low, high] Hz over the whole
// buffer. This is a brick-wall filter and rings audibly on transients; use
// Bandpass when a smooth response is wanted.
func BandMask(b Buffer, low, high float64) (Buffer, error) {
	return binMask(b, low, high, func(f float64) bool { return f < low || f > high })
}

// BandReject zeroes every frequency bin inside [low, high] Hz.
func BandReject(b Buffer, low, high float64) (Buffer, error) {
	return binMask(b, low, high, func(f float64) bool { return f >= low && f <= high })
}

func binMask(b Buffer, low, high float64, zero func(freq float64) bool) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	if low < 0 || low >= high {
		return Buffer{}, fmt.Errorf(errFmtBand, ErrInvalidBand, low, high)
	}

	n := len(b.Samples)
	if n < 2 {
		return b.Clone(), nil
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, b.Samples)

	binHz := float64(b.Rate) / float64(n)
	for k := range coeffs {
		if zero(float64(k) * binHz) {
			coeffs[k] = 0
		}
	}

	return b.with(inverse(fft, coeffs)), nil
}

// SpectralSubtract reduces stationary noise. The noise level is the mean
// magnitude of the leading window (seconds) scaled by reduce; it is subtracted
// from every bin magnitude of the full signal, floored at zero, and the signal
// is rebuilt with its original phase. Buffers shorter than the window are
// returned unchanged.
func SpectralSubtract(b Buffer, reduce, window float64) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	if reduce < 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "reduce", reduce)
	}

	if window <= 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "window", window)
	}

	noiseLen := b.delaySamples(window)
	if noiseLen < 1 || len(b.Samples) < noiseLen {
		return b.Clone(), nil
	}

	noiseMags := magnitudes(fourier.NewFFT(noiseLen).Coefficients(nil, b.Samples[:noiseLen]))
	noise := mean(noiseMags) * reduce

	fft := fourier.NewFFT(len(b.Samples))
	coeffs := fft.Coefficients(nil, b.Samples)
	mags := magnitudes(coeffs)

	for k, c := range coeffs {
		if mags[k] == 0 {
			continue
		}

		cleaned := math.Max(mags[k]-noise, 0)
		coeffs[k] = c * complex(cleaned/mags[k], 0)
	}

	return b.with(inverse(fft, coeffs)), nil
}

// DominantFrequency returns the frequency of the strongest non-DC bin.
func DominantFrequency(b Buffer) float64 {
	n := len(b.Samples)
	if n < 2 || b.Rate <= 0 {
		return 0
	}

	mags := magnitudes(fourier.NewFFT(n).Coefficients(nil, b.Samples))

	best := 1
	for k := 2; k < len(mags); k++ {
		if mags[k] > mags[best] {
			best = k
		}
	}

	return float64(best) * float64(b.Rate) / float64(n)
}

// BandEnergy returns the share of spectral energy that lies in [low, high] Hz,
// in [0, 1]. Silent buffers report 0.
func BandEnergy(b Buffer, low, high float64) float64 {
	n := len(b.Samples)
	if n < 2 || b.Rate <= 0 {
		return 0
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, b.Samples)
	re, im := split(coeffs)
	power := make([]float64, len(coeffs))
	vecmath.Power(power, re, im)

	binHz := float64(b.Rate) / float64(n)

	var inBand, total float64

	for k, p := range power {
		total += p

		f := float64(k) * binHz
		if f >= low && f <= high {
			inBand += p
		}
	}

	if total == 0 {
		return 0
	}

	return inBand / total
}

// inverse returns the real sequence for coeffs, scaled back to unit gain.
func inverse(fft *fourier.FFT, coeffs []complex128) []float64 {
	seq := fft.Sequence(nil, coeffs)

	return scale(seq, 1/float64(fft.Len()))
}

func magnitudes(coeffs []complex128) []float64 {
	re, im := split(coeffs)
	out := make([]float64, len(coeffs))
	vecmath.Magnitude(out, re, im)

	return out
}

func split(coeffs []complex128) (re, im []float64) {
	re = make([]float64, len(coeffs))
	im = make([]float64, len(coeffs))

	for i, c := range coeffs {
		re[i] = real(c)
		im[i] = imag(c)
	}

	return re, im
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	var sum float64
	for _, v := range x {
		sum += v
	}

	return sum / float64(len(x))
}
