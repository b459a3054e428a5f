// Package dsp implements the signal-level transforms used by the voice effects
// and cleanup pipelines.
//
// Every transform takes a Buffer and returns a new Buffer. Inputs are never
// mutated, so a caller may keep the original around for comparison plots.
// Degenerate inputs (empty buffers, silence, delays longer than the signal) are
// handled as no-ops rather than errors; only invalid parameters are rejected.
package dsp

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for parameter validation.
var (
	// ErrInvalidRate indicates a sample rate that is not positive.
	ErrInvalidRate = errors.New("sample rate must be positive")
	// ErrCutoffOutOfRange indicates a frequency outside (0, Nyquist).
	ErrCutoffOutOfRange = errors.New("cutoff frequency must be between 0 and Nyquist")
	// ErrInvalidOrder indicates a filter order below one.
	ErrInvalidOrder = errors.New("filter order must be at least 1")
	// ErrInvalidBand indicates a band whose low edge is not below its high edge.
	ErrInvalidBand = errors.New("band low edge must be below high edge")
	// ErrInvalidQ indicates a resonance quality that is not positive.
	ErrInvalidQ = errors.New("quality factor must be positive")
	// ErrInvalidSpeed indicates a speed or stretch ratio that is not positive.
	ErrInvalidSpeed = errors.New("speed must be greater than zero")
	// ErrInvalidParam indicates any other out-of-range transform parameter.
	ErrInvalidParam = errors.New("invalid transform parameter")
)

const (
	errFmtCutoff = "%w: %.2f Hz (nyquist %.2f Hz)"
	errFmtBand   = "%w: [%.2f, %.2f] Hz"
	errFmtSpeed  = "%w: got %g"
	errFmtParam  = "%w: %s = %g"
)

// Buffer is a mono block of samples paired with its sample rate.
type Buffer struct {
	Samples []float64
	Rate    int
}

// NewBuffer wraps samples at the given rate.
func NewBuffer(samples []float64, rate int) Buffer {
	return Buffer{Samples: samples, Rate: rate}
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.Rate <= 0 {
		return 0
	}

	return time.Duration(float64(len(b.Samples)) / float64(b.Rate) * float64(time.Second))
}

// Nyquist returns half the sample rate.
func (b Buffer) Nyquist() float64 { return float64(b.Rate) / 2 }

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	out := make([]float64, len(b.Samples))
	copy(out, b.Samples)

	return Buffer{Samples: out, Rate: b.Rate}
}

// Validate reports whether the buffer can be processed.
func (b Buffer) Validate() error {
	if b.Rate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRate, b.Rate)
	}

	return nil
}

func (b Buffer) with(samples []float64) Buffer {
	return Buffer{Samples: samples, Rate: b.Rate}
}

// delaySamples converts seconds to a whole number of samples at the buffer rate.
func (b Buffer) delaySamples(seconds float64) int {
	return int(seconds * float64(b.Rate))
}

func checkCutoff(b Buffer, freq float64) error {
	if freq <= 0 || freq >= b.Nyquist() {
		return fmt.Errorf(errFmtCutoff, ErrCutoffOutOfRange, freq, b.Nyquist())
	}

	return nil
}
