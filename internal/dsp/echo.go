package dsp

import (
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// Tap is one delayed, attenuated copy of the signal.
type Tap struct {
	Delay float64 // seconds
	Decay float64
}

// MultiTap builds taps at delay, 2*delay, ... with the given decays.
func MultiTap(delay float64, decays ...float64) []Tap {
	taps := make([]Tap, len(decays))
	for i, d := range decays {
		taps[i] = Tap{Delay: delay * float64(i+1), Decay: d}
	}

	return taps
}

// Echo sums the dry signal with every tap. Taps whose delay reaches past the
// end of the buffer contribute nothing.
func Echo(b Buffer, taps []Tap) (Buffer, error) {
	out := make([]float64, len(b.Samples))
	copy(out, b.Samples)

	scratch := make([]float64, len(b.Samples))

	for _, tap := range taps {
		if tap.Delay < 0 {
			return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "delay", tap.Delay)
		}

		d := b.delaySamples(tap.Delay)
		if d >= len(out) {
			continue
		}

		addDelayed(out, b.Samples, scratch, d, tap.Decay)
	}

	return b.with(out), nil
}

// addDelayed adds gain*src[n-d] to dst[n]; scratch holds at least len(src)-d
// samples.
func addDelayed(dst, src, scratch []float64, d int, gain float64) {
	n := len(src) - d
	vecmath.ScaleBlock(scratch[:n], src[:n], gain)
	vecmath.AddBlockInPlace(dst[d:d+n], scratch[:n])
}

// CancelEcho subtracts a single delayed copy scaled by attenuation:
// y[n] = x[n] - attenuation*x[n-d]. Delays of zero or beyond the buffer are
// no-ops.
func CancelEcho(b Buffer, delay, attenuation float64) (Buffer, error) {
	if delay < 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "delay", delay)
	}

	d := b.delaySamples(delay)
	if d == 0 || d >= len(b.Samples) {
		return b.Clone(), nil
	}

	out := make([]float64, len(b.Samples))
	copy(out, b.Samples)
	addDelayed(out, b.Samples, make([]float64, len(b.Samples)-d), d, -attenuation)

	return b.with(out), nil
}
