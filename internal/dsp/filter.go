package dsp

import "fmt"

// DefaultOrder is the Butterworth order used by the cleanup and noise filters.
const DefaultOrder = 5

// Lowpass applies a causal Butterworth lowpass of the given order.
func Lowpass(b Buffer, cutoff float64, order int) (Buffer, error) {
	err := checkFilter(b, cutoff, order)
	if err != nil {
		return Buffer{}, err
	}

	return b.with(cascade(b.Samples, butterworthLowpass(cutoff, order, float64(b.Rate)))), nil
}

// Highpass applies a causal Butterworth highpass of the given order.
func Highpass(b Buffer, cutoff float64, order int) (Buffer, error) {
	err := checkFilter(b, cutoff, order)
	if err != nil {
		return Buffer{}, err
	}

	return b.with(cascade(b.Samples, butterworthHighpass(cutoff, order, float64(b.Rate)))), nil
}

// Bandpass keeps [low, high] with a highpass at low followed by a lowpass at
// high, both of the given order.
func Bandpass(b Buffer, low, high float64, order int) (Buffer, error) {
	if low >= high {
		return Buffer{}, fmt.Errorf(errFmtBand, ErrInvalidBand, low, high)
	}

	err := checkFilter(b, low, order)
	if err != nil {
		return Buffer{}, err
	}

	err = checkCutoff(b, high)
	if err != nil {
		return Buffer{}, err
	}

	rate := float64(b.Rate)
	sections := append(butterworthHighpass(low, order, rate), butterworthLowpass(high, order, rate)...)

	return b.with(cascade(b.Samples, sections)), nil
}

// Notch removes a narrow band around freq. Higher q gives a narrower notch.
func Notch(b Buffer, freq, q float64) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	err = checkCutoff(b, freq)
	if err != nil {
		return Buffer{}, err
	}

	if q <= 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidQ, "q", q)
	}

	return b.with(cascade(b.Samples, []coefficients{notchRBJ(freq, q, float64(b.Rate))})), nil
}

func checkFilter(b Buffer, cutoff float64, order int) error {
	err := b.Validate()
	if err != nil {
		return err
	}

	if order < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}

	return checkCutoff(b, cutoff)
}
