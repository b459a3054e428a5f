package dsp

import (
	"fmt"
	"math"
)

// DefaultGateDilation is how many samples the gate stays open on either side
// of a sample above threshold.
const DefaultGateDilation = 100

// Gate silences samples whose magnitude is at or below threshold. The open
// mask is widened by dilation samples on each side so the gate does not click
// at segment edges.
func Gate(b Buffer, threshold float64, dilation int) (Buffer, error) {
	if threshold < 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "threshold", threshold)
	}

	if dilation < 0 {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "dilation", float64(dilation))
	}

	open := make([]bool, len(b.Samples))
	for i, x := range b.Samples {
		open[i] = math.Abs(x) > threshold
	}

	open = dilate(open, dilation)

	out := make([]float64, len(b.Samples))
	for i, x := range b.Samples {
		if open[i] {
			out[i] = x
		}
	}

	return b.with(out), nil
}

// dilate marks every index within radius of a true index.
func dilate(mask []bool, radius int) []bool {
	n := len(mask)
	out := make([]bool, n)

	last := math.MinInt / 2
	for i := range n {
		if mask[i] {
			last = i
		}

		out[i] = i-last <= radius
	}

	next := math.MaxInt / 2
	for i := n - 1; i >= 0; i-- {
		if mask[i] {
			next = i
		}

		if next-i <= radius {
			out[i] = true
		}
	}

	return out
}
