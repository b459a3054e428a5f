package dsp

import (
	"fmt"
	"math"
)

// WSOLA window sizes in milliseconds.
const (
	sequenceMs = 82.0
	overlapMs  = 10.0
	searchMs   = 28.0
)

const (
	minPitchRatio = 0.25
	maxPitchRatio = 4.0
	tiny          = 1e-12
)

// TimeStretch changes duration by 1/speed without changing pitch: speed 2
// halves the length. Speed must be positive.
func TimeStretch(b Buffer, speed float64) (Buffer, error) {
	err := checkSpeed(speed)
	if err != nil {
		return Buffer{}, err
	}

	err = b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	if len(b.Samples) == 0 || speed == 1 {
		return b.Clone(), nil
	}

	return b.with(newStretcher(b.Rate).stretch(b.Samples, 1/speed)), nil
}

// PitchShift moves the pitch by semitones while keeping the duration.
func PitchShift(b Buffer, semitones float64) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	ratio := math.Pow(2, semitones/12)
	if math.IsNaN(ratio) || ratio < minPitchRatio || ratio > maxPitchRatio {
		return Buffer{}, fmt.Errorf(errFmtParam, ErrInvalidParam, "semitones", semitones)
	}

	if len(b.Samples) == 0 || semitones == 0 {
		return b.Clone(), nil
	}

	stretched := newStretcher(b.Rate).stretch(b.Samples, ratio)

	return b.with(resampleHermite(stretched, len(b.Samples))), nil
}

// Resample converts the buffer to a new sample rate, keeping its duration.
func Resample(b Buffer, rate int) (Buffer, error) {
	err := b.Validate()
	if err != nil {
		return Buffer{}, err
	}

	if rate <= 0 {
		return Buffer{}, fmt.Errorf("%w: target %d", ErrInvalidRate, rate)
	}

	if rate == b.Rate {
		return b.Clone(), nil
	}

	n := int(math.Round(float64(len(b.Samples)) * float64(rate) / float64(b.Rate)))

	return Buffer{Samples: resampleHermite(b.Samples, n), Rate: rate}, nil
}

// ChangeSpeed plays the buffer back speed times faster, like a tape machine:
// both duration and pitch change. The sample rate is unchanged.
func ChangeSpeed(b Buffer, speed float64) (Buffer, error) {
	err := checkSpeed(speed)
	if err != nil {
		return Buffer{}, err
	}

	n := int(math.Round(float64(len(b.Samples)) / speed))

	return b.with(resampleHermite(b.Samples, n)), nil
}

func checkSpeed(speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf(errFmtSpeed, ErrInvalidSpeed, speed)
	}

	return nil
}

// stretcher is a WSOLA time-scale modifier: overlapping sequences are taken
// from the input at a nominal hop and aligned by normalized cross-correlation
// before cross-fading into the output.
type stretcher struct {
	sequenceLen int
	overlapLen  int
	searchLen   int
	stepOut     int
	fadeIn      []float64
	fadeOut     []float64
}

func newStretcher(rate int) *stretcher {
	ms := func(v float64) int { return int(math.Round(v * 0.001 * float64(rate))) }

	s := &stretcher{
		sequenceLen: max(ms(sequenceMs), 32),
		overlapLen:  max(ms(overlapMs), 8),
		searchLen:   max(ms(searchMs), 1),
	}

	if s.overlapLen >= s.sequenceLen {
		s.overlapLen = s.sequenceLen / 4
	}

	s.stepOut = s.sequenceLen - s.overlapLen
	s.fadeIn = make([]float64, s.overlapLen)
	s.fadeOut = make([]float64, s.overlapLen)

	for i := range s.overlapLen {
		t := float64(i) / float64(s.overlapLen-1)
		in := 0.5 - 0.5*math.Cos(math.Pi*t)
		s.fadeIn[i] = in
		s.fadeOut[i] = 1 - in
	}

	return s
}

// stretch returns round(len(input)*factor) samples.
func (s *stretcher) stretch(input []float64, factor float64) []float64 {
	targetLen := max(int(math.Round(float64(len(input))*factor)), 1)

	// Too short to hold one sequence: fall back to plain interpolation.
	if len(input) < s.sequenceLen {
		return resampleHermite(input, targetLen)
	}

	nominalStep := math.Max(float64(s.stepOut)/factor, 1)

	out := make([]float64, (targetLen/s.stepOut+4)*s.stepOut+s.sequenceLen+1)
	for i := range s.sequenceLen {
		out[i] = sampleZero(input, i)
	}

	outLen := s.sequenceLen
	prevStart := 0
	nextNominal := nominalStep
	ref := make([]float64, s.overlapLen)

	for outLen < targetLen+s.sequenceLen {
		refStart := prevStart + s.stepOut
		for i := range ref {
			ref[i] = sampleZero(input, refStart+i)
		}

		candStart := s.bestOverlap(ref, input, int(math.Round(nextNominal)))

		outStart := outLen - s.overlapLen
		for i := range s.overlapLen {
			out[outStart+i] = out[outStart+i]*s.fadeOut[i] + sampleZero(input, candStart+i)*s.fadeIn[i]
		}

		for i := s.overlapLen; i < s.sequenceLen; i++ {
			out[outStart+i] = sampleZero(input, candStart+i)
		}

		outLen = outStart + s.sequenceLen
		prevStart = candStart
		nextNominal += nominalStep

		if prevStart > len(input)+s.sequenceLen && outLen >= targetLen {
			break
		}

		if outLen+s.stepOut > len(out) {
			break
		}
	}

	if targetLen <= len(out) {
		return out[:targetLen]
	}

	padded := make([]float64, targetLen)
	copy(padded, out)

	return padded
}

func (s *stretcher) bestOverlap(ref, input []float64, predicted int) int {
	best := predicted
	bestScore := math.Inf(-1)

	refEnergy := tiny
	for _, v := range ref {
		refEnergy += v * v
	}

	for cand := predicted - s.searchLen; cand <= predicted+s.searchLen; cand++ {
		dot := 0.0
		candEnergy := tiny

		for i, rv := range ref {
			cv := sampleZero(input, cand+i)
			dot += rv * cv
			candEnergy += cv * cv
		}

		score := dot / math.Sqrt(refEnergy*candEnergy)
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}

	return best
}

// resampleHermite maps input onto outLen points with 4-point Hermite
// interpolation, keeping the first and last samples aligned.
func resampleHermite(input []float64, outLen int) []float64 {
	if outLen <= 0 || len(input) == 0 {
		return []float64{}
	}

	out := make([]float64, outLen)
	if len(input) == 1 || outLen == 1 {
		for i := range out {
			out[i] = input[0]
		}

		return out
	}

	step := float64(len(input)-1) / float64(outLen-1)
	for i := range out {
		pos := float64(i) * step
		idx := int(math.Floor(pos))
		out[i] = hermite4(pos-float64(idx),
			sampleClamp(input, idx-1), sampleClamp(input, idx),
			sampleClamp(input, idx+1), sampleClamp(input, idx+2))
	}

	return out
}

func hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)

	return ((c3*t+c2)*t+c1)*t + c0
}

func sampleZero(x []float64, idx int) float64 {
	if idx < 0 || idx >= len(x) {
		return 0
	}

	return x[idx]
}

func sampleClamp(x []float64, idx int) float64 {
	switch {
	case idx < 0:
		return x[0]
	case idx >= len(x):
		return x[len(x)-1]
	default:
		return x[idx]
	}
}
