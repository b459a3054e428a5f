package dsp

import "math"

// coefficients holds a normalized second-order section (a0 == 1).
// First-order sections leave B2 and A2 at zero.
type coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// section runs one biquad in Direct Form II Transposed.
type section struct {
	coefficients

	d0, d1 float64
}

func (s *section) process(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// cascade filters samples through every section in order, starting from rest.
func cascade(samples []float64, sections []coefficients) []float64 {
	chain := make([]section, len(sections))
	for i, c := range sections {
		chain[i] = section{coefficients: c}
	}

	out := make([]float64, len(samples))
	for n, x := range samples {
		for i := range chain {
			x = chain[i].process(x)
		}

		out[n] = x
	}

	return out
}

func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))

	return 1 / (2 * math.Sin(theta))
}

// butterworthLowpass designs an order-N lowpass cascade; odd orders end with a
// first-order section.
func butterworthLowpass(freq float64, order int, rate float64) []coefficients {
	sections := make([]coefficients, 0, (order+1)/2)

	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, lowpassRBJ(freq, butterworthQ(order, i), rate))
	}

	if order%2 != 0 {
		k := math.Tan(math.Pi * freq / rate)
		norm := 1 / (1 + k)
		sections = append(sections, coefficients{B0: k * norm, B1: k * norm, A1: (k - 1) * norm})
	}

	return sections
}

func butterworthHighpass(freq float64, order int, rate float64) []coefficients {
	sections := make([]coefficients, 0, (order+1)/2)

	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, highpassRBJ(freq, butterworthQ(order, i), rate))
	}

	if order%2 != 0 {
		k := math.Tan(math.Pi * freq / rate)
		norm := 1 / (1 + k)
		sections = append(sections, coefficients{B0: norm, B1: -norm, A1: (k - 1) * norm})
	}

	return sections
}

func lowpassRBJ(freq, q, rate float64) coefficients {
	cw, alpha := rbjTerms(freq, q, rate)

	return normalizeBiquad((1-cw)/2, 1-cw, (1-cw)/2, 1+alpha, -2*cw, 1-alpha)
}

func highpassRBJ(freq, q, rate float64) coefficients {
	cw, alpha := rbjTerms(freq, q, rate)

	return normalizeBiquad((1+cw)/2, -(1 + cw), (1+cw)/2, 1+alpha, -2*cw, 1-alpha)
}

func notchRBJ(freq, q, rate float64) coefficients {
	cw, alpha := rbjTerms(freq, q, rate)

	return normalizeBiquad(1, -2*cw, 1, 1+alpha, -2*cw, 1-alpha)
}

func rbjTerms(freq, q, rate float64) (cw, alpha float64) {
	w0 := 2 * math.Pi * freq / rate

	return math.Cos(w0), math.Sin(w0) / (2 * q)
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) coefficients {
	return coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
