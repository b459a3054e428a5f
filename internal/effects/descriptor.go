// Package effects holds the named voice effects and the cleanup pipelines,
// each expressed as an ordered list of dsp transforms.
package effects

import (
	"errors"
	"fmt"

	"github.com/book-expert/voicefx-service/internal/dsp"
)

var (
	// ErrUnknownEffect indicates a name missing from the catalogue.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrUnknownFilter indicates an unsupported noise filter type.
	ErrUnknownFilter = errors.New("unknown filter type")
	// ErrInvalidParams indicates an out-of-range pipeline parameter.
	ErrInvalidParams = errors.New("invalid effect parameters")
	// ErrPipeline wraps a transform failure inside a running pipeline.
	ErrPipeline = errors.New("pipeline step failed")
)

const (
	stepNormalize = "normalize"
	errFmtRate    = "%w: %s/%s needs %g Hz, which is outside (0, %g) Hz at this sample rate"
)

// Step is one transform with its parameters already bound.
type Step struct {
	Name          string
	ChangesLength bool
	ChangesRate   bool
	// Hz lists the filter frequencies that must lie below Nyquist.
	Hz []float64

	apply func(dsp.Buffer) (dsp.Buffer, error)
}

// Descriptor is a named, ordered composition of steps.
type Descriptor struct {
	Name  string
	Steps []Step
}

// Run threads buf through every step. The first failing step aborts the run.
func (d Descriptor) Run(buf dsp.Buffer) (dsp.Buffer, error) {
	err := buf.Validate()
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: %s: %w", ErrPipeline, d.Name, err)
	}

	for _, s := range d.Steps {
		buf, err = s.apply(buf)
		if err != nil {
			return dsp.Buffer{}, fmt.Errorf("%w: %s/%s: %w", ErrPipeline, d.Name, s.Name, err)
		}
	}

	return buf, nil
}

// CheckRate rejects a sample rate that would put a filter frequency at or
// above Nyquist. Checking stops at the first step that changes the rate.
func (d Descriptor) CheckRate(rate int) error {
	nyquist := float64(rate) / 2

	for _, s := range d.Steps {
		for _, hz := range s.Hz {
			if hz <= 0 || hz >= nyquist {
				return fmt.Errorf(errFmtRate, ErrInvalidParams, d.Name, s.Name, hz, nyquist)
			}
		}

		if s.ChangesRate {
			return nil
		}
	}

	return nil
}

// EndsWithNormalize reports whether the final step is a normalization.
func (d Descriptor) EndsWithNormalize() bool {
	return len(d.Steps) > 0 && d.Steps[len(d.Steps)-1].Name == stepNormalize
}

// ChangesLength reports whether any step may alter the buffer length.
func (d Descriptor) ChangesLength() bool {
	for _, s := range d.Steps {
		if s.ChangesLength {
			return true
		}
	}

	return false
}

// StepNames lists the step names in order.
func (d Descriptor) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}

	return names
}

func step(name string, fn func(dsp.Buffer) (dsp.Buffer, error)) Step {
	return Step{Name: name, apply: fn}
}

func pure(name string, fn func(dsp.Buffer) dsp.Buffer) Step {
	return Step{Name: name, apply: func(b dsp.Buffer) (dsp.Buffer, error) { return fn(b), nil }}
}

func resizing(s Step) Step {
	s.ChangesLength = true

	return s
}

func bounded(s Step, hz ...float64) Step {
	s.Hz = hz

	return s
}

func normalize(peak float64) Step {
	return pure(stepNormalize, func(b dsp.Buffer) dsp.Buffer { return dsp.Normalize(b, peak) })
}
