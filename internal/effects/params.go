package effects

import (
	"fmt"
	"math"
)

const (
	errFmtParam      = "%w: %s must be %s, got %g"
	maxIntensity     = 100.0
	intensityPercent = 100.0
)

// Parameter limits and defaults shared with the transports and configuration.
const (
	DefaultIntensity = 50.0

	MaxRepeat       = 50
	MaxDelaySeconds = 10.0

	// Speed scales buffer length by 1/speed, so both ends are bounded.
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Params are the per-request overrides accepted by the catalogue.
type Params struct {
	Delay     float64 `json:"delay"`     // echo delay in seconds
	Repeat    int     `json:"repeat"`    // stutter repetitions
	Decay     float64 `json:"decay"`     // first echo tap level
	Cutoff    float64 `json:"cutoff"`    // cleanup lowpass cutoff in Hz
	Gain      float64 `json:"gain"`      // distortion drive
	Speed     float64 `json:"speed"`     // chipmunk speed-up
	Intensity float64 `json:"intensity"` // noise filter strength, 0-100
}

// Validate rejects values no effect can use. Cutoffs are checked against the
// input's Nyquist frequency by Descriptor.CheckRate.
func (p Params) Validate() error {
	checks := []struct {
		name  string
		value float64
		ok    bool
		want  string
	}{
		{"delay", p.Delay, p.Delay >= 0 && p.Delay <= MaxDelaySeconds, fmt.Sprintf("in [0, %g]", MaxDelaySeconds)},
		{"repeat", float64(p.Repeat), p.Repeat >= 1 && p.Repeat <= MaxRepeat, fmt.Sprintf("in [1, %d]", MaxRepeat)},
		{"decay", p.Decay, p.Decay >= 0 && p.Decay <= 1, "in [0, 1]"},
		{"cutoff", p.Cutoff, p.Cutoff > 0, "positive"},
		{"gain", p.Gain, p.Gain > 0, "positive"},
		{"speed", p.Speed, speedInRange(p.Speed), speedRange},
		{"intensity", p.Intensity, p.Intensity >= 0 && p.Intensity <= maxIntensity, "in [0, 100]"},
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || !c.ok {
			return fmt.Errorf(errFmtParam, ErrInvalidParams, c.name, c.want, c.value)
		}
	}

	return nil
}

var speedRange = fmt.Sprintf("in [%g, %g]", MinSpeed, MaxSpeed)

func speedInRange(speed float64) bool {
	return speed >= MinSpeed && speed <= MaxSpeed
}

// level maps intensity 0-100 onto [0, 1].
func (p Params) level() float64 {
	return p.Intensity / intensityPercent
}
