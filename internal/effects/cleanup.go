package effects

import (
	"fmt"
	"strings"

	"github.com/book-expert/voicefx-service/internal/dsp"
)

// CleanupConfig tunes the fixed voice cleanup chain.
type CleanupConfig struct {
	HighpassHz      float64
	LowpassHz       float64
	VoiceLowHz      float64
	VoiceHighHz     float64
	EchoDelay       float64
	EchoAttenuation float64
	GateThreshold   float64
	GateDilation    int
	Order           int
	Peak            float64
}

// DefaultCleanup returns the stock cleanup settings.
func DefaultCleanup() CleanupConfig {
	return CleanupConfig{
		HighpassHz:      80,
		LowpassHz:       3000,
		VoiceLowHz:      300,
		VoiceHighHz:     3400,
		EchoDelay:       0.2,
		EchoAttenuation: 0.6,
		GateThreshold:   0.02,
		GateDilation:    dsp.DefaultGateDilation,
		Order:           dsp.DefaultOrder,
		Peak:            dsp.DefaultPeak,
	}
}

// Cleanup returns the voice cleanup descriptor built from cfg.
func Cleanup(cfg CleanupConfig) Descriptor {
	return Descriptor{Name: ProcessVoice, Steps: cfg.steps()}
}

// The order is fixed: filtering precedes band isolation and echo removal
// runs on the band-limited signal.
func (cfg CleanupConfig) steps() []Step {
	return []Step{
		bounded(step("highpass", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Highpass(b, cfg.HighpassHz, cfg.Order)
		}), cfg.HighpassHz),
		bounded(step("lowpass", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Lowpass(b, cfg.LowpassHz, cfg.Order)
		}), cfg.LowpassHz),
		step("band_mask", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.BandMask(b, cfg.VoiceLowHz, cfg.VoiceHighHz)
		}),
		step("cancel_echo", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.CancelEcho(b, cfg.EchoDelay, cfg.EchoAttenuation)
		}),
		step("gate", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Gate(b, cfg.GateThreshold, cfg.GateDilation)
		}),
		normalize(cfg.Peak),
	}
}

// FilterType selects the adjustable noise filter.
type FilterType string

// Supported noise filters.
const (
	FilterNoise FilterType = "noise"
	FilterEcho  FilterType = "echo"
	FilterMusic FilterType = "music"
	FilterSiren FilterType = "siren"
)

// FilterTypes lists the supported filters.
func FilterTypes() []FilterType {
	return []FilterType{FilterNoise, FilterEcho, FilterMusic, FilterSiren}
}

// ParseFilterType maps user input onto a FilterType.
func ParseFilterType(s string) (FilterType, error) {
	ft := FilterType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FilterTypes() {
		if ft == known {
			return ft, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// FilterConfig holds the intensity mappings of the noise filters. Each
// filter interpolates from its base value at intensity 0 by the given span
// at intensity 100.
type FilterConfig struct {
	NoiseWindow float64

	EchoDelay     float64
	EchoBase      float64
	EchoSpan      float64
	MusicLowHz    float64
	MusicHighHz   float64
	MusicNarrowHz float64
	SirenHz       float64
	SirenQBase    float64
	SirenQSpan    float64
	Order         int
	Peak          float64
}

// DefaultFilters returns the stock noise filter settings.
func DefaultFilters() FilterConfig {
	return FilterConfig{
		NoiseWindow:   dsp.DefaultNoiseWindow,
		EchoDelay:     0.2,
		EchoBase:      0.3,
		EchoSpan:      0.4,
		MusicLowHz:    300,
		MusicHighHz:   3400,
		MusicNarrowHz: 1000,
		SirenHz:       800,
		SirenQBase:    5,
		SirenQSpan:    20,
		Order:         dsp.DefaultOrder,
		Peak:          dsp.DefaultPeak,
	}
}

// DescribeFilter binds a noise filter at intensity 0-100.
func (c *Catalogue) DescribeFilter(ft FilterType, intensity float64) (Descriptor, error) {
	p := DefaultParams()
	p.Intensity = intensity

	err := p.Validate()
	if err != nil {
		return Descriptor{}, err
	}

	level := p.level()
	cfg := c.filters

	var s Step

	switch ft {
	case FilterNoise:
		s = step("spectral_subtract", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.SpectralSubtract(b, level, cfg.NoiseWindow)
		})
	case FilterEcho:
		s = step("cancel_echo", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.CancelEcho(b, cfg.EchoDelay, cfg.EchoBase+level*cfg.EchoSpan)
		})
	case FilterMusic:
		high := cfg.MusicHighHz - level*cfg.MusicNarrowHz
		s = bounded(step("bandpass", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Bandpass(b, cfg.MusicLowHz, high, cfg.Order)
		}), cfg.MusicLowHz, high)
	case FilterSiren:
		s = bounded(step("notch", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Notch(b, cfg.SirenHz, cfg.SirenQBase+level*cfg.SirenQSpan)
		}), cfg.SirenHz)
	default:
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownFilter, ft)
	}

	return Descriptor{Name: "filter_" + string(ft), Steps: []Step{s, normalize(cfg.Peak)}}, nil
}

// Prefilter is the optional noise reduction run ahead of an effect.
func (c *Catalogue) Prefilter() Descriptor {
	return Descriptor{
		Name: "prefilter",
		Steps: []Step{
			step("spectral_subtract", func(b dsp.Buffer) (dsp.Buffer, error) {
				return dsp.SpectralSubtract(b, c.preset.PrefilterReduce, c.preset.PrefilterWindow)
			}),
			normalize(c.preset.Peak),
		},
	}
}

// Enhance smooths a voice recording with a lowpass and a voice-band bandpass,
// then optionally changes its speed. A speed of 1 leaves timing untouched.
func (c *Catalogue) Enhance(speed float64) (Descriptor, error) {
	if !speedInRange(speed) {
		return Descriptor{}, fmt.Errorf(errFmtParam, ErrInvalidParams, "speed", speedRange, speed)
	}

	cfg := c.cleanup
	steps := []Step{
		bounded(step("lowpass", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Lowpass(b, cfg.LowpassHz, cfg.Order)
		}), cfg.LowpassHz),
		bounded(step("bandpass", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Bandpass(b, cfg.VoiceLowHz, cfg.LowpassHz, cfg.Order)
		}), cfg.VoiceLowHz, cfg.LowpassHz),
	}

	if speed != 1 {
		steps = append(steps, resizing(step("change_speed", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.ChangeSpeed(b, speed)
		})))
	}

	steps = append(steps, normalize(cfg.Peak))

	return Descriptor{Name: "enhance", Steps: steps}, nil
}

// NoiseFilter runs the adjustable noise filter of the default catalogue.
func NoiseFilter(buf dsp.Buffer, ft FilterType, intensity float64) (dsp.Buffer, error) {
	d, err := defaultCatalogue.DescribeFilter(ft, intensity)
	if err != nil {
		return dsp.Buffer{}, err
	}

	return d.Run(buf)
}
