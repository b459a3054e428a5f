package effects

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/book-expert/voicefx-service/internal/dsp"
)

// Effect names served by the catalogue.
const (
	Chipmunk     = "chipmunk"
	Robot        = "robot"
	Echo         = "echo"
	Whisper      = "whisper"
	Distortion   = "distortion"
	Reverse      = "reverse"
	Monster      = "monster"
	Telephone    = "telephone"
	Stutter      = "stutter"
	Electronic   = "electronic"
	ProcessVoice = "process_voice"
)

type builder func(c *Catalogue, p Params) []Step

var builders = map[string]builder{
	Chipmunk:     (*Catalogue).chipmunk,
	Robot:        (*Catalogue).robot,
	Echo:         (*Catalogue).echo,
	Whisper:      (*Catalogue).whisper,
	Distortion:   (*Catalogue).distortion,
	Reverse:      (*Catalogue).reverse,
	Monster:      (*Catalogue).monster,
	Telephone:    (*Catalogue).telephone,
	Stutter:      (*Catalogue).stutter,
	Electronic:   (*Catalogue).electronic,
	ProcessVoice: (*Catalogue).processVoice,
}

// Catalogue resolves effect names to runnable descriptors.
type Catalogue struct {
	preset  Preset
	cleanup CleanupConfig
	filters FilterConfig
	newRNG  func() *rand.Rand
}

// Option customises a Catalogue.
type Option func(*Catalogue)

// WithPreset swaps the effect tuning.
func WithPreset(p Preset) Option {
	return func(c *Catalogue) { c.preset = p }
}

// WithCleanup swaps the voice cleanup settings.
func WithCleanup(cfg CleanupConfig) Option {
	return func(c *Catalogue) { c.cleanup = cfg }
}

// WithFilters swaps the noise filter settings.
func WithFilters(cfg FilterConfig) Option {
	return func(c *Catalogue) { c.filters = cfg }
}

// WithSeed makes the noise-based effects deterministic.
func WithSeed(seed uint64) Option {
	return func(c *Catalogue) {
		c.newRNG = func() *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }
	}
}

// NewCatalogue builds a catalogue on PresetV2 and the default cleanup settings.
func NewCatalogue(opts ...Option) *Catalogue {
	c := &Catalogue{
		preset:  PresetV2,
		cleanup: DefaultCleanup(),
		filters: DefaultFilters(),
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Preset returns the active tuning.
func (c *Catalogue) Preset() Preset { return c.preset }

// Names lists every effect name in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Has reports whether name is a known effect.
func (c *Catalogue) Has(name string) bool {
	_, ok := builders[name]

	return ok
}

// Describe validates name and params and binds them into a descriptor.
// Nothing is computed until Run.
func (c *Catalogue) Describe(name string, p Params) (Descriptor, error) {
	build, ok := builders[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
	}

	err := p.Validate()
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{Name: name, Steps: build(c, p)}, nil
}

// Apply is Describe, CheckRate and Run.
func (c *Catalogue) Apply(buf dsp.Buffer, name string, p Params) (dsp.Buffer, error) {
	d, err := c.Describe(name, p)
	if err != nil {
		return dsp.Buffer{}, err
	}

	err = d.CheckRate(buf.Rate)
	if err != nil {
		return dsp.Buffer{}, err
	}

	return d.Run(buf)
}

func (c *Catalogue) chipmunk(p Params) []Step {
	return []Step{
		resizing(step("time_stretch", func(b dsp.Buffer) (dsp.Buffer, error) { return dsp.TimeStretch(b, p.Speed) })),
		step("pitch_shift", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.PitchShift(b, c.preset.ChipmunkSemitones)
		}),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) robot(_ Params) []Step {
	return []Step{
		step("pitch_shift", func(b dsp.Buffer) (dsp.Buffer, error) { return dsp.PitchShift(b, c.preset.RobotSemitones) }),
		step("ring_modulate", func(b dsp.Buffer) (dsp.Buffer, error) { return dsp.RingModulate(b, c.preset.RobotRingHz) }),
		step("hard_clip", func(b dsp.Buffer) (dsp.Buffer, error) { return dsp.HardClip(b, c.preset.RobotClip) }),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) echo(p Params) []Step {
	decays := make([]float64, len(c.preset.EchoTapRatios))
	for i, r := range c.preset.EchoTapRatios {
		decays[i] = p.Decay * r
	}

	taps := dsp.MultiTap(p.Delay, decays...)

	return []Step{
		step("echo", func(b dsp.Buffer) (dsp.Buffer, error) { return dsp.Echo(b, taps) }),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) whisper(_ Params) []Step {
	return []Step{
		pure("sign_noise", func(b dsp.Buffer) dsp.Buffer { return dsp.SignNoise(b, c.preset.WhisperNoise, c.newRNG()) }),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) distortion(p Params) []Step {
	return []Step{
		pure("soft_clip", func(b dsp.Buffer) dsp.Buffer { return dsp.SoftClip(b, p.Gain) }),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) reverse(_ Params) []Step {
	return []Step{pure("reverse", dsp.Reverse)}
}

func (c *Catalogue) monster(_ Params) []Step {
	return []Step{
		step("pitch_shift", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.PitchShift(b, c.preset.MonsterSemitones)
		}),
		resizing(step("time_stretch", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.TimeStretch(b, c.preset.MonsterSpeed)
		})),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) telephone(_ Params) []Step {
	return []Step{
		step("band_mask", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.BandMask(b, c.preset.TelephoneLowHz, c.preset.TelephoneHighHz)
		}),
		pure("soft_clip", func(b dsp.Buffer) dsp.Buffer {
			return dsp.Gain(dsp.SoftClip(b, c.preset.TelephoneDrive), c.preset.TelephoneLevel)
		}),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) stutter(p Params) []Step {
	return []Step{
		resizing(step("stutter", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.Stutter(b, c.preset.StutterDivisor, p.Repeat)
		})),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) electronic(_ Params) []Step {
	return []Step{
		step("pitch_shift", func(b dsp.Buffer) (dsp.Buffer, error) {
			return dsp.PitchShift(b, c.preset.ElectronicSemitones)
		}),
		pure("sine_fold", dsp.SineFold),
		pure("add_noise", func(b dsp.Buffer) dsp.Buffer { return dsp.AddNoise(b, c.preset.ElectronicNoise, c.newRNG()) }),
		normalize(c.preset.Peak),
	}
}

func (c *Catalogue) processVoice(p Params) []Step {
	cfg := c.cleanup
	cfg.LowpassHz = p.Cutoff
	cfg.EchoDelay = p.Delay

	return cfg.steps()
}

var defaultCatalogue = NewCatalogue()

// Names lists the effects of the default catalogue.
func Names() []string { return defaultCatalogue.Names() }
