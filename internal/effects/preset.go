package effects

// Preset pins the constants behind every named effect so output stays
// reproducible when tuning changes; new tunings get a new Version.
type Preset struct {
	Version string

	Peak float64

	ChipmunkSemitones float64

	RobotSemitones float64
	RobotRingHz    float64
	RobotClip      float64

	// EchoTapRatios scale Params.Decay for each successive tap.
	EchoTapRatios []float64

	WhisperNoise float64

	MonsterSemitones float64
	MonsterSpeed     float64

	TelephoneLowHz  float64
	TelephoneHighHz float64
	TelephoneDrive  float64
	TelephoneLevel  float64

	StutterDivisor int

	ElectronicSemitones float64
	ElectronicNoise     float64

	PrefilterReduce float64
	PrefilterWindow float64
}

// PresetV2 is the current tuning.
var PresetV2 = Preset{
	Version:             "v2",
	Peak:                0.95,
	ChipmunkSemitones:   8,
	RobotSemitones:      -6,
	RobotRingHz:         50,
	RobotClip:           0.5,
	EchoTapRatios:       []float64{1, 0.6, 0.2},
	WhisperNoise:        0.02,
	MonsterSemitones:    -10,
	MonsterSpeed:        0.8,
	TelephoneLowHz:      300,
	TelephoneHighHz:     3400,
	TelephoneDrive:      2,
	TelephoneLevel:      0.8,
	StutterDivisor:      10,
	ElectronicSemitones: -3,
	ElectronicNoise:     0.002,
	PrefilterReduce:     0.5,
	PrefilterWindow:     0.1,
}

// DefaultParams returns the request defaults that pair with PresetV2.
func DefaultParams() Params {
	return Params{
		Delay:     0.2,
		Repeat:    3,
		Decay:     0.5,
		Cutoff:    3000,
		Gain:      6,
		Speed:     1.5,
		Intensity: 50,
	}
}
