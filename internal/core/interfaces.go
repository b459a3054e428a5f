// Package core defines the interfaces and request types shared by the voice
// effect service, its HTTP surface and its NATS worker.
package core

import (
	"context"
	"time"

	"github.com/book-expert/voicefx-service/internal/effects"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// EffectRequest asks for one catalogue effect on an uploaded recording.
type EffectRequest struct {
	Data      []byte
	Extension string
	Effect    string
	Params    effects.Params
	Prefilter bool
}

// FilterRequest asks for the adjustable noise filter.
type FilterRequest struct {
	Data       []byte
	Extension  string
	FilterType effects.FilterType
	Intensity  float64
}

// EnhanceRequest asks for voice enhancement with an optional speed change.
type EnhanceRequest struct {
	Data      []byte
	Extension string
	Speed     float64
}

// Report summarises a processed recording.
type Report struct {
	Pipeline         string        `json:"pipeline"`
	Steps            []string      `json:"steps"`
	InputDuration    time.Duration `json:"input_duration"`
	OutputDuration   time.Duration `json:"output_duration"`
	SampleRate       int           `json:"sample_rate"`
	OutputPeak       float64       `json:"output_peak"`
	DominantHz       float64       `json:"dominant_hz"`
	PrefilterApplied bool          `json:"prefilter_applied"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Result names the stored artefacts of one processing run. WaveformKey is
// empty when the plot could not be rendered; RawKey is empty unless the
// pipeline stores its decoded input.
type Result struct {
	AudioKey    string
	WaveformKey string
	RawKey      string
	Report      Report
}

// AudioProcessor runs decode, transform, encode and store for one upload.
type AudioProcessor interface {
	ProcessEffect(ctx context.Context, req EffectRequest) (Result, error)
	Filter(ctx context.Context, req FilterRequest) (Result, error)
	Enhance(ctx context.Context, req EnhanceRequest) (Result, error)
}
