// Package codec converts between encoded audio files and mono dsp.Buffers.
//
// Decoders are looked up by the declared file extension. Every decoder mixes
// its channels down to mono by averaging, so callers always receive one
// canonical representation regardless of the source container.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/book-expert/voicefx-service/internal/dsp"
)

var (
	// ErrUnsupportedFormat indicates an extension with no registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrCorrupt indicates data that the decoder could not parse.
	ErrCorrupt = errors.New("corrupt or unreadable audio data")
)

const (
	errFmtUnsupported = "%w: %q"
	errFmtCorrupt     = "%w: %s: %w"
)

// Decoder turns a complete encoded file into a mono buffer.
type Decoder interface {
	Decode(data []byte) (dsp.Buffer, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) (dsp.Buffer, error)

// Decode calls f(data).
func (f DecoderFunc) Decode(data []byte) (dsp.Buffer, error) { return f(data) }

// Registry maps lower-case extensions (without the dot) to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry returns a registry with every built-in decoder, plus the
// ffmpeg formats when ffmpeg is installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", DecoderFunc(decodeWAV))
	r.Register("wave", DecoderFunc(decodeWAV))
	r.Register("mp3", DecoderFunc(decodeMP3))
	r.Register("ogg", DecoderFunc(decodeVorbis))
	r.Register("oga", DecoderFunc(decodeVorbis))
	r.Register("aiff", DecoderFunc(decodeAIFF))
	r.Register("aif", DecoderFunc(decodeAIFF))
	RegisterFFmpeg(r)

	return r
}

// Register adds or replaces the decoder for ext.
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.decoders[normalizeExt(ext)] = d
}

// Get returns the decoder for ext.
func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decoders[normalizeExt(ext)]

	return d, ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}

	sort.Strings(exts)

	return exts
}

// Decode decodes data according to its declared extension.
func (r *Registry) Decode(data []byte, ext string) (dsp.Buffer, error) {
	d, ok := r.Get(ext)
	if !ok {
		return dsp.Buffer{}, fmt.Errorf(errFmtUnsupported, ErrUnsupportedFormat, ext)
	}

	if len(data) == 0 {
		return dsp.Buffer{}, fmt.Errorf("%w: empty input", ErrCorrupt)
	}

	buf, err := d.Decode(data)
	if err != nil {
		return dsp.Buffer{}, err
	}

	if buf.Rate <= 0 {
		return dsp.Buffer{}, fmt.Errorf("%w: sample rate %d", ErrCorrupt, buf.Rate)
	}

	return buf, nil
}

var defaultRegistry = DefaultRegistry()

// Decode decodes data with the built-in decoders.
func Decode(data []byte, ext string) (dsp.Buffer, error) {
	return defaultRegistry.Decode(data, ext)
}

// Supported reports whether ext has a built-in decoder.
func Supported(ext string) bool {
	_, ok := defaultRegistry.Get(ext)

	return ok
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// mixDown averages interleaved frames into one channel.
func mixDown(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	out := make([]float64, frames)

	for f := range frames {
		var sum float64
		for c := range channels {
			sum += interleaved[f*channels+c]
		}

		out[f] = sum / float64(channels)
	}

	return out
}
