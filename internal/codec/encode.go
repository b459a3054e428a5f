package codec

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/book-expert/voicefx-service/internal/dsp"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	outputBitDepth = 16
	outputChannels = 1
)

var errNegativeSeek = errors.New("negative seek position")

// EncodeWAV writes the buffer as 16-bit mono PCM WAV. Samples outside
// [-1, 1] are clamped.
func EncodeWAV(b dsp.Buffer) ([]byte, error) {
	err := b.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}

	full := float64(int64(1)<<(outputBitDepth-1)) - 1
	data := make([]int, len(b.Samples))

	for i, x := range b.Samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, x)) * full))
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, b.Rate, outputBitDepth, outputChannels, wavFormatPCM)

	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: outputChannels, SampleRate: b.Rate},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write wav samples: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize wav header: %w", err)
	}

	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes once the data is written.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}

	copy(m.buf[m.pos:], p)
	m.pos = end

	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64

	switch whence {
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	}

	next := base + offset
	if next < 0 {
		return 0, errNegativeSeek
	}

	m.pos = int(next)

	return next, nil
}
