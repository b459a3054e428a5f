package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	mp3Channels         = 2
)

func decodeWAV(data []byte) (dsp.Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return dsp.Buffer{}, fmt.Errorf("%w: not a PCM wav file", ErrCorrupt)
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return dsp.Buffer{}, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf(errFmtCorrupt, ErrCorrupt, "wav", err)
	}

	return intBuffer(buf, int(d.BitDepth), true)
}

func decodeAIFF(data []byte) (dsp.Buffer, error) {
	d := aiff.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return dsp.Buffer{}, fmt.Errorf("%w: not an aiff file", ErrCorrupt)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf(errFmtCorrupt, ErrCorrupt, "aiff", err)
	}

	return intBuffer(buf, int(d.BitDepth), false)
}

// intBuffer scales integer PCM to [-1, 1]. 8-bit wav is unsigned.
func intBuffer(buf *goaudio.IntBuffer, bitDepth int, unsigned8 bool) (dsp.Buffer, error) {
	if buf == nil || buf.Format == nil {
		return dsp.Buffer{}, fmt.Errorf("%w: missing format", ErrCorrupt)
	}

	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}

	if bitDepth < 8 || bitDepth > 32 {
		return dsp.Buffer{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}

	full := float64(int64(1) << (bitDepth - 1))
	offset := 0.0

	if bitDepth == 8 && unsigned8 {
		offset = full
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = (float64(v) - offset) / full
	}

	return dsp.NewBuffer(mixDown(samples, buf.Format.NumChannels), buf.Format.SampleRate), nil
}

// decodeMP3 reads the whole stream; go-mp3 always yields 16-bit stereo.
func decodeMP3(data []byte) (dsp.Buffer, error) {
	d, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf(errFmtCorrupt, ErrCorrupt, "mp3", err)
	}

	pcm, err := io.ReadAll(d)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf(errFmtCorrupt, ErrCorrupt, "mp3", err)
	}

	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
	}

	return dsp.NewBuffer(mixDown(samples, mp3Channels), d.SampleRate()), nil
}

func decodeVorbis(data []byte) (dsp.Buffer, error) {
	pcm, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf(errFmtCorrupt, ErrCorrupt, "ogg", err)
	}

	samples := make([]float64, len(pcm))
	for i, v := range pcm {
		samples[i] = float64(v)
	}

	return dsp.NewBuffer(mixDown(samples, format.Channels), format.SampleRate), nil
}
