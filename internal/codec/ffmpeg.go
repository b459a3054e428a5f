package codec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/voicefx-service/internal/dsp"
)

// DefaultExtension is assumed for uploads whose name has no extension.
const DefaultExtension = "webm"

const (
	ffmpegBinary  = "ffmpeg"
	ffmpegTimeout = 2 * time.Minute
	tempFileMode  = 0o600
)

// FFmpegFormats are the containers decoded by shelling out to ffmpeg.
var FFmpegFormats = []string{"webm", "m4a", "flac"}

// FFmpeg converts containers with no pure-Go decoder into 16-bit mono wav.
type FFmpeg struct {
	path    string
	timeout time.Duration
}

// LookupFFmpeg finds ffmpeg on PATH.
func LookupFFmpeg() (*FFmpeg, bool) {
	p, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return nil, false
	}

	return &FFmpeg{path: p, timeout: ffmpegTimeout}, true
}

// Decoder returns a decoder for files with extension ext.
func (f *FFmpeg) Decoder(ext string) Decoder {
	ext = normalizeExt(ext)

	return DecoderFunc(func(data []byte) (dsp.Buffer, error) { return f.decode(data, ext) })
}

// RegisterFFmpeg adds the ffmpeg formats to r when ffmpeg is installed and
// reports whether it was found.
func RegisterFFmpeg(r *Registry) bool {
	f, ok := LookupFFmpeg()
	if !ok {
		return false
	}

	for _, ext := range FFmpegFormats {
		r.Register(ext, f.Decoder(ext))
	}

	return true
}

// decode goes through temp files; mp4 containers cannot be read from a pipe.
func (f *FFmpeg) decode(data []byte, ext string) (dsp.Buffer, error) {
	dir, err := os.MkdirTemp("", "voicefx-ffmpeg-")
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("creating ffmpeg workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "input."+ext)
	out := filepath.Join(dir, "output.wav")

	err = os.WriteFile(in, data, tempFileMode)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("writing ffmpeg input: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y", out,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: ffmpeg %s: %w: %s", ErrCorrupt, ext, err, strings.TrimSpace(string(output)))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("reading ffmpeg output: %w", err)
	}

	return decodeWAV(converted)
}

// ExtensionOf returns the lower-case extension of name without the dot, or
// DefaultExtension when name has none.
func ExtensionOf(name string) string {
	ext := normalizeExt(path.Ext(name))
	if ext == "" {
		return DefaultExtension
	}

	return ext
}
