// Package plot renders before/after waveform comparisons as PNG images.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"github.com/book-expert/voicefx-service/internal/dsp"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ErrEmptySignal is returned when a buffer has no samples to draw.
var ErrEmptySignal = errors.New("signal has no samples")

// MaxPoints caps the vertices drawn per waveform.
const MaxPoints = 4000

const (
	width  = 10 * vg.Inch
	height = 6 * vg.Inch
)

var (
	originalColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	processedColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// Compare draws original above processed, sharing the amplitude range, and
// returns the PNG bytes.
func Compare(original, processed dsp.Buffer, title string) ([]byte, error) {
	if original.Len() == 0 || processed.Len() == 0 {
		return nil, ErrEmptySignal
	}

	top, err := panel("Original", original, originalColor)
	if err != nil {
		return nil, err
	}

	bottom, err := panel(title, processed, processedColor)
	if err != nil {
		return nil, err
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)
	canvases := gonumplot.Align([][]*gonumplot.Plot{{top}, {bottom}}, draw.Tiles{Rows: 2, Cols: 1}, dc)

	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	var buf bytes.Buffer

	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode waveform png: %w", err)
	}

	return buf.Bytes(), nil
}

func panel(title string, b dsp.Buffer, c color.Color) (*gonumplot.Plot, error) {
	p := gonumplot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Amplitude"
	p.Y.Min = -1
	p.Y.Max = 1

	line, err := plotter.NewLine(Decimate(b, MaxPoints))
	if err != nil {
		return nil, fmt.Errorf("failed to build waveform line: %w", err)
	}

	line.Color = c
	line.Width = vg.Points(0.5)
	p.Add(line, plotter.NewGrid())

	return p, nil
}

// Decimate reduces b to at most maxPoints (time, amplitude) vertices. Each
// bucket contributes its minimum and maximum in time order so peaks survive.
func Decimate(b dsp.Buffer, maxPoints int) plotter.XYs {
	n := b.Len()
	rate := float64(b.Rate)

	if n <= maxPoints || maxPoints < 2 {
		pts := make(plotter.XYs, n)
		for i, y := range b.Samples {
			pts[i] = plotter.XY{X: float64(i) / rate, Y: y}
		}

		return pts
	}

	buckets := maxPoints / 2
	pts := make(plotter.XYs, 0, buckets*2)

	for k := range buckets {
		start := k * n / buckets
		end := (k + 1) * n / buckets
		lo, hi := start, start

		for i := start; i < end; i++ {
			if b.Samples[i] < b.Samples[lo] {
				lo = i
			}

			if b.Samples[i] > b.Samples[hi] {
				hi = i
			}
		}

		first, second := min(lo, hi), max(lo, hi)
		pts = append(pts,
			plotter.XY{X: float64(first) / rate, Y: b.Samples[first]},
			plotter.XY{X: float64(second) / rate, Y: b.Samples[second]},
		)
	}

	return pts
}
