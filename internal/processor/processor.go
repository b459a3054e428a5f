// Package processor runs uploads through decode, effect, encode, plot and
// store, bounding CPU-heavy work with a weighted semaphore.
package processor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/metrics"
	"github.com/book-expert/voicefx-service/internal/plot"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrProcessing wraps any failure after the input was accepted.
var ErrProcessing = errors.New("audio processing failed")

// Operation names used in logs and metrics.
const (
	OpEffect  = "effect"
	OpFilter  = "filter"
	OpEnhance = "enhance"
)

const (
	wavExt     = ".wav"
	pngExt     = ".png"
	rawPrefix  = "raw_"
	plotSuffix = " Effect"
)

// Options wires a Processor. Raw and Metrics are optional.
type Options struct {
	Catalogue     *effects.Catalogue
	Decoders      *codec.Registry
	Outputs       core.ObjectStore
	Raw           core.ObjectStore
	Metrics       *metrics.Collector
	Logger        *logger.Logger
	MaxConcurrent int64
}

// Processor implements core.AudioProcessor.
type Processor struct {
	catalogue *effects.Catalogue
	decoders  *codec.Registry
	outputs   core.ObjectStore
	raw       core.ObjectStore
	metrics   *metrics.Collector
	log       *logger.Logger
	slots     *semaphore.Weighted
	newID     func() string
}

var _ core.AudioProcessor = (*Processor)(nil)

// New builds a Processor; MaxConcurrent defaults to the CPU count.
func New(opts Options) *Processor {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = int64(runtime.NumCPU())
	}

	catalogue := opts.Catalogue
	if catalogue == nil {
		catalogue = effects.NewCatalogue()
	}

	decoders := opts.Decoders
	if decoders == nil {
		decoders = codec.DefaultRegistry()
	}

	return &Processor{
		catalogue: catalogue,
		decoders:  decoders,
		outputs:   opts.Outputs,
		raw:       opts.Raw,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		slots:     semaphore.NewWeighted(limit),
		newID:     uuid.NewString,
	}
}

// ProcessEffect applies one catalogue effect, optionally after the pre-filter.
func (p *Processor) ProcessEffect(ctx context.Context, req core.EffectRequest) (core.Result, error) {
	desc, err := p.catalogue.Describe(req.Effect, req.Params)
	if err != nil {
		return core.Result{}, err
	}

	return p.execute(ctx, job{
		operation: OpEffect,
		data:      req.Data,
		ext:       req.Extension,
		desc:      desc,
		prefilter: req.Prefilter,
	})
}

// Filter applies the adjustable noise filter.
func (p *Processor) Filter(ctx context.Context, req core.FilterRequest) (core.Result, error) {
	desc, err := p.catalogue.DescribeFilter(req.FilterType, req.Intensity)
	if err != nil {
		return core.Result{}, err
	}

	return p.execute(ctx, job{operation: OpFilter, data: req.Data, ext: req.Extension, desc: desc})
}

// Enhance applies voice enhancement with an optional speed change.
func (p *Processor) Enhance(ctx context.Context, req core.EnhanceRequest) (core.Result, error) {
	desc, err := p.catalogue.Enhance(req.Speed)
	if err != nil {
		return core.Result{}, err
	}

	return p.execute(ctx, job{operation: OpEnhance, data: req.Data, ext: req.Extension, desc: desc})
}

type job struct {
	operation string
	data      []byte
	ext       string
	desc      effects.Descriptor
	prefilter bool
}

func (p *Processor) execute(ctx context.Context, j job) (core.Result, error) {
	_, ok := p.decoders.Get(j.ext)
	if !ok {
		return core.Result{}, fmt.Errorf("%w: %q", codec.ErrUnsupportedFormat, j.ext)
	}

	err := p.slots.Acquire(ctx, 1)
	if err != nil {
		return core.Result{}, fmt.Errorf("waiting for a processing slot: %w", err)
	}
	defer p.slots.Release(1)

	in, err := p.accept(j)
	if err != nil {
		p.log.Warn("%s '%s' rejected: %v", j.operation, j.desc.Name, err)

		return core.Result{}, err
	}

	if p.metrics != nil {
		p.metrics.PipelineStarted()
		defer p.metrics.PipelineFinished()
	}

	start := time.Now()

	res, err := p.run(ctx, j, in)
	res.Report.Elapsed = time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordPipeline(j.operation, err, res.Report.Elapsed)
	}

	if err != nil {
		p.log.Error("%s '%s' failed after %s: %v", j.operation, j.desc.Name, res.Report.Elapsed, err)

		return core.Result{}, err
	}

	p.log.Info("%s '%s' done in %s: %s in, %s out, peak %.3f",
		j.operation, j.desc.Name, res.Report.Elapsed,
		res.Report.InputDuration, res.Report.OutputDuration, res.Report.OutputPeak)

	return res, nil
}

// accept decodes the upload and checks the pipeline's filter frequencies
// against its sample rate. Nothing is stored or counted until it passes.
func (p *Processor) accept(j job) (dsp.Buffer, error) {
	in, err := p.decoders.Decode(j.data, j.ext)
	if err != nil {
		return dsp.Buffer{}, err
	}

	err = j.desc.CheckRate(in.Rate)
	if err != nil {
		return dsp.Buffer{}, err
	}

	return in, nil
}

// run owns every key it uploads and deletes them again if a later stage fails.
func (p *Processor) run(ctx context.Context, j job, in dsp.Buffer) (res core.Result, err error) {
	var written []stored

	defer func() {
		if err != nil {
			p.discard(ctx, written)
		}
	}()

	id := p.newID()

	if p.raw != nil {
		key := rawPrefix + id + wavExt

		err = p.storeWAV(ctx, p.raw, key, in)
		if err != nil {
			return res, err
		}

		written = append(written, stored{p.raw, key})
		res.RawKey = key
	}

	working, prefiltered := in, false
	if j.prefilter {
		working, prefiltered = p.prefilter(in)
	}

	out, err := j.desc.Run(working)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrProcessing, err)
	}

	res.AudioKey = id + wavExt

	err = p.storeWAV(ctx, p.outputs, res.AudioKey, out)
	if err != nil {
		return res, err
	}

	written = append(written, stored{p.outputs, res.AudioKey})
	res.WaveformKey = p.storePlot(ctx, id+pngExt, in, out, j.desc.Name)
	res.Report = report(j.desc, in, out, prefiltered)

	return res, nil
}

// prefilter never fails the request; on error the input is used unchanged
// and the second result is false.
func (p *Processor) prefilter(in dsp.Buffer) (dsp.Buffer, bool) {
	out, err := p.catalogue.Prefilter().Run(in)
	if err != nil {
		p.log.Warn("Pre-filter failed, continuing unfiltered: %v", err)

		if p.metrics != nil {
			p.metrics.RecordPrefilterFallback()
		}

		return in, false
	}

	return out, true
}

func (p *Processor) storeWAV(ctx context.Context, store core.ObjectStore, key string, b dsp.Buffer) error {
	data, err := codec.EncodeWAV(b)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessing, err)
	}

	err = store.Upload(ctx, key, data)
	if err != nil {
		return fmt.Errorf("%w: storing '%s': %w", ErrProcessing, key, err)
	}

	return nil
}

// storePlot returns the stored key, or "" when the plot is skipped.
func (p *Processor) storePlot(ctx context.Context, key string, in, out dsp.Buffer, name string) string {
	png, err := plot.Compare(in, out, name+plotSuffix)
	if err != nil {
		p.log.Warn("Waveform plot for '%s' failed: %v", name, err)

		return ""
	}

	err = p.outputs.Upload(ctx, key, png)
	if err != nil {
		p.log.Warn("Storing waveform '%s' failed: %v", key, err)

		return ""
	}

	return key
}

type stored struct {
	store core.ObjectStore
	key   string
}

func (p *Processor) discard(ctx context.Context, written []stored) {
	// The request context may already be cancelled; cleanup still runs.
	ctx = context.WithoutCancel(ctx)

	for _, s := range written {
		err := s.store.Delete(ctx, s.key)
		if err != nil {
			p.log.Warn("Failed to remove '%s' after a failed run: %v", s.key, err)
		}
	}
}

func report(desc effects.Descriptor, in, out dsp.Buffer, prefiltered bool) core.Report {
	return core.Report{
		Pipeline:         desc.Name,
		Steps:            desc.StepNames(),
		InputDuration:    in.Duration(),
		OutputDuration:   out.Duration(),
		SampleRate:       out.Rate,
		OutputPeak:       dsp.Peak(out),
		DominantHz:       dsp.DominantFrequency(out),
		PrefilterApplied: prefiltered,
	}
}
