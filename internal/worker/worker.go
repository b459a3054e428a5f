// Package worker serves audio transform jobs over NATS request/reply.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 2 * time.Minute

// Job operations. An empty operation means OpEffect.
const (
	OpEffect  = "effect"
	OpFilter  = "filter"
	OpEnhance = "enhance"
)

var (
	// ErrInvalidJob marks a job that could not be decoded or is missing fields.
	ErrInvalidJob = errors.New("invalid transform job")
	// ErrUnknownOperation marks a job with an operation the worker does not run.
	ErrUnknownOperation = errors.New("unknown job operation")
)

// TransformJob asks the worker to transform an object already in the store.
// Params defaults to effects.DefaultParams when nil, Intensity to
// effects.DefaultIntensity and Speed to 1. An input key without an extension
// is read as codec.DefaultExtension.
type TransformJob struct {
	Header     events.EventHeader `json:"header"`
	Operation  string             `json:"operation,omitempty"`
	InputKey   string             `json:"input_key"`
	Extension  string             `json:"extension,omitempty"`
	Effect     string             `json:"effect,omitempty"`
	Params     *effects.Params    `json:"params,omitempty"`
	Prefilter  bool               `json:"prefilter,omitempty"`
	FilterType string             `json:"filter_type,omitempty"`
	Intensity  *float64           `json:"intensity,omitempty"`
	Speed      float64            `json:"speed,omitempty"`
}

// TransformResult is the reply to a TransformJob. Error is set instead of the
// keys when the job failed.
type TransformResult struct {
	Header      events.EventHeader `json:"header"`
	AudioKey    string             `json:"audio_key,omitempty"`
	WaveformKey string             `json:"waveform_key,omitempty"`
	RawKey      string             `json:"raw_key,omitempty"`
	Report      *core.Report       `json:"report,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// NatsWorker listens for transform jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	queue          string
	inputs         core.ObjectStore
	processor      core.AudioProcessor
	log            *logger.Logger
}

// NewNatsWorker creates a worker. Jobs are shared across every worker with
// the same queue group; an empty queue subscribes without one.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject, queue string,
	inputs core.ObjectStore,
	processor core.AudioProcessor,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		queue:          queue,
		inputs:         inputs,
		processor:      processor,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.QueueSubscribe(w.subject, w.queue, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Worker listening on '%s'", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var job TransformJob

	err := json.Unmarshal(msg.Data, &job)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidJob, err)
	} else {
		var res core.Result

		res, err = w.process(ctx, job)
		if err == nil {
			w.log.Info("Job %s (%s) done: %s", job.Header.WorkflowID, res.Report.Pipeline, res.AudioKey)
			w.reply(msg, resultFor(job, res))

			return
		}
	}

	w.log.Error("Job %s failed: %v", job.Header.WorkflowID, err)
	w.reply(msg, TransformResult{Header: replyHeader(job.Header), Error: err.Error()})
}

func (w *NatsWorker) process(ctx context.Context, job TransformJob) (core.Result, error) {
	if job.InputKey == "" {
		return core.Result{}, fmt.Errorf("%w: input_key is required", ErrInvalidJob)
	}

	data, err := w.inputs.Download(ctx, job.InputKey)
	if err != nil {
		return core.Result{}, fmt.Errorf("failed to download input '%s': %w", job.InputKey, err)
	}

	ext := job.Extension
	if ext == "" {
		ext = codec.ExtensionOf(job.InputKey)
	}

	switch strings.ToLower(job.Operation) {
	case "", OpEffect:
		params := effects.DefaultParams()
		if job.Params != nil {
			params = *job.Params
		}

		return w.processor.ProcessEffect(ctx, core.EffectRequest{
			Data: data, Extension: ext, Effect: job.Effect, Params: params, Prefilter: job.Prefilter,
		})
	case OpFilter:
		filterType, err := effects.ParseFilterType(job.FilterType)
		if err != nil {
			return core.Result{}, err
		}

		intensity := effects.DefaultIntensity
		if job.Intensity != nil {
			intensity = *job.Intensity
		}

		return w.processor.Filter(ctx, core.FilterRequest{
			Data: data, Extension: ext, FilterType: filterType, Intensity: intensity,
		})
	case OpEnhance:
		speed := job.Speed
		if speed == 0 {
			speed = 1
		}

		return w.processor.Enhance(ctx, core.EnhanceRequest{Data: data, Extension: ext, Speed: speed})
	default:
		return core.Result{}, fmt.Errorf("%w: %q", ErrUnknownOperation, job.Operation)
	}
}

// reply is a no-op for fire-and-forget publishes without a reply subject.
func (w *NatsWorker) reply(msg *nats.Msg, result TransformResult) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(result)
	if err != nil {
		w.log.Error("Failed to marshal reply for workflow %s: %v", result.Header.WorkflowID, err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", result.Header.WorkflowID, err)
	}
}

func resultFor(job TransformJob, res core.Result) TransformResult {
	report := res.Report

	return TransformResult{
		Header:      replyHeader(job.Header),
		AudioKey:    res.AudioKey,
		WaveformKey: res.WaveformKey,
		RawKey:      res.RawKey,
		Report:      &report,
	}
}

// replyHeader keeps the workflow, user and tenant and stamps a new event.
func replyHeader(h events.EventHeader) events.EventHeader {
	h.EventID = uuid.NewString()
	h.Timestamp = time.Now()

	return h
}
