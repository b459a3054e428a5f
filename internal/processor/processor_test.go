package processor_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/metrics"
	"github.com/book-expert/voicefx-service/internal/objectstore"
	"github.com/book-expert/voicefx-service/internal/processor"
	"github.com/book-expert/voicefx-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fixture struct {
	proc    *processor.Processor
	outputs *objectstore.FSStore
	raw     *objectstore.FSStore
	metrics *metrics.Collector
}

func newFixture(t *testing.T, opts ...effects.Option) fixture {
	t.Helper()

	root := t.TempDir()

	outputs, err := objectstore.NewFS(filepath.Join(root, "outputs"))
	require.NoError(t, err)

	raw, err := objectstore.NewFS(filepath.Join(root, "raw"))
	require.NoError(t, err)

	log, err := logger.New(root, "processor-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	collector := metrics.NewCollector()

	proc := processor.New(processor.Options{
		Catalogue:     effects.NewCatalogue(append([]effects.Option{effects.WithSeed(1)}, opts...)...),
		Outputs:       outputs,
		Raw:           raw,
		Metrics:       collector,
		Logger:        log,
		MaxConcurrent: 2,
	})

	return fixture{proc: proc, outputs: outputs, raw: raw, metrics: collector}
}

func wavInput(t *testing.T, b dsp.Buffer) []byte {
	t.Helper()

	data, err := codec.EncodeWAV(b)
	require.NoError(t, err)

	return data
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	return len(entries)
}

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestProcessEffect_StoresArtifacts(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.proc.ProcessEffect(ctx, core.EffectRequest{
		Data:      wavInput(t, testutil.Sine(440, 22050, 0.5, 0.5)),
		Extension: "wav",
		Effect:    effects.Echo,
		Params:    effects.DefaultParams(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AudioKey)
	assert.NotEmpty(t, res.WaveformKey)
	assert.NotEmpty(t, res.RawKey)
	assert.NotEqual(t, res.AudioKey, res.RawKey)

	audio, err := fx.outputs.Download(ctx, res.AudioKey)
	require.NoError(t, err)

	out, err := codec.Decode(audio, "wav")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, dsp.Peak(out), 1e-3)

	_, err = fx.outputs.Download(ctx, res.WaveformKey)
	require.NoError(t, err)

	_, err = fx.raw.Download(ctx, res.RawKey)
	require.NoError(t, err)

	assert.Equal(t, effects.Echo, res.Report.Pipeline)
	assert.Equal(t, []string{"echo", "normalize"}, res.Report.Steps)
	assert.Equal(t, 22050, res.Report.SampleRate)
	assert.InDelta(t, 440, res.Report.DominantHz, 5)
	assert.False(t, res.Report.PrefilterApplied)
	assert.Positive(t, res.Report.Elapsed)

	assert.Contains(t, scrape(t, fx.metrics), `voicefx_pipeline_runs_total{operation="effect",status="ok"} 1`)
}

func TestProcessEffect_RejectsBeforeDecoding(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	tests := []struct {
		name    string
		req     core.EffectRequest
		wantErr error
	}{
		{
			name:    "unknown effect",
			req:     core.EffectRequest{Data: []byte("not audio"), Extension: "wav", Effect: "nonexistent", Params: effects.DefaultParams()},
			wantErr: effects.ErrUnknownEffect,
		},
		{
			name:    "invalid params",
			req:     core.EffectRequest{Data: []byte("not audio"), Extension: "wav", Effect: effects.Echo, Params: effects.Params{}},
			wantErr: effects.ErrInvalidParams,
		},
		{
			name:    "unsupported extension",
			req:     core.EffectRequest{Data: []byte("not audio"), Extension: "xyz", Effect: effects.Echo, Params: effects.DefaultParams()},
			wantErr: codec.ErrUnsupportedFormat,
		},
		{
			name:    "corrupt upload",
			req:     core.EffectRequest{Data: []byte("not audio"), Extension: "wav", Effect: effects.Echo, Params: effects.DefaultParams()},
			wantErr: codec.ErrCorrupt,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := fx.proc.ProcessEffect(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.wantErr)
			require.NotErrorIs(t, err, processor.ErrProcessing)
		})
	}

	t.Cleanup(func() {
		assert.Zero(t, countFiles(t, fx.outputs.Dir()))
		assert.Zero(t, countFiles(t, fx.raw.Dir()))
	})
}

func TestProcessEffect_RejectsCutoffAboveNyquist(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	// The 3000 Hz cleanup lowpass is above Nyquist at 4000 Hz.
	_, err := fx.proc.ProcessEffect(context.Background(), core.EffectRequest{
		Data:      wavInput(t, testutil.Sine(200, 4000, 0.5, 0.5)),
		Extension: "wav",
		Effect:    effects.ProcessVoice,
		Params:    effects.DefaultParams(),
		Prefilter: true,
	})
	require.ErrorIs(t, err, effects.ErrInvalidParams)
	require.NotErrorIs(t, err, processor.ErrProcessing)

	assert.Zero(t, countFiles(t, fx.outputs.Dir()))
	assert.Zero(t, countFiles(t, fx.raw.Dir()))

	body := scrape(t, fx.metrics)
	assert.NotContains(t, body, `voicefx_pipeline_runs_total{operation="effect",status="error"}`)
	assert.NotContains(t, body, "voicefx_prefilter_fallbacks_total 1")
}

// rejectingStore accepts nothing.
type rejectingStore struct {
	*objectstore.FSStore
}

func (rejectingStore) Upload(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestProcessEffect_FailedStoreRemovesArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	outputs, err := objectstore.NewFS(filepath.Join(root, "outputs"))
	require.NoError(t, err)

	raw, err := objectstore.NewFS(filepath.Join(root, "raw"))
	require.NoError(t, err)

	log, err := logger.New(root, "processor-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	collector := metrics.NewCollector()
	proc := processor.New(processor.Options{
		Outputs: rejectingStore{outputs},
		Raw:     raw,
		Metrics: collector,
		Logger:  log,
	})

	_, err = proc.ProcessEffect(context.Background(), core.EffectRequest{
		Data:      wavInput(t, testutil.Sine(440, 22050, 0.5, 0.5)),
		Extension: "wav",
		Effect:    effects.Reverse,
		Params:    effects.DefaultParams(),
	})
	require.ErrorIs(t, err, processor.ErrProcessing)
	assert.Contains(t, err.Error(), "disk full")

	assert.Zero(t, countFiles(t, raw.Dir()))
	assert.Contains(t, scrape(t, collector), `voicefx_pipeline_runs_total{operation="effect",status="error"} 1`)
}

func TestProcessEffect_PrefilterFallback(t *testing.T) {
	t.Parallel()

	broken := effects.PresetV2
	broken.PrefilterReduce = -1

	fx := newFixture(t, effects.WithPreset(broken))

	res, err := fx.proc.ProcessEffect(context.Background(), core.EffectRequest{
		Data:      wavInput(t, testutil.Sine(440, 22050, 0.5, 0.5)),
		Extension: "wav",
		Effect:    effects.Distortion,
		Params:    effects.DefaultParams(),
		Prefilter: true,
	})
	require.NoError(t, err)

	assert.False(t, res.Report.PrefilterApplied)
	assert.Contains(t, scrape(t, fx.metrics), "voicefx_prefilter_fallbacks_total 1")
}

func TestProcessEffect_PrefilterApplied(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	res, err := fx.proc.ProcessEffect(context.Background(), core.EffectRequest{
		Data:      wavInput(t, testutil.Sine(440, 22050, 0.5, 0.5)),
		Extension: ".WAV",
		Effect:    effects.Reverse,
		Params:    effects.DefaultParams(),
		Prefilter: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Report.PrefilterApplied)
}

func TestFilterAndEnhance(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	input := wavInput(t, testutil.Sine(1000, 22050, 0.5, 0.5))

	res, err := fx.proc.Filter(ctx, core.FilterRequest{
		Data: input, Extension: "wav", FilterType: effects.FilterSiren, Intensity: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, "filter_siren", res.Report.Pipeline)

	_, err = fx.proc.Filter(ctx, core.FilterRequest{Data: input, Extension: "wav", FilterType: "wind", Intensity: 50})
	require.ErrorIs(t, err, effects.ErrUnknownFilter)

	res, err = fx.proc.Enhance(ctx, core.EnhanceRequest{Data: input, Extension: "wav", Speed: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Report.OutputDuration.Seconds(), 1e-3)

	_, err = fx.proc.Enhance(ctx, core.EnhanceRequest{Data: input, Extension: "wav", Speed: -1})
	require.ErrorIs(t, err, effects.ErrInvalidParams)
}

func TestProcessEffect_ConcurrentRequestsGetDistinctKeys(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	input := wavInput(t, testutil.Sine(330, 8000, 0.5, 0.25))

	var (
		mu   sync.Mutex
		keys = map[string]bool{}
	)

	group, ctx := errgroup.WithContext(context.Background())

	for range 8 {
		group.Go(func() error {
			res, err := fx.proc.ProcessEffect(ctx, core.EffectRequest{
				Data: input, Extension: "wav", Effect: effects.Stutter, Params: effects.DefaultParams(),
			})
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			keys[res.AudioKey] = true

			return nil
		})
	}

	require.NoError(t, group.Wait())
	assert.Len(t, keys, 8)
}
