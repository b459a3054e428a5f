// Package worker_test tests the NATS transform worker.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/codec"
	"github.com/book-expert/voicefx-service/internal/core"
	"github.com/book-expert/voicefx-service/internal/dsp"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/book-expert/voicefx-service/internal/objectstore"
	"github.com/book-expert/voicefx-service/internal/processor"
	"github.com/book-expert/voicefx-service/internal/testutil"
	"github.com/book-expert/voicefx-service/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSubject    = "voicefx.test.jobs"
	requestTimeout = 10 * time.Second
)

var errMockDownload = errors.New("mock download error")

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	downloadShouldFail bool
	mu                 sync.Mutex
	downloadedKey      string
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.downloadedKey = key

	return []byte("input audio"), nil
}

func (m *mockObjectStore) Upload(context.Context, string, []byte) error { return nil }

func (m *mockObjectStore) Delete(context.Context, string) error { return nil }

func (m *mockObjectStore) lastKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.downloadedKey
}

// mockProcessor records the last request of each kind.
type mockProcessor struct {
	mu      sync.Mutex
	effect  core.EffectRequest
	filter  core.FilterRequest
	enhance core.EnhanceRequest
}

func (m *mockProcessor) ProcessEffect(_ context.Context, req core.EffectRequest) (core.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.effect = req

	return core.Result{AudioKey: "out.wav", WaveformKey: "out.png", Report: core.Report{Pipeline: req.Effect}}, nil
}

func (m *mockProcessor) Filter(_ context.Context, req core.FilterRequest) (core.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.filter = req

	return core.Result{AudioKey: "filtered.wav"}, nil
}

func (m *mockProcessor) Enhance(_ context.Context, req core.EnhanceRequest) (core.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enhance = req

	return core.Result{AudioKey: "enhanced.wav"}, nil
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

// startWorker runs w until the test ends and checks it shuts down cleanly.
func startWorker(t *testing.T, w *worker.NatsWorker, nc *nats.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	// The subscription is registered asynchronously.
	require.Eventually(t, func() bool {
		return nc.NumSubscriptions() > 0 && nc.Flush() == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func request(t *testing.T, nc *nats.Conn, job any) worker.TransformResult {
	t.Helper()

	data, err := json.Marshal(job)
	require.NoError(t, err)

	msg, err := nc.Request(testSubject, data, requestTimeout)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var result worker.TransformResult
	require.NoError(t, json.Unmarshal(msg.Data, &result))

	return result
}

func header() events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
	}
}

func setupMock(t *testing.T, store *mockObjectStore) (*mockProcessor, *nats.Conn) {
	t.Helper()

	nc := createTestNatsClient(t)
	proc := &mockProcessor{}

	startWorker(t, worker.NewNatsWorker(nc, testSubject, "", store, proc, testLogger(t)), nc)

	return proc, nc
}

func TestWorker_EffectJob(t *testing.T) {
	t.Parallel()

	store := &mockObjectStore{}
	proc, nc := setupMock(t, store)

	job := worker.TransformJob{Header: header(), InputKey: "upload.mp3", Effect: effects.Robot, Prefilter: true}
	result := request(t, nc, job)

	assert.Empty(t, result.Error)
	assert.Equal(t, "out.wav", result.AudioKey)
	assert.Equal(t, "out.png", result.WaveformKey)
	require.NotNil(t, result.Report)
	assert.Equal(t, effects.Robot, result.Report.Pipeline)

	assert.Equal(t, job.Header.WorkflowID, result.Header.WorkflowID)
	assert.NotEqual(t, job.Header.EventID, result.Header.EventID)

	assert.Equal(t, "upload.mp3", store.lastKey())

	proc.mu.Lock()
	defer proc.mu.Unlock()

	assert.Equal(t, "mp3", proc.effect.Extension)
	assert.Equal(t, effects.DefaultParams(), proc.effect.Params)
	assert.True(t, proc.effect.Prefilter)
}

func TestWorker_FilterAndEnhanceJobs(t *testing.T) {
	t.Parallel()

	proc, nc := setupMock(t, &mockObjectStore{})
	intensity := 70.0

	result := request(t, nc, worker.TransformJob{
		Header: header(), Operation: "filter", InputKey: "a.wav", FilterType: "siren", Intensity: &intensity,
	})
	assert.Equal(t, "filtered.wav", result.AudioKey)

	result = request(t, nc, worker.TransformJob{Header: header(), Operation: "ENHANCE", InputKey: "a.ogg", Extension: "ogg"})
	assert.Equal(t, "enhanced.wav", result.AudioKey)

	proc.mu.Lock()
	assert.Equal(t, effects.FilterSiren, proc.filter.FilterType)
	assert.InDelta(t, 70, proc.filter.Intensity, 1e-12)
	assert.Equal(t, "ogg", proc.enhance.Extension)
	assert.InDelta(t, 1, proc.enhance.Speed, 1e-12)
	proc.mu.Unlock()

	// Filter names are normalised and a missing intensity means the default.
	result = request(t, nc, worker.TransformJob{Header: header(), Operation: "filter", InputKey: "recording", FilterType: " NOISE "})
	assert.Empty(t, result.Error)

	proc.mu.Lock()
	assert.Equal(t, effects.FilterNoise, proc.filter.FilterType)
	assert.InDelta(t, effects.DefaultIntensity, proc.filter.Intensity, 1e-12)
	assert.Equal(t, codec.DefaultExtension, proc.filter.Extension)
	proc.mu.Unlock()

	result = request(t, nc, worker.TransformJob{Header: header(), Operation: "filter", InputKey: "a.wav", FilterType: "wind"})
	assert.Contains(t, result.Error, effects.ErrUnknownFilter.Error())
	assert.Empty(t, result.AudioKey)
}

func TestWorker_RepliesWithErrors(t *testing.T) {
	t.Parallel()

	_, nc := setupMock(t, &mockObjectStore{downloadShouldFail: true})

	tests := []struct {
		name    string
		job     any
		message string
	}{
		{name: "malformed", job: "not a job", message: worker.ErrInvalidJob.Error()},
		{name: "missing key", job: worker.TransformJob{Header: header()}, message: "input_key"},
		{name: "download", job: worker.TransformJob{Header: header(), InputKey: "x.wav"}, message: errMockDownload.Error()},
	}

	for _, tc := range tests {
		result := request(t, nc, tc.job)
		assert.Contains(t, result.Error, tc.message, tc.name)
		assert.Empty(t, result.AudioKey, tc.name)
	}
}

func TestWorker_UnknownOperation(t *testing.T) {
	t.Parallel()

	store := &mockObjectStore{}
	_, nc := setupMock(t, store)

	result := request(t, nc, worker.TransformJob{Header: header(), Operation: "transcode", InputKey: "a.wav"})
	assert.Contains(t, result.Error, worker.ErrUnknownOperation.Error())
}

func TestWorker_EndToEndWithObjectStore(t *testing.T) {
	t.Parallel()

	nc := createTestNatsClient(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	store, err := objectstore.NewNats(context.Background(), js, "VOICEFX_TEST")
	require.NoError(t, err)

	log := testLogger(t)

	proc := processor.New(processor.Options{
		Catalogue: effects.NewCatalogue(effects.WithSeed(7)),
		Outputs:   store,
		Logger:    log,
	})

	startWorker(t, worker.NewNatsWorker(nc, testSubject, "voicefx-test", store, proc, log), nc)

	input, err := codec.EncodeWAV(testutil.Sine(440, 16000, 0.5, 0.5))
	require.NoError(t, err)
	require.NoError(t, store.Upload(context.Background(), "input.wav", input))

	result := request(t, nc, worker.TransformJob{Header: header(), InputKey: "input.wav", Effect: effects.Reverse})
	require.Empty(t, result.Error)
	assert.Empty(t, result.RawKey)

	out, err := store.Download(context.Background(), result.AudioKey)
	require.NoError(t, err)

	decoded, err := codec.Decode(out, "wav")
	require.NoError(t, err)
	assert.Equal(t, 8000, decoded.Len())
	assert.InDelta(t, 0.5, dsp.Peak(decoded), 1e-3)

	result = request(t, nc, worker.TransformJob{Header: header(), InputKey: "input.wav", Effect: "nonexistent"})
	assert.Contains(t, result.Error, effects.ErrUnknownEffect.Error())
}
