package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/voicefx-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsPipelineRuns(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector()

	c.RecordPipeline("effect", nil, 20*time.Millisecond)
	c.RecordPipeline("effect", nil, 30*time.Millisecond)
	c.RecordPipeline("filter", errors.New("boom"), time.Millisecond)
	c.RecordPrefilterFallback()

	count, err := testutil.GatherAndCount(c.Registry(),
		"voicefx_pipeline_runs_total", "voicefx_prefilter_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector()
	c.RecordHTTPRequest("/process-audio", http.StatusOK, 10*time.Millisecond)
	c.RecordRemoteCall("whisper", nil)
	c.PipelineStarted()
	c.PipelineFinished()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `voicefx_http_requests_total{route="/process-audio",status="200"} 1`)
	assert.Contains(t, text, `voicefx_remote_calls_total{service="whisper",status="ok"} 1`)
	assert.Contains(t, text, "voicefx_pipelines_in_flight 0")
	assert.Contains(t, text, "go_goroutines")
}
