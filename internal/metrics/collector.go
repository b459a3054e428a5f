// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "voicefx"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector records pipeline, HTTP and remote-call metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	pipelineRuns       *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
	prefilterFallbacks prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	remoteCalls        *prometheus.CounterVec
	inFlight           prometheus.Gauge
}

// NewCollector registers every metric, plus the Go and process collectors, on
// a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of audio pipeline runs",
			},
			[]string{"operation", "status"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Audio pipeline duration in seconds, decode to store",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),
		prefilterFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "prefilter_fallbacks_total",
			Help:      "Pre-filter failures that fell back to the unfiltered input",
		}),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		remoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "remote_calls_total",
				Help:      "Calls to the speech and translation backends",
			},
			[]string{"service", "status"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pipelines_in_flight",
			Help:      "Audio pipelines currently holding a worker slot",
		}),
	}
}

// RecordPipeline counts one pipeline run and observes its duration.
func (c *Collector) RecordPipeline(operation string, err error, duration time.Duration) {
	c.pipelineRuns.WithLabelValues(operation, status(err)).Inc()
	c.pipelineDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPrefilterFallback counts a pre-filter failure.
func (c *Collector) RecordPrefilterFallback() {
	c.prefilterFallbacks.Inc()
}

// RecordHTTPRequest counts a served request.
func (c *Collector) RecordHTTPRequest(route string, code int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRemoteCall counts a call to an external speech backend.
func (c *Collector) RecordRemoteCall(service string, err error) {
	c.remoteCalls.WithLabelValues(service, status(err)).Inc()
}

// PipelineStarted and PipelineFinished track worker slot usage.
func (c *Collector) PipelineStarted()  { c.inFlight.Inc() }
func (c *Collector) PipelineFinished() { c.inFlight.Dec() }

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func status(err error) string {
	if err != nil {
		return StatusError
	}

	return StatusOK
}
