// Package metrics provides Prometheus metrics for executions, hints and
// HTTP traffic.
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

// Recorder implements runner.Recorder and hint.Recorder on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	hintsTotal        *prometheus.CounterVec
	hintDuration      *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	rateLimitedTotal  *prometheus.CounterVec
}

// NewRecorder creates a recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		executionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codedojo_executions_total",
				Help: "Program executions by language and outcome",
			},
			[]string{"language", "outcome"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codedojo_execution_duration_seconds",
				Help:    "Duration of program executions in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"language"},
		),
		hintsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codedojo_hints_total",
				Help: "Hint requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		hintDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codedojo_hint_duration_seconds",
				Help:    "Duration of hint generation in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codedojo_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codedojo_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codedojo_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
}

// ObserveExecution records a finished execution.
func (r *Recorder) ObserveExecution(language, outcome string, d time.Duration) {
	r.executionsTotal.WithLabelValues(language, outcome).Inc()
	if d > 0 {
		r.executionDuration.WithLabelValues(language).Observe(d.Seconds())
	}
}

// ObserveHint records a finished hint request.
func (r *Recorder) ObserveHint(provider string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.hintsTotal.WithLabelValues(provider, status).Inc()
	r.hintDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveHTTP records a served request.
func (r *Recorder) ObserveHTTP(route, method string, code int, d time.Duration) {
	r.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncRateLimited counts a request rejected by the rate limiter.
func (r *Recorder) IncRateLimited(route string) {
	r.rateLimitedTotal.WithLabelValues(route).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
