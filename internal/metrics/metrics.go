// Package metrics exposes Prometheus instrumentation for page renders.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeContentFailure = "content_failure"
	OutcomeShellFailure   = "shell_failure"
	OutcomeModuleFailure  = "module_failure"
)

// Recorder collects render metrics on its own registry. A nil *Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	renders       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	passes        prometheus.Histogram
	seeds         prometheus.Histogram
	requests      *prometheus.CounterVec
	moduleReloads prometheus.Counter
}

// New creates a Recorder with the Go and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedling",
			Name:      "renders_total",
			Help:      "Total number of pipeline renders by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seedling",
			Name:      "render_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		passes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seedling",
			Name:      "harvest_passes",
			Help:      "Render passes needed to settle the content tree.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		seeds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seedling",
			Name:      "harvest_seeds",
			Help:      "Seeds captured per content render.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedling",
			Name:      "http_requests_total",
			Help:      "HTTP responses by status code.",
		}, []string{"code"}),
		moduleReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seedling",
			Name:      "module_reloads_total",
			Help:      "Times the compiled module cache was invalidated.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.renders,
		r.stageDuration,
		r.passes,
		r.seeds,
		r.requests,
		r.moduleReloads,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRender counts one pipeline run.
func (r *Recorder) ObserveRender(outcome string) {
	if r == nil {
		return
	}
	r.renders.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveHarvest records the size of a settled content harvest.
func (r *Recorder) ObserveHarvest(passes, seeds int) {
	if r == nil {
		return
	}
	r.passes.Observe(float64(passes))
	r.seeds.Observe(float64(seeds))
}

// ObserveResponse counts an HTTP response.
func (r *Recorder) ObserveResponse(status int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ModuleReloaded counts a module cache invalidation.
func (r *Recorder) ModuleReloaded() {
	if r == nil {
		return
	}
	r.moduleReloads.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
