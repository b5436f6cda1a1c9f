// Package metrics exposes run counters to Prometheus.
//
// [Recorder] satisfies the sequencer's Metrics hook and [progress.Reporter], so
// one value counts iterations and tracks progress. Metrics live on a private
// registry served by [Recorder.Handler].
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surveyreview/internal/progress"
)

// Recorder holds the run metrics.
type Recorder struct {
	registry *prometheus.Registry

	iterationsStarted   prometheus.Counter
	iterationsSucceeded prometheus.Counter
	iterationsFailed    *prometheus.CounterVec
	runs                *prometheus.CounterVec
	logLines            *prometheus.CounterVec
	progressRatio       prometheus.Gauge
	currentIteration    prometheus.Gauge
}

// NewRecorder creates a Recorder whose metric names start with namespace.
func NewRecorder(namespace string) (*Recorder, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("registering go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("registering process collector: %w", err)
	}

	r := &Recorder{
		registry: reg,
		iterationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_started_total",
			Help:      "Iterations started.",
		}),
		iterationsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_succeeded_total",
			Help:      "Iterations that completed every step.",
		}),
		iterationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_failed_total",
			Help:      "Iterations that failed, by failing step.",
		}, []string{"step"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by outcome.",
		}, []string{"outcome"}),
		logLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Progress log lines by severity.",
		}, []string{"severity"}),
		progressRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_progress_ratio",
			Help:      "Fraction of the current run's iterations started.",
		}),
		currentIteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_current_iteration",
			Help:      "Current iteration of the active run.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.iterationsStarted, r.iterationsSucceeded, r.iterationsFailed,
		r.runs, r.logLines, r.progressRatio, r.currentIteration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering run metric: %w", err)
		}
	}
	return r, nil
}

// Handler returns an http.Handler for the /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (r *Recorder) IterationStarted() {
	r.iterationsStarted.Inc()
}

func (r *Recorder) IterationSucceeded() {
	r.iterationsSucceeded.Inc()
}

func (r *Recorder) IterationFailed(step string) {
	if step == "" {
		step = "unknown"
	}
	r.iterationsFailed.WithLabelValues(step).Inc()
}

func (r *Recorder) RunFinished(outcome string) {
	r.runs.WithLabelValues(outcome).Inc()
}

func (r *Recorder) OnProgress(current, total int) {
	r.currentIteration.Set(float64(current))
	if total > 0 {
		r.progressRatio.Set(float64(current) / float64(total))
	}
}

func (r *Recorder) OnLog(_ string, severity progress.Severity) {
	r.logLines.WithLabelValues(string(severity)).Inc()
}

func (r *Recorder) OnStatusChange(string, progress.StatusKind) {}

func (r *Recorder) OnToast(string, progress.ToastKind, time.Duration) {}

var _ progress.Reporter = (*Recorder)(nil)
