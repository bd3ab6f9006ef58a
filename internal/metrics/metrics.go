// Package metrics records kbsync run and transform statistics in a private
// Prometheus registry that can be written to a node-exporter textfile.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/kbsync/internal/model"
)

const namespace = "kbsync"

// Recorder collects metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry          *prometheus.Registry
	transformCalls    *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
	articles          *prometheus.CounterVec
	failures          *prometheus.CounterVec
	lastRun           prometheus.Gauge
}

// New creates a Recorder with all collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transformCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_calls_total",
			Help:      "Text transform calls by capability and outcome.",
		}, []string{"capability", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Latency of text transform calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"capability"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Synchronization runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of synchronization runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_committed_total",
			Help:      "Article versions committed by kind and mode.",
		}, []string{"kind", "mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_failures_total",
			Help:      "Per-kind reconciliation failures by stage.",
		}, []string{"kind", "stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(
		r.transformCalls,
		r.transformDuration,
		r.runs,
		r.runDuration,
		r.articles,
		r.failures,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveTransform records one transform call
func (r *Recorder) ObserveTransform(capability string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.transformCalls.WithLabelValues(capability, outcome(err)).Inc()
	r.transformDuration.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// ObserveRun records the outcome of a finished run
func (r *Recorder) ObserveRun(report *model.RunReport) {
	if r == nil || report == nil {
		return
	}

	r.runs.WithLabelValues(string(report.Status)).Inc()
	r.runDuration.Observe(report.Duration().Seconds())
	r.lastRun.Set(float64(report.FinishedAt.Unix()))

	for _, res := range report.Results {
		mode := "created"
		if res.Merged {
			mode = "merged"
		}
		r.articles.WithLabelValues(res.Kind.String(), mode).Inc()
	}
	for _, f := range report.Failures {
		r.failures.WithLabelValues(f.Kind.String(), string(f.Stage)).Inc()
	}
}

// WriteTextfile atomically writes all metrics in text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return errors.New("metrics recorder is not configured")
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrSoftFailure):
		return "soft_failure"
	default:
		return "error"
	}
}
