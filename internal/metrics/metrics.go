// Package metrics collects batch counters on a private Prometheus registry
// and exports them in the node_exporter textfile format, so a scheduled
// retempo run can be scraped without an HTTP listener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: no record ids or filenames.

// Recorder holds the batch metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	reg *prometheus.Registry

	jobs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	transformTime prometheus.Histogram
	runRecords    *prometheus.GaugeVec
	runState      *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// RunStates are the terminal batch states exported by ObserveRun.
var RunStates = []string{"completed", "cancelled", "failed"}

// New returns a Recorder on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,

		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "retempo_jobs_total",
			Help: "Total number of transform jobs, by status (succeeded, skipped, failed).",
		}, []string{"status"}),

		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "retempo_job_failures_total",
			Help: "Total number of failed transform jobs, by error kind.",
		}, []string{"kind"}),

		transformTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "retempo_transform_duration_seconds",
			Help:    "Wall time of a single ffmpeg transform.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		runRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "retempo_last_run_records",
			Help: "Record counts of the last batch run, by outcome.",
		}, []string{"outcome"}),

		runState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "retempo_last_run_state",
			Help: "1 for the terminal state of the last batch run, 0 otherwise.",
		}, []string{"state"}),

		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "retempo_last_run_duration_seconds",
			Help: "Wall time of the last batch run.",
		}),

		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "retempo_last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveJob records one finished job. kind is empty unless status is
// "failed"; transform is zero when no ffmpeg run happened.
func (r *Recorder) ObserveJob(status, kind string, transform time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
	if kind != "" {
		r.failures.WithLabelValues(kind).Inc()
	}
	if transform > 0 {
		r.transformTime.Observe(transform.Seconds())
	}
}

// RunCounts mirrors the batch counters.
type RunCounts struct {
	Succeeded, Skipped, Failed, Remaining int
}

// ObserveRun records the end of a batch.
func (r *Recorder) ObserveRun(state string, c RunCounts, took time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.runRecords.WithLabelValues("succeeded").Set(float64(c.Succeeded))
	r.runRecords.WithLabelValues("skipped").Set(float64(c.Skipped))
	r.runRecords.WithLabelValues("failed").Set(float64(c.Failed))
	r.runRecords.WithLabelValues("remaining").Set(float64(c.Remaining))
	for _, s := range RunStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.runState.WithLabelValues(s).Set(v)
	}
	r.runDuration.Set(took.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteFile writes the metrics to path in the text exposition format. The
// file is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
