// Package metrics records relocation and verification activity as
// Prometheus collectors. A nil *Recorder is valid and records nothing, so
// callers never need to check whether metrics are enabled.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for FilesTotal.
const (
	ResultRelocated = "relocated"
	ResultUnchanged = "unchanged"
	ResultCopied    = "copied"
	ResultFailed    = "failed"
)

// Recorder owns a private registry so several runs in one process do not
// collide with the default registry.
type Recorder struct {
	registry     *prometheus.Registry
	files        *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	lastRun      prometheus.Gauge
	diagnostics  *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semshade_files_total",
				Help: "Files processed, by kind and result.",
			},
			[]string{"kind", "result"},
		),
		fileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "semshade_file_duration_seconds",
				Help:    "Time spent relocating a single file.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semshade_runs_total",
				Help: "Completed runs, by mode.",
			},
			[]string{"mode"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "semshade_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run.",
			},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semshade_verify_diagnostics_total",
				Help: "Structural differences reported by verify, by member kind.",
			},
			[]string{"kind"},
		),
	}
	r.registry.MustRegister(r.files, r.fileDuration, r.runs, r.lastRun, r.diagnostics)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// File records one processed file.
func (r *Recorder) File(kind, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(kind, result).Inc()
	r.fileDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Run records a completed run of the given mode ("dir", "jar", "file",
// "watch", "verify").
func (r *Recorder) Run(mode string, at time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(mode).Inc()
	r.lastRun.Set(float64(at.Unix()))
}

// Diagnostic records one verify diagnostic.
func (r *Recorder) Diagnostic(kind string) {
	if r == nil {
		return
	}
	r.diagnostics.WithLabelValues(kind).Inc()
}

// WriteTextfile writes all collectors in the text exposition format, for
// node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
