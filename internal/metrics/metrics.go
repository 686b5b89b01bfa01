// Package metrics records export run metrics in the Prometheus textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chmouel/t262export/internal/models"
)

// Recorder collects the metrics of one run on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	files    *prometheus.GaugeVec
	duration prometheus.Gauge
	success  prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewRecorder returns a Recorder with every metric registered.
func NewRecorder(implementer string) *Recorder {
	labels := prometheus.Labels{"implementer": implementer}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "t262export_files",
			Help:        "Files classified per outcome in the last run.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "t262export_run_duration_seconds",
			Help:        "Duration of the last run.",
			ConstLabels: labels,
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "t262export_run_success",
			Help:        "1 when the last run succeeded.",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "t262export_last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.files, r.duration, r.success, r.lastRun)
	return r
}

// ObserveBuckets records the file count of every outcome, zeros included.
func (r *Recorder) ObserveBuckets(buckets *models.OutcomeBuckets) {
	for _, outcome := range models.AllOutcomes() {
		r.files.WithLabelValues(outcome.String()).Set(float64(buckets.Count(outcome)))
	}
}

// ObserveRun records how the run ended.
func (r *Recorder) ObserveRun(started, finished time.Time, err error) {
	r.duration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
	if err == nil {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
}

// WriteFile writes the metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
