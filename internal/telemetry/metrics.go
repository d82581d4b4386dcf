package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	RecordOutcomes   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "postpone_records_total", Help: "Schedule records handled, by outcome"}, []string{"outcome"})
	Runs             = prometheus.NewCounter(prometheus.CounterOpts{Name: "postpone_runs_total", Help: "Processor runs started"})
	RunsAborted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "postpone_runs_aborted_total", Help: "Processor runs stopped by an archive failure"})
	CaptionFailures  = prometheus.NewCounter(prometheus.CounterOpts{Name: "postpone_caption_failures_total", Help: "Caption generation calls that failed"})
	AnnotationErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "postpone_annotation_errors_total", Help: "Failure annotations that could not be written"})
	PendingGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "postpone_pending_records", Help: "Pending records seen by the last run"})
	RunDuration      = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "postpone_run_duration_seconds", Help: "Processor run duration", Buckets: prometheus.DefBuckets})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			RecordOutcomes,
			Runs,
			RunsAborted,
			CaptionFailures,
			AnnotationErrors,
			PendingGauge,
			RunDuration,
		)
	})
	return promhttp.Handler()
}
