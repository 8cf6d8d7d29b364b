package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cleanup run metrics
var (
	// RunDuration tracks how long a run takes from manifest load to summary
	RunDuration prometheus.Histogram

	// FilesDeletedTotal tracks files removed
	FilesDeletedTotal prometheus.Counter

	// FilesMissingTotal tracks targets that were already absent
	FilesMissingTotal prometheus.Counter

	// FilesFailedTotal tracks failed targets by reason (error, blocked)
	FilesFailedTotal *prometheus.CounterVec

	// PlannedFiles tracks the size of the deletion set per category
	PlannedFiles *prometheus.GaugeVec

	// ErrorsTotal tracks fatal errors (config, manifest, history database)
	ErrorsTotal prometheus.Counter

	// LastRunTimestamp records Unix timestamp of last run
	LastRunTimestamp prometheus.Gauge

	// LastRunState is 1 for the terminal state of the last run, 0 otherwise
	LastRunState *prometheus.GaugeVec
)

func initRunMetrics() {
	RunDuration = NewDurationHistogram(
		"docsweep_run_duration_seconds",
		"Duration of cleanup runs in seconds.",
	)

	FilesDeletedTotal = NewCounter(
		"docsweep_files_deleted_total",
		"Total number of files deleted.",
	)

	FilesMissingTotal = NewCounter(
		"docsweep_files_missing_total",
		"Total number of deletion targets that did not exist.",
	)

	FilesFailedTotal = NewCounterVec(
		"docsweep_files_failed_total",
		"Total number of deletion targets that could not be removed.",
		[]string{"reason"},
	)

	PlannedFiles = NewGaugeVec(
		"docsweep_planned_files",
		"Number of files in the deletion set per manifest category.",
		[]string{"category"},
	)

	ErrorsTotal = NewCounter(
		"docsweep_errors_total",
		"Total number of fatal errors.",
	)

	LastRunTimestamp = NewGauge(
		"docsweep_last_run_timestamp",
		"Timestamp of the last run (Unix epoch seconds).",
	)

	LastRunState = NewGaugeVec(
		"docsweep_last_run_state",
		"Terminal state of the last run (1 for the active state).",
		[]string{"state"},
	)
}

func registerRunMetrics() {
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(FilesMissingTotal)
	prometheus.MustRegister(FilesFailedTotal)
	prometheus.MustRegister(PlannedFiles)
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(LastRunState)
}

// SetPlanned records the deletion set size for a category
func SetPlanned(category string, n int) {
	PlannedFiles.WithLabelValues(category).Set(float64(n))
}

// RecordFailure increments the failed counter for reason
func RecordFailure(reason string) {
	FilesFailedTotal.WithLabelValues(reason).Inc()
}

// RecordRun stores the terminal state, timestamp and duration of a run
// Resets all state gauges to 0, then sets the final state to 1
func RecordRun(state string, elapsed time.Duration) {
	stateLock.Lock()
	defer stateLock.Unlock()

	LastRunState.Reset()
	LastRunState.WithLabelValues(state).Set(1)
	LastRunTimestamp.Set(float64(time.Now().Unix()))
	RunDuration.Observe(elapsed.Seconds())
}
