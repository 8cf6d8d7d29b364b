package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce  sync.Once
	stateLock sync.Mutex
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initRunMetrics()
		registerRunMetrics()

		// Present in the output even before the first run finishes
		LastRunTimestamp.Set(0)
		LastRunState.WithLabelValues("NONE").Set(1)
	})
}

// WriteTextfile dumps every registered metric in the text exposition format
// for node_exporter's textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
