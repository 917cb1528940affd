package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is the last-run summary written for one mode.
type Snapshot struct {
	Mode     string
	Finished time.Time
	Success  bool
	Duration time.Duration
	Bytes    int64
	// Files counts items by outcome, e.g. "transferred", "failed".
	Files map[string]int
}

// TextfilePath returns the textfile written for mode inside dir.
func TextfilePath(dir, mode string) string {
	return filepath.Join(dir, fmt.Sprintf("mediasync_%s.prom", mode))
}

// WriteTextfile renders snap into dir and returns the written path. The file
// is replaced atomically so the collector never reads a partial export.
func WriteTextfile(dir string, snap Snapshot) (string, error) {
	if dir == "" {
		return "", nil
	}
	if snap.Mode == "" {
		return "", fmt.Errorf("metrics snapshot missing mode")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create metrics directory: %w", err)
	}

	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"mode": snap.Mode}
	factory := promauto.With(registry)

	lastRun := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "mediasync_last_run_timestamp_seconds",
		Help:        "Unix time the last run finished",
		ConstLabels: labels,
	})
	success := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "mediasync_last_run_success",
		Help:        "1 when the last run finished without errors or failed items",
		ConstLabels: labels,
	})
	duration := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "mediasync_last_run_duration_seconds",
		Help:        "Wall-clock duration of the last run",
		ConstLabels: labels,
	})
	bytes := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "mediasync_last_run_bytes",
		Help:        "Bytes transferred or freed by the last run",
		ConstLabels: labels,
	})
	files := factory.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "mediasync_last_run_files",
		Help:        "Files handled by the last run, by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	finished := snap.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	lastRun.Set(float64(finished.UnixNano()) / 1e9)
	if snap.Success {
		success.Set(1)
	}
	duration.Set(snap.Duration.Seconds())
	bytes.Set(float64(snap.Bytes))

	outcomes := make([]string, 0, len(snap.Files))
	for outcome := range snap.Files {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		files.WithLabelValues(outcome).Set(float64(snap.Files[outcome]))
	}

	path := TextfilePath(dir, snap.Mode)
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return "", fmt.Errorf("write metrics textfile: %w", err)
	}
	return path, nil
}
