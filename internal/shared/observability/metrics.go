package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apisurface_phase_seconds",
		Help:    "Time spent in one phase of a run (load, extract, diff, store).",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	NodesEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apisurface_nodes_emitted_total",
		Help: "Total number of surface nodes emitted by extraction, by kind.",
	}, []string{"kind"})

	FilesParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apisurface_files_parsed_total",
		Help: "Total number of Python files parsed.",
	})

	ParseCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apisurface_parse_cache_hits_total",
		Help: "Total number of Python files served from the parse cache.",
	})

	ChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apisurface_changes_total",
		Help: "Total number of changes reported by comparisons, by level.",
	}, []string{"level"})

	LastLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apisurface_last_level",
		Help: "Level of the most recent comparison (0 patch, 1 minor, 2 major).",
	})

	SnapshotsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apisurface_snapshots_saved_total",
		Help: "Total number of snapshots written to the store.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apisurface_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// WriteTextfile writes the default registry in the text exposition format,
// for collection by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory %q: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}
