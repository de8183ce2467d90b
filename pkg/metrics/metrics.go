// Package metrics exposes the outcome of a run in the Prometheus text format,
// suitable for the node exporter textfile collector.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run is a summary of a finished run.
type Run struct {
	Mode             string
	SourceFiles      int
	DestinationFiles int
	Pruned           int
	Hashed           uint64
	HashedBytes      uint64
	CacheHits        uint64
	Pairs            int
	MatchedBytes     uint64
	Outcomes         map[string]int
	ReclaimedBytes   uint64
	Errors           int
	Duration         time.Duration
}

type Metrics struct {
	registry *prometheus.Registry

	indexedFiles   *prometheus.GaugeVec
	prunedFiles    prometheus.Gauge
	hashedFiles    prometheus.Gauge
	hashedBytes    prometheus.Gauge
	cacheHits      prometheus.Gauge
	pairs          prometheus.Gauge
	matchedBytes   prometheus.Gauge
	outcomes       *prometheus.GaugeVec
	reclaimedBytes *prometheus.GaugeVec
	errors         prometheus.Gauge
	duration       prometheus.Gauge
	lastRun        prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		indexedFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dupelink_indexed_files",
			Help: "Number of regular files indexed",
		}, []string{"side"}),
		prunedFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_pruned_files",
			Help: "Files skipped without hashing because no file on the other side had their size",
		}),
		hashedFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_hashed_files",
			Help: "Files whose content was read and hashed",
		}),
		hashedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_hashed_bytes",
			Help: "Bytes read while hashing",
		}),
		cacheHits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_hash_cache_hits",
			Help: "Digests served from the hash cache",
		}),
		pairs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_duplicate_pairs",
			Help: "Destination files with identical content in a source tree",
		}),
		matchedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_matched_bytes",
			Help: "Total size of matched destination files",
		}),
		outcomes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dupelink_link_outcomes",
			Help: "Link operations by outcome",
		}, []string{"mode", "outcome"}),
		reclaimedBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dupelink_reclaimed_bytes",
			Help: "Bytes freed by linking, or that would be freed in a dry-run",
		}, []string{"mode"}),
		errors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_file_errors",
			Help: "Files that could not be indexed or hashed",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_run_duration_seconds",
			Help: "Wall time of the run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dupelink_last_run_timestamp_seconds",
			Help: "Unix time the run finished",
		}),
	}
}

func (m *Metrics) Observe(run Run) {
	m.indexedFiles.WithLabelValues("source").Set(float64(run.SourceFiles))
	m.indexedFiles.WithLabelValues("destination").Set(float64(run.DestinationFiles))
	m.prunedFiles.Set(float64(run.Pruned))
	m.hashedFiles.Set(float64(run.Hashed))
	m.hashedBytes.Set(float64(run.HashedBytes))
	m.cacheHits.Set(float64(run.CacheHits))
	m.pairs.Set(float64(run.Pairs))
	m.matchedBytes.Set(float64(run.MatchedBytes))
	for outcome, n := range run.Outcomes {
		m.outcomes.WithLabelValues(run.Mode, outcome).Set(float64(n))
	}
	m.reclaimedBytes.WithLabelValues(run.Mode).Set(float64(run.ReclaimedBytes))
	m.errors.Set(float64(run.Errors))
	m.duration.Set(run.Duration.Seconds())
	m.lastRun.SetToCurrentTime()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile atomically writes the gathered metrics to path.
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create metrics directory for %q", path)
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %q", path)
	}

	return nil
}
