// Package metrics exposes Prometheus metrics for scans and cleanups.
//
// The tool runs as a batch job, so metrics are written to a node-exporter
// textfile at the end of a command instead of being served over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xxxsen/storeaudit/internal/model"
)

const namespace = "storeaudit"

// AuditMetrics holds the scan gauges and cleanup counters.
type AuditMetrics struct {
	// ScanObjects is the number of objects seen by the last scan.
	ScanObjects prometheus.Gauge

	// ScanExcluded is the number of objects left out for lack of a hash or metadata.
	ScanExcluded prometheus.Gauge

	// ScanFoldersSkipped is the number of folders that could not be listed.
	ScanFoldersSkipped prometheus.Gauge

	// DuplicateGroups is the number of groups in the last report.
	DuplicateGroups prometheus.Gauge

	// WasteBytes is the space held by redundant copies in the last report.
	WasteBytes prometheus.Gauge

	// ScanDuration is how long the last scan took.
	ScanDuration prometheus.Gauge

	// LastScanTimestamp is the unix time the last scan finished.
	LastScanTimestamp prometheus.Gauge

	// CleanupGroups counts cleaned groups by outcome.
	CleanupGroups *prometheus.CounterVec

	// ReferencesMigrated counts database rows repointed to a winner.
	ReferencesMigrated prometheus.Counter

	// BytesReclaimed counts bytes freed by deleting losers.
	BytesReclaimed prometheus.Counter

	// CleanupFailures counts losers left in place, by the stage that failed.
	CleanupFailures *prometheus.CounterVec
}

// NewAuditMetricsWithRegistry creates metrics registered with reg. Every
// command gets its own registry, so only its own run ends up in the textfile.
func NewAuditMetricsWithRegistry(reg prometheus.Registerer) *AuditMetrics {
	f := promauto.With(reg)
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	return &AuditMetrics{
		ScanObjects:        gauge("scan", "objects", "Number of objects seen by the last scan."),
		ScanExcluded:       gauge("scan", "excluded_objects", "Number of objects excluded for missing hash or metadata."),
		ScanFoldersSkipped: gauge("scan", "folders_skipped", "Number of folders that could not be listed."),
		DuplicateGroups:    gauge("scan", "duplicate_groups", "Number of duplicate groups in the last report."),
		WasteBytes:         gauge("scan", "waste_bytes", "Bytes held by redundant copies in the last report."),
		ScanDuration:       gauge("scan", "duration_seconds", "Duration of the last scan."),
		LastScanTimestamp:  gauge("scan", "last_success_timestamp_seconds", "Unix time the last scan finished."),

		CleanupGroups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "groups_total",
				Help:      "Duplicate groups processed by cleanup, by status.",
			},
			[]string{"status"},
		),
		ReferencesMigrated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "references_migrated_total",
				Help:      "Database references repointed from a loser to its winner.",
			},
		),
		BytesReclaimed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "reclaimed_bytes_total",
				Help:      "Bytes freed by deleting duplicate objects.",
			},
		),
		CleanupFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "failures_total",
				Help:      "Losers left in place, by failing stage.",
			},
			[]string{"stage"},
		),
	}
}

// ObserveReport records the result of a scan.
func (m *AuditMetrics) ObserveReport(r *model.AuditReport) {
	m.ScanObjects.Set(float64(r.Stats.ObjectsSeen))
	m.ScanExcluded.Set(float64(r.Stats.Excluded))
	m.ScanFoldersSkipped.Set(float64(r.Stats.FoldersSkipped))
	m.DuplicateGroups.Set(float64(len(r.Groups)))
	m.WasteBytes.Set(float64(r.TotalWaste))
	m.ScanDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	m.LastScanTimestamp.Set(float64(r.FinishedAt.Unix()))
}

func (m *AuditMetrics) RecordGroup(status string) {
	m.CleanupGroups.WithLabelValues(status).Inc()
}

func (m *AuditMetrics) RecordMigrated(refs int64) {
	m.ReferencesMigrated.Add(float64(refs))
}

func (m *AuditMetrics) RecordLoserRemoved(bytes int64) {
	m.BytesReclaimed.Add(float64(bytes))
}

func (m *AuditMetrics) RecordFailure(stage string) {
	m.CleanupFailures.WithLabelValues(stage).Inc()
}

// WriteTextfile atomically writes everything g gathers to path in the text
// exposition format read by the node-exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
