// Package metrics defines prometheus collectors for the save/sync core.
// Collectors are package-level and must be registered by the application,
// typically via prometheus.MustRegister(metrics.Collectors()...).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for save/sync metric labels.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors for save persistence, backup, and recovery.
var (
	SaveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "save_flush_total",
		Help: "Cumulative number of save flushes, by status.",
	}, []string{"status"})
	SaveBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_flush_bytes_total",
		Help: "Cumulative number of compressed bytes persisted to the primary slot.",
	})
	BackupSnapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_backup_snapshots_total",
		Help: "Cumulative number of backup snapshots taken.",
	})
	BackupRecoveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_backup_recoveries_total",
		Help: "Cumulative number of documents recovered from the backup ring.",
	})
	CorruptionDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_corruption_detected_total",
		Help: "Cumulative number of corrupted documents detected by the monitor.",
	})
	RepairTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_document_repairs_total",
		Help: "Cumulative number of documents rebuilt by schema repair.",
	})
)

// Collectors for sync reconciliation.
var (
	SyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "save_sync_total",
		Help: "Cumulative number of sync reconciliations, by outcome.",
	}, []string{"outcome"})
	SyncConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_sync_conflicts_total",
		Help: "Cumulative number of sync conflicts detected.",
	})
)

// Collectors for the resilient transport.
var (
	TransportRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "save_transport_retries_total",
		Help: "Cumulative number of retried transport attempts.",
	})
	OfflineQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "save_transport_offline_queue_depth",
		Help: "Current depth of the offline replay queue.",
	})
	OfflineReplayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "save_transport_offline_replayed_total",
		Help: "Cumulative number of offline-queued operations replayed, by status.",
	}, []string{"status"})
)

// Collectors returns the full set of core collectors for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SaveTotal,
		SaveBytesTotal,
		BackupSnapshotsTotal,
		BackupRecoveriesTotal,
		CorruptionDetectedTotal,
		RepairTotal,
		SyncTotal,
		SyncConflictsTotal,
		TransportRetriesTotal,
		OfflineQueueDepth,
		OfflineReplayedTotal,
	}
}
