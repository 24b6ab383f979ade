package store

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/async"
	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/metrics"
)

// Report is the outcome of one corruption scan.
type Report struct {
	// PrimaryCorrupt is set if the primary slot exists but fails its
	// checksum or validation.
	PrimaryCorrupt bool
	// PrimaryErr describes the primary corruption, when set.
	PrimaryErr error
	// BackupsScanned and BackupsCorrupt count ring entries examined and
	// found damaged.
	BackupsScanned int
	BackupsCorrupt int
	// Recoverable is set when at least one valid backup entry exists, so a
	// corrupt primary can be recovered rather than reset.
	Recoverable bool
}

// Corrupt returns whether the scan found any damage.
func (r Report) Corrupt() bool { return r.PrimaryCorrupt || r.BackupsCorrupt != 0 }

// Monitor periodically validates the primary slot and backup ring, raising
// recoverable-corruption notifications through its callback. Checksums which
// already validated are remembered in a small LRU so steady-state scans skip
// re-validating unchanged generations.
type Monitor struct {
	persistence *Persistence
	ring        *BackupRing

	// onCorruption, if set, is invoked with each Report that finds damage.
	onCorruption func(Report)
	// seen caches checksums of documents which have already validated.
	seen *lru.Cache

	stop async.Promise
}

// NewMonitor returns a Monitor over |persistence| and |ring|.
// |onCorruption| may be nil.
func NewMonitor(persistence *Persistence, ring *BackupRing, onCorruption func(Report)) *Monitor {
	var seen, err = lru.New(4 * DefaultBackupCapacity)
	if err != nil {
		panic(err.Error()) // Only fails on size <= 0.
	}
	return &Monitor{
		persistence:  persistence,
		ring:         ring,
		onCorruption: onCorruption,
		seen:         seen,
		stop:         make(async.Promise),
	}
}

// Check runs one scan and returns its Report. It is invoked after each load
// and by the periodic loop.
func (m *Monitor) Check() Report {
	var r Report

	if sum, ok := m.persistence.Checksum(); ok && m.seen.Contains(sum) {
		// Primary is unchanged since it last validated.
	} else if err := m.persistence.Verify(); err != nil {
		r.PrimaryCorrupt, r.PrimaryErr = true, err
	} else if ok {
		m.seen.Add(sum, struct{}{})
	}

	var entries, err = m.ring.List()
	if err != nil {
		log.WithField("err", err).Warn("corruption scan cannot read backup ring")
	}
	for _, e := range entries {
		r.BackupsScanned++

		var sum, sumErr = document.ParseSum(e.Checksum)
		if sumErr == nil && m.seen.Contains(sum) {
			r.Recoverable = true
			continue
		}
		if sumErr != nil || document.SumOf(e.Document).String() != e.Checksum || e.Document.Validate() != nil {
			r.BackupsCorrupt++
			continue
		}
		m.seen.Add(sum, struct{}{})
		r.Recoverable = true
	}

	if r.Corrupt() {
		metrics.CorruptionDetectedTotal.Inc()
		log.WithFields(log.Fields{
			"primary":        r.PrimaryCorrupt,
			"backupsCorrupt": r.BackupsCorrupt,
			"recoverable":    r.Recoverable,
		}).Warn("corruption scan found damage")

		if m.onCorruption != nil {
			m.onCorruption(r)
		}
	}
	return r
}

// Serve scans with |period| until Stop is called. It blocks, and is
// typically run from a dedicated goroutine.
func (m *Monitor) Serve(period time.Duration) {
	m.stop.WaitWithPeriodicTask(period, func() { m.Check() })
}

// Stop halts a Serve loop.
func (m *Monitor) Stop() { m.stop.Resolve() }
