package store

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/metrics"
)

// BackupSlot is the KV key of the backup ring.
const BackupSlot = "backups"

// DefaultBackupCapacity is the ring capacity when none is configured.
const DefaultBackupCapacity = 10

// ErrUnrecoverable is returned by Recover when no entry of the backup ring
// holds a valid document. The caller falls back to schema defaults.
var ErrUnrecoverable = errors.New("no recoverable backup")

// BackupEntry is one immutable generation of the backup ring.
type BackupEntry struct {
	SavedAt  int64             `json:"savedAt"`
	Checksum string            `json:"checksum"`
	Document document.Document `json:"document"`
}

// BackupRing is a rotating, bounded history of previously persisted
// documents, held newest-first under a single KV key. Before each flush
// overwrites the primary slot, the outgoing generation is snapshotted here,
// so at least one recoverable generation survives a crash mid-write.
type BackupRing struct {
	kv       KV
	capacity int
}

// NewBackupRing returns a BackupRing of |capacity| entries over |kv|.
// A capacity <= 0 uses DefaultBackupCapacity.
func NewBackupRing(kv KV, capacity int) *BackupRing {
	if capacity <= 0 {
		capacity = DefaultBackupCapacity
	}
	return &BackupRing{kv: kv, capacity: capacity}
}

// Capacity returns the ring's capacity.
func (r *BackupRing) Capacity() int { return r.capacity }

// Snapshot prepends |doc| to the ring, evicting the oldest entry beyond
// capacity. Snapshotting a document identical to the newest entry is a
// no-op, so repeated force-saves don't churn history.
func (r *BackupRing) Snapshot(doc document.Document) error {
	var entries, err = r.List()
	if err != nil {
		return err
	}
	var sum = document.SumOf(doc)

	if len(entries) != 0 && entries[0].Checksum == sum.String() {
		return nil
	}
	entries = append([]BackupEntry{{
		SavedAt:  doc.SavedAt,
		Checksum: sum.String(),
		Document: doc,
	}}, entries...)

	if len(entries) > r.capacity {
		entries = entries[:r.capacity]
	}
	if err = r.put(entries); err != nil {
		return err
	}
	metrics.BackupSnapshotsTotal.Inc()
	return nil
}

// List returns the ring's entries, newest first. A missing or undecodable
// ring reads as empty: backups degrade, they never fail the caller.
func (r *BackupRing) List() ([]BackupEntry, error) {
	var blob, ok, err = r.kv.Get(BackupSlot)
	if err != nil {
		return nil, errors.WithMessage(err, "reading backup ring")
	} else if !ok {
		return nil, nil
	}

	var entries []BackupEntry
	if err = json.Unmarshal(blob, &entries); err != nil {
		log.WithField("err", err).Warn("backup ring is undecodable (treating as empty)")
		return nil, nil
	}
	return entries, nil
}

// Recover scans newest-first for the first entry whose document passes
// validation and matches its recorded checksum, returning its document.
// If no entry qualifies it returns ErrUnrecoverable.
func (r *BackupRing) Recover() (document.Document, error) {
	var entries, err = r.List()
	if err != nil {
		return document.Document{}, err
	}

	for _, e := range entries {
		if sum := document.SumOf(e.Document); sum.String() != e.Checksum {
			log.WithFields(log.Fields{
				"savedAt":  e.SavedAt,
				"expected": e.Checksum,
				"computed": sum,
			}).Warn("backup entry checksum mismatch (skipping)")
			continue
		} else if err = e.Document.Validate(); err != nil {
			log.WithFields(log.Fields{
				"savedAt": e.SavedAt,
				"err":     err,
			}).Warn("backup entry fails validation (skipping)")
			continue
		}

		metrics.BackupRecoveriesTotal.Inc()
		return e.Document, nil
	}
	return document.Document{}, ErrUnrecoverable
}

// Reset discards all entries of the ring.
func (r *BackupRing) Reset() error {
	return r.kv.Delete(BackupSlot)
}

func (r *BackupRing) put(entries []BackupEntry) error {
	var blob, err = json.Marshal(entries)
	if err != nil {
		return errors.WithMessage(err, "encoding backup ring")
	}
	return r.kv.Put(BackupSlot, blob)
}
