package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.zomroad.dev/save/codecs"
	"go.zomroad.dev/save/document"
)

func buildDoc(savedAt int64, currency int64) document.Document {
	var d = document.New()
	d.SavedAt = savedAt
	d.Player.Currency = currency
	return d
}

func TestBackupRingRotation(t *testing.T) {
	var ring = NewBackupRing(newTestKV(t), 2)

	var s1 = buildDoc(1, 10)
	var s2 = buildDoc(2, 20)
	var s3 = buildDoc(3, 30)

	require.NoError(t, ring.Snapshot(s1))
	require.NoError(t, ring.Snapshot(s2))
	require.NoError(t, ring.Snapshot(s3))

	// S3 and S2 remain, newest first; S1 was evicted.
	var entries, err = ring.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(3), entries[0].SavedAt)
	require.Equal(t, int64(2), entries[1].SavedAt)
}

func TestBackupSnapshotDedupes(t *testing.T) {
	var ring = NewBackupRing(newTestKV(t), 5)
	var doc = buildDoc(1, 10)

	require.NoError(t, ring.Snapshot(doc))
	require.NoError(t, ring.Snapshot(doc)) // Identical; no new entry.

	var entries, _ = ring.List()
	require.Len(t, entries, 1)
}

func TestBackupRecoverSkipsInvalid(t *testing.T) {
	var ring = NewBackupRing(newTestKV(t), DefaultBackupCapacity)

	var valid = buildDoc(5, 50)
	require.NoError(t, ring.Snapshot(valid))

	// A newer snapshot is silently damaged in place.
	var damaged = buildDoc(9, 90)
	require.NoError(t, ring.Snapshot(damaged))

	var entries, _ = ring.List()
	entries[0].Document.Player.Currency = -1 // No longer matches checksum, nor validates.
	require.NoError(t, ring.put(entries))

	// Recover returns the newest entry which still verifies.
	var got, err = ring.Recover()
	require.NoError(t, err)
	require.Equal(t, int64(5), got.SavedAt)
	require.Equal(t, int64(50), got.Player.Currency)
}

func TestBackupRecoverUnrecoverable(t *testing.T) {
	var ring = NewBackupRing(newTestKV(t), DefaultBackupCapacity)

	// Case: empty ring.
	var _, err = ring.Recover()
	require.Equal(t, ErrUnrecoverable, err)

	// Case: every entry damaged.
	require.NoError(t, ring.Snapshot(buildDoc(1, 10)))
	var entries, _ = ring.List()
	entries[0].Checksum = document.Sum{Part1: 1}.String()
	require.NoError(t, ring.put(entries))

	_, err = ring.Recover()
	require.Equal(t, ErrUnrecoverable, err)
}

func TestMonitorDetectsCorruption(t *testing.T) {
	var kv = newTestKV(t)
	var p, _ = NewPersistence(kv, codecs.None)
	var ring = NewBackupRing(kv, DefaultBackupCapacity)

	var reports []Report
	var m = NewMonitor(p, ring, func(r Report) { reports = append(reports, r) })

	// Clean state: no report.
	require.NoError(t, p.Write(buildDoc(1, 10)))
	require.NoError(t, ring.Snapshot(buildDoc(1, 10)))
	var r = m.Check()
	require.False(t, r.Corrupt())
	require.True(t, r.Recoverable)
	require.Empty(t, reports)

	// Damage the primary: the scan reports recoverable corruption.
	require.NoError(t, kv.Put(PrimarySlot, []byte("garbage")))
	r = m.Check()
	require.True(t, r.PrimaryCorrupt)
	require.True(t, r.Recoverable)
	require.Len(t, reports, 1)

	// Repeated scans of unchanged backups use the checksum cache and still
	// report the ring recoverable.
	r = m.Check()
	require.True(t, r.Recoverable)
	require.Equal(t, 1, r.BackupsScanned)
	require.Zero(t, r.BackupsCorrupt)
}
