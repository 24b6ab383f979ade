package store

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"go.zomroad.dev/save/codecs"
	"go.zomroad.dev/save/document"
)

func newTestKV(t *testing.T) KV {
	var kv, err = NewFileKV(afero.NewMemMapFs(), "/saves", 0)
	require.NoError(t, err)
	return kv
}

func TestPersistenceRoundTrip(t *testing.T) {
	for _, codec := range []codecs.Codec{codecs.None, codecs.Gzip, codecs.Snappy} {
		var p, err = NewPersistence(newTestKV(t), codec)
		require.NoError(t, err)

		var doc = document.New()
		doc.SavedAt = 100
		doc.Player.Currency = 500
		doc.Levels.BestScores["highway-01"] = 1234

		require.NoError(t, p.Write(doc))

		var got, ok = p.Read()
		require.True(t, ok, codec)
		require.NoError(t, got.Validate())
		require.Equal(t, doc.SavedAt, got.SavedAt)
		require.Equal(t, doc.Player, got.Player)
		require.Equal(t, doc.Levels, got.Levels)
		require.Equal(t, document.SumOf(doc), document.SumOf(got))
	}
}

func TestPersistenceWriteIsIdempotent(t *testing.T) {
	var p, _ = NewPersistence(newTestKV(t), codecs.Snappy)
	var doc = document.New()
	doc.SavedAt = 7

	require.NoError(t, p.Write(doc))
	var first, ok = p.Checksum()
	require.True(t, ok)

	// A second write of the unchanged document persists an identical checksum.
	require.NoError(t, p.Write(doc))
	second, ok := p.Checksum()
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestPersistenceSavedAtRegression(t *testing.T) {
	var p, _ = NewPersistence(newTestKV(t), codecs.None)
	var doc = document.New()

	doc.SavedAt = 10
	require.NoError(t, p.Write(doc))
	doc.SavedAt = 5
	require.Regexp(t, "savedAt regression", p.Write(doc))
}

func TestPersistenceReadFailureModes(t *testing.T) {
	var kv = newTestKV(t)
	var p, _ = NewPersistence(kv, codecs.None)

	// Case: absent slot reads as absent, and verifies clean.
	var _, ok = p.Read()
	require.False(t, ok)
	require.NoError(t, p.Verify())

	// Case: unparsable slot reads as absent rather than raising.
	require.NoError(t, kv.Put(PrimarySlot, []byte("not json")))
	_, ok = p.Read()
	require.False(t, ok)
	require.Error(t, p.Verify())

	// Case: checksum mismatch is typed as ErrChecksumMismatch.
	var doc = document.New()
	doc.SavedAt = 3
	require.NoError(t, p.Write(doc))

	blob, _, _ := kv.Get(PrimarySlot)
	var env slotEnvelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.Checksum = document.Sum{Part1: 0xdead}.String()
	blob, _ = json.Marshal(env)
	require.NoError(t, kv.Put(PrimarySlot, blob))

	_, ok = p.Read()
	require.False(t, ok)
	require.Equal(t, ErrChecksumMismatch, errors.Cause(p.Verify()))

	// Case: quota failure surfaces as the typed error.
	quotaKV, err := NewFileKV(afero.NewMemMapFs(), "/saves", 4)
	require.NoError(t, err)
	p, _ = NewPersistence(quotaKV, codecs.None)
	require.Equal(t, ErrQuotaExceeded, p.Write(document.New()))
}

func TestExportImportRoundTrip(t *testing.T) {
	var doc = document.New()
	doc.SavedAt = 42
	doc.Statistics.TotalZombiesKilled = 99

	var blob, err = Export(doc, "1.8.0")
	require.NoError(t, err)

	var got document.Document
	got, err = Import(blob)
	require.NoError(t, err)
	require.Equal(t, document.SumOf(doc), document.SumOf(got))

	// Case: tampered document is rejected by its checksum.
	var env ExportEnvelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.Document.Player.Currency = 1 << 30
	tampered, _ := json.Marshal(env)
	_, err = Import(tampered)
	require.Equal(t, ErrChecksumMismatch, errors.Cause(err))

	// Case: unknown format version is rejected.
	env.FormatVersion = 99
	tampered, _ = json.Marshal(env)
	_, err = Import(tampered)
	require.Regexp(t, "unsupported format version", err)
}
