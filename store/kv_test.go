package store

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFileKVRoundTrip(t *testing.T) {
	var kv, err = NewFileKV(afero.NewMemMapFs(), "/saves", 0)
	require.NoError(t, err)

	// Case: absent key.
	_, ok, err := kv.Get("primary")
	require.NoError(t, err)
	require.False(t, ok)

	// Case: put, get, replace.
	require.NoError(t, kv.Put("primary", []byte("one")))
	b, ok, err := kv.Get("primary")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("one"), b)

	require.NoError(t, kv.Put("primary", []byte("two")))
	b, _, _ = kv.Get("primary")
	require.Equal(t, []byte("two"), b)

	// Case: delete, including an absent key.
	require.NoError(t, kv.Delete("primary"))
	require.NoError(t, kv.Delete("primary"))
	_, ok, _ = kv.Get("primary")
	require.False(t, ok)
}

func TestFileKVQuota(t *testing.T) {
	var kv, err = NewFileKV(afero.NewMemMapFs(), "/saves", 10)
	require.NoError(t, err)

	require.NoError(t, kv.Put("a", []byte("12345")))
	require.NoError(t, kv.Put("b", []byte("12345")))

	// A third key exceeds quota, and is surfaced as the typed error.
	require.Equal(t, ErrQuotaExceeded, kv.Put("c", []byte("x")))

	// Replacing an existing key doesn't double-count its current size.
	require.NoError(t, kv.Put("a", []byte("54321")))

	// But growing it past quota does fail.
	require.Equal(t, ErrQuotaExceeded, kv.Put("a", []byte("123456789")))
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	var kv, err = NewSQLiteKV(filepath.Join(t.TempDir(), "save.db"), 0)
	require.NoError(t, err)
	defer kv.Close()

	_, ok, err := kv.Get("primary")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Put("primary", []byte("one")))
	require.NoError(t, kv.Put("primary", []byte("two")))

	b, ok, err := kv.Get("primary")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), b)

	require.NoError(t, kv.Delete("primary"))
	_, ok, _ = kv.Get("primary")
	require.False(t, ok)
}

func TestSQLiteKVQuota(t *testing.T) {
	var kv, err = NewSQLiteKV(filepath.Join(t.TempDir(), "save.db"), 8)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Put("a", []byte("1234")))
	require.Equal(t, ErrQuotaExceeded, kv.Put("b", []byte("123456")))
	require.NoError(t, kv.Put("b", []byte("1234")))
}
