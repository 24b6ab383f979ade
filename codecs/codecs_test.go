package codecs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrips(t *testing.T) {
	var payload = []byte(strings.Repeat(`{"player":{"currency":500}}`, 64))

	for _, codec := range []Codec{None, Gzip, Snappy, Zstandard} {
		var compressed, err = Compress(payload, codec)
		require.NoError(t, err, codec)

		out, err := Decompress(compressed, codec)
		require.NoError(t, err, codec)
		require.True(t, bytes.Equal(payload, out), codec)
	}
}

func TestCodecTokens(t *testing.T) {
	for _, codec := range []Codec{None, Gzip, Snappy, Zstandard} {
		var parsed, err = Parse(codec.String())
		require.NoError(t, err)
		require.Equal(t, codec, parsed)
		require.NoError(t, codec.Validate())
	}

	// The empty token maps to None, matching an absent envelope field.
	var c, err = Parse("")
	require.NoError(t, err)
	require.Equal(t, None, c)

	_, err = Parse("lzma")
	require.Error(t, err)
	require.Error(t, Codec(42).Validate())
}

func TestNoneIsPassThrough(t *testing.T) {
	var payload = []byte("inspect me")
	var compressed, err = Compress(payload, None)
	require.NoError(t, err)
	require.Equal(t, payload, compressed)
}
