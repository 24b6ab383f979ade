// Package codecs provides the pluggable compression stage of the persistence
// pipeline. Save payloads are small but written often; the default is SNAPPY,
// with GZIP and ZSTANDARD available where slots are quota-constrained, and
// NONE as a pass-through for inspecting a persisted slot by eye.
package codecs

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
)

// Codec enumerates the supported compression codecs of a persisted slot.
type Codec int

const (
	// None stores the payload uncompressed.
	None Codec = iota
	// Gzip compresses with RFC 1952 gzip.
	Gzip
	// Snappy compresses with google/snappy framing.
	Snappy
	// Zstandard compresses with zstd. It must be enabled at compile time
	// (it is, unless built with the nozstd tag).
	Zstandard
)

// String returns the lowercase token of the Codec, as it appears in persisted
// envelopes and configuration.
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Snappy:
		return "snappy"
	case Zstandard:
		return "zstandard"
	default:
		return fmt.Sprintf("invalid-codec-%d", int(c))
	}
}

// Parse maps a codec token back to its Codec.
func Parse(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "snappy":
		return Snappy, nil
	case "zstandard", "zstd":
		return Zstandard, nil
	default:
		return None, fmt.Errorf("unsupported codec %q", s)
	}
}

// Validate returns an error if the Codec is not a defined value.
func (c Codec) Validate() error {
	switch c {
	case None, Gzip, Snappy, Zstandard:
		return nil
	default:
		return fmt.Errorf("unsupported codec %s", c)
	}
}

// Decompressor is a ReadCloser where Close closes and releases Decompressor
// state, but does not Close or affect the underlying Reader.
type Decompressor io.ReadCloser

// Compressor is a WriteCloser where Close closes and releases Compressor
// state, potentially flushing final content to the underlying Writer,
// but does not Close or otherwise affect the underlying Writer.
type Compressor io.WriteCloser

// NewCodecReader returns a Decompressor of the Reader encoded with Codec.
func NewCodecReader(r io.Reader, codec Codec) (Decompressor, error) {
	switch codec {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case Zstandard:
		return zstdNewReader(r)
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

// NewCodecWriter returns a Compressor wrapping the Writer encoding with Codec.
func NewCodecWriter(w io.Writer, codec Codec) (Compressor, error) {
	switch codec {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Zstandard:
		return zstdNewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

// Compress runs |b| through the Codec in one shot.
func Compress(b []byte, codec Codec) ([]byte, error) {
	var buf bytes.Buffer
	var cw, err = NewCodecWriter(&buf, codec)
	if err != nil {
		return nil, err
	}
	if _, err = cw.Write(b); err != nil {
		return nil, err
	} else if err = cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inverts Compress.
func Decompress(b []byte, codec Codec) ([]byte, error) {
	var cr, err = NewCodecReader(bytes.NewReader(b), codec)
	if err != nil {
		return nil, err
	}
	defer cr.Close()
	return io.ReadAll(cr)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var (
	zstdNewReader = func(io.Reader) (io.ReadCloser, error) {
		return nil, fmt.Errorf("ZSTANDARD was not enabled at compile time")
	}
	zstdNewWriter = func(io.Writer) (io.WriteCloser, error) {
		return nil, fmt.Errorf("ZSTANDARD was not enabled at compile time")
	}
)
