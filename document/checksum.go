package document

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Sum is a SHA-1 checksum of a Document's canonical JSON encoding, broken
// into fixed-size words so that Sum is directly comparable and map-keyable.
type Sum struct {
	Part1 uint64 `json:"p1"`
	Part2 uint64 `json:"p2"`
	Part3 uint32 `json:"p3"`
}

// SumOf computes the checksum of the Document. The checksum covers every
// field except SavedWall, so that re-stamping the wall clock on an otherwise
// identical document does not change its identity.
func SumOf(d Document) Sum {
	var clone = d
	clone.SavedWall = zeroTime

	// encoding/json sorts map keys, making the encoding canonical.
	var b, err = json.Marshal(clone)
	if err != nil {
		panic(err.Error()) // Document contains no unmarshalable types.
	}
	var digest = sha1.Sum(b)
	return SumFromDigest(digest[:])
}

// SumOfBytes checksums a raw serialized blob, as persisted envelopes do.
func SumOfBytes(b []byte) Sum {
	var digest = sha1.Sum(b)
	return SumFromDigest(digest[:])
}

// SumFromDigest converts a SHA-1 digest into a Sum.
// It panics if the digest is malformed.
func SumFromDigest(r []byte) Sum {
	if len(r) != sha1.Size {
		panic("invalid digest length")
	}
	return Sum{
		Part1: binary.BigEndian.Uint64(r[0:8]),
		Part2: binary.BigEndian.Uint64(r[8:16]),
		Part3: binary.BigEndian.Uint32(r[16:20]),
	}
}

// ToDigest converts the Sum back to a flat, fixed-size array.
func (s Sum) ToDigest() (r [sha1.Size]byte) {
	binary.BigEndian.PutUint64(r[0:8], s.Part1)
	binary.BigEndian.PutUint64(r[8:16], s.Part2)
	binary.BigEndian.PutUint32(r[16:20], s.Part3)
	return r
}

// IsZero returns whether the Sum is zero-valued.
func (s Sum) IsZero() bool { return s == Sum{} }

// Less provides a total order over Sums, used as the deterministic tie-break
// when two documents carry equal logical timestamps but differing content.
func (s Sum) Less(o Sum) bool {
	if s.Part1 != o.Part1 {
		return s.Part1 < o.Part1
	}
	if s.Part2 != o.Part2 {
		return s.Part2 < o.Part2
	}
	return s.Part3 < o.Part3
}

// String returns the hex encoding of the Sum.
func (s Sum) String() string {
	var d = s.ToDigest()
	return hex.EncodeToString(d[:])
}

// ParseSum parses the hex encoding produced by String.
func ParseSum(str string) (Sum, error) {
	var b, err = hex.DecodeString(str)
	if err != nil {
		return Sum{}, err
	} else if len(b) != sha1.Size {
		return Sum{}, NewValidationError("invalid checksum length: %d", len(b))
	}
	return SumFromDigest(b), nil
}

var zeroTime time.Time
