package store

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/codecs"
	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/metrics"
)

// PrimarySlot is the KV key of the primary persisted document.
const PrimarySlot = "primary"

// ErrChecksumMismatch is reported when a persisted envelope's checksum does
// not match its decoded document: the slot is corrupt.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// slotEnvelope is the wire form of the primary slot: a schema version and
// logical timestamp readable without decompressing, the document checksum,
// and the codec-compressed canonical JSON of the document itself.
type slotEnvelope struct {
	SchemaVersion int    `json:"schemaVersion"`
	SavedAt       int64  `json:"savedAt"`
	Checksum      string `json:"checksum"`
	Codec         string `json:"codec"`
	Body          []byte `json:"body"`
}

// Persistence serializes documents into the primary slot of a KV, and reads
// them back. Write surfaces typed failures (notably ErrQuotaExceeded) which
// callers log and tolerate; Read treats any parse or structural failure as
// "absent" so the caller falls back to backup recovery.
type Persistence struct {
	kv    KV
	codec codecs.Codec

	// lastSavedAt guards the non-decreasing savedAt invariant across
	// persisted generations within this process.
	lastSavedAt int64
}

// NewPersistence returns a Persistence using |codec| for compression.
func NewPersistence(kv KV, codec codecs.Codec) (*Persistence, error) {
	if err := codec.Validate(); err != nil {
		return nil, err
	}
	return &Persistence{kv: kv, codec: codec}, nil
}

// Write persists |doc| to the primary slot.
func (p *Persistence) Write(doc document.Document) error {
	if doc.SavedAt < p.lastSavedAt {
		return errors.Errorf("savedAt regression (%d; last persisted %d)", doc.SavedAt, p.lastSavedAt)
	}

	var body, err = json.Marshal(doc)
	if err != nil {
		return errors.WithMessage(err, "encoding document")
	}
	if body, err = codecs.Compress(body, p.codec); err != nil {
		return errors.WithMessage(err, "compressing document")
	}

	var env = slotEnvelope{
		SchemaVersion: doc.SchemaVersion,
		SavedAt:       doc.SavedAt,
		Checksum:      document.SumOf(doc).String(),
		Codec:         p.codec.String(),
		Body:          body,
	}
	var blob []byte
	if blob, err = json.Marshal(env); err != nil {
		return errors.WithMessage(err, "encoding envelope")
	}

	if err = p.kv.Put(PrimarySlot, blob); err != nil {
		metrics.SaveTotal.WithLabelValues(metrics.Fail).Inc()
		return err
	}
	p.lastSavedAt = doc.SavedAt

	metrics.SaveTotal.WithLabelValues(metrics.Ok).Inc()
	metrics.SaveBytesTotal.Add(float64(len(blob)))
	return nil
}

// Read returns the document of the primary slot, or ok=false if the slot is
// absent or fails to decode, decompress, checksum, or validate. Failures are
// logged, never raised: the caller falls back to backup recovery.
func (p *Persistence) Read() (document.Document, bool) {
	var doc, err = p.readVerify()
	if err != nil {
		log.WithField("err", err).Warn("failed to read primary slot (falling back to backups)")
		return document.Document{}, false
	} else if doc == nil {
		return document.Document{}, false // Absent, nothing logged.
	}
	return *doc, true
}

// ReadRepaired is Read, except that a document which decodes and checksums
// correctly but fails validation is repaired and returned rather than
// treated as absent; |repaired| reports whether that happened, so the
// caller knows the returned document diverges from the stored bytes.
// Checksum and structural failures still read as absent, falling back to
// backup recovery.
func (p *Persistence) ReadRepaired() (doc document.Document, repaired, ok bool) {
	var read, err = p.readVerify()
	if read != nil {
		return *read, false, true
	} else if err == nil {
		return document.Document{}, false, false // Absent.
	}

	var damaged, isInvalid = err.(*invalidDocErr)
	if !isInvalid {
		log.WithField("err", err).Warn("failed to read primary slot (falling back to backups)")
		return document.Document{}, false, false
	}

	log.WithField("err", damaged.cause).Info("repairing primary document")
	metrics.RepairTotal.Inc()
	return document.Repair(damaged.doc), true, true
}

// invalidDocErr marks a structurally sound document which failed validation,
// carrying the document so ReadRepaired can repair it.
type invalidDocErr struct {
	doc   document.Document
	cause error
}

func (e *invalidDocErr) Error() string { return e.cause.Error() }

// Verify checks the primary slot without returning its document: it reports
// nil for a valid slot, an ErrChecksumMismatch-wrapped error for a corrupt
// one, and other descriptive errors for structural failures. An absent slot
// verifies as nil.
func (p *Persistence) Verify() error {
	var _, err = p.readVerify()
	return err
}

// Checksum returns the persisted checksum of the primary slot without
// decompressing its body.
func (p *Persistence) Checksum() (document.Sum, bool) {
	var blob, ok, err = p.kv.Get(PrimarySlot)
	if err != nil || !ok {
		return document.Sum{}, false
	}
	var env slotEnvelope
	if err = json.Unmarshal(blob, &env); err != nil {
		return document.Sum{}, false
	}
	var sum document.Sum
	if sum, err = document.ParseSum(env.Checksum); err != nil {
		return document.Sum{}, false
	}
	return sum, true
}

func (p *Persistence) readVerify() (*document.Document, error) {
	var blob, ok, err = p.kv.Get(PrimarySlot)
	if err != nil {
		return nil, errors.WithMessage(err, "reading primary slot")
	} else if !ok {
		return nil, nil
	}

	var env slotEnvelope
	if err = json.Unmarshal(blob, &env); err != nil {
		return nil, errors.WithMessage(err, "decoding envelope")
	}
	var codec codecs.Codec
	if codec, err = codecs.Parse(env.Codec); err != nil {
		return nil, err
	}
	var body []byte
	if body, err = codecs.Decompress(env.Body, codec); err != nil {
		return nil, errors.WithMessage(err, "decompressing document")
	}

	var doc document.Document
	if err = json.Unmarshal(body, &doc); err != nil {
		return nil, errors.WithMessage(err, "decoding document")
	}

	var sum document.Sum
	if sum, err = document.ParseSum(env.Checksum); err != nil {
		return nil, errors.WithMessage(err, "parsing checksum")
	} else if actual := document.SumOf(doc); actual != sum {
		return nil, errors.WithMessagef(ErrChecksumMismatch,
			"primary slot (expected %s, computed %s)", sum, actual)
	}

	if err = doc.Validate(); err != nil {
		return nil, &invalidDocErr{doc: doc, cause: errors.WithMessage(err, "validating document")}
	}
	return &doc, nil
}
