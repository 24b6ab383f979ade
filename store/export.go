package store

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"go.zomroad.dev/save/document"
)

// ExportFormatVersion is the current export envelope format.
const ExportFormatVersion = 1

// ExportEnvelope is the portable save format: a player can export their
// progress to a file and import it on another install.
type ExportEnvelope struct {
	FormatVersion int               `json:"formatVersion"`
	GameVersion   string            `json:"gameVersion"`
	ExportedAt    time.Time         `json:"exportedAt"`
	Document      document.Document `json:"document"`
	Checksum      string            `json:"checksum"`
}

// Export wraps |doc| in an ExportEnvelope and returns its JSON encoding.
func Export(doc document.Document, gameVersion string) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, errors.WithMessage(err, "validating document")
	}
	return json.MarshalIndent(ExportEnvelope{
		FormatVersion: ExportFormatVersion,
		GameVersion:   gameVersion,
		ExportedAt:    time.Now().UTC(),
		Document:      doc,
		Checksum:      document.SumOf(doc).String(),
	}, "", "  ")
}

// Import decodes an exported envelope, validating its format version and
// checksum before accepting the document.
func Import(blob []byte) (document.Document, error) {
	var env ExportEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return document.Document{}, errors.WithMessage(err, "decoding envelope")
	}
	if env.FormatVersion != ExportFormatVersion {
		return document.Document{}, errors.Errorf(
			"unsupported format version (%d; expected %d)", env.FormatVersion, ExportFormatVersion)
	}

	var sum, err = document.ParseSum(env.Checksum)
	if err != nil {
		return document.Document{}, errors.WithMessage(err, "parsing checksum")
	} else if actual := document.SumOf(env.Document); actual != sum {
		return document.Document{}, errors.WithMessagef(ErrChecksumMismatch,
			"export envelope (expected %s, computed %s)", sum, actual)
	}

	if err = env.Document.Validate(); err != nil {
		return document.Document{}, errors.WithMessage(err, "validating document")
	}
	return env.Document, nil
}
