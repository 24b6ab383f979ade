package store

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrQuotaExceeded is returned by KV.Put when a write would exceed the
// store's byte quota. It is tolerated by callers: the in-memory document
// remains authoritative and the write is retried by a later flush.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is the durable key-value capability which persistence and backups are
// built upon. Implementations have bounded capacity and surface quota
// exhaustion as ErrQuotaExceeded rather than failing destructively.
type KV interface {
	// Put stores |value| under |key|, replacing any prior value.
	Put(key string, value []byte) error
	// Get returns the value under |key|, or ok=false if the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Delete removes |key|. Deleting an absent key is not an error.
	Delete(key string) error
}

// FileKV is a KV backed by a filesystem directory, one file per key.
// Writes are staged to a temporary file and renamed into place, so a crash
// mid-write never clobbers the prior value of a key.
type FileKV struct {
	fs    afero.Fs
	root  string
	quota int64
}

// NewFileKV returns a FileKV rooted at |root| of |fs|, with a total byte
// |quota| across all keys (<= 0 means unbounded).
func NewFileKV(fs afero.Fs, root string, quota int64) (*FileKV, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, errors.WithMessage(err, "creating store root")
	}
	return &FileKV{fs: fs, root: root, quota: quota}, nil
}

// Put implements KV.
func (kv *FileKV) Put(key string, value []byte) error {
	if kv.quota > 0 {
		var used, err = kv.usage(key)
		if err != nil {
			return errors.WithMessage(err, "sizing store")
		}
		if used+int64(len(value)) > kv.quota {
			log.WithFields(log.Fields{
				"key":   key,
				"size":  humanize.Bytes(uint64(len(value))),
				"quota": humanize.Bytes(uint64(kv.quota)),
			}).Warn("put would exceed storage quota")
			return ErrQuotaExceeded
		}
	}

	var path = kv.path(key)
	var tmp = path + ".tmp"

	if err := afero.WriteFile(kv.fs, tmp, value, 0o644); err != nil {
		return errors.WithMessage(err, "writing staged value")
	} else if err = kv.fs.Rename(tmp, path); err != nil {
		return errors.WithMessage(err, "renaming staged value")
	}
	return nil
}

// Get implements KV.
func (kv *FileKV) Get(key string) ([]byte, bool, error) {
	var b, err = afero.ReadFile(kv.fs, kv.path(key))
	if os.IsNotExist(errors.Cause(err)) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.WithMessage(err, "reading value")
	}
	return b, true, nil
}

// Delete implements KV.
func (kv *FileKV) Delete(key string) error {
	var err = kv.fs.Remove(kv.path(key))
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return errors.WithMessage(err, "removing value")
	}
	return nil
}

func (kv *FileKV) path(key string) string {
	return filepath.Join(kv.root, key)
}

// usage sums the sizes of all current keys except |exclude|, whose value is
// about to be replaced.
func (kv *FileKV) usage(exclude string) (int64, error) {
	var infos, err = afero.ReadDir(kv.fs, kv.root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, fi := range infos {
		if fi.IsDir() || fi.Name() == exclude {
			continue
		}
		total += fi.Size()
	}
	return total, nil
}
