// Package savectlcmd implements the savectl sub-commands: offline
// inspection, verification, recovery, and portable export/import of a
// player's save storage.
package savectlcmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"go.zomroad.dev/save/codecs"
	mbp "go.zomroad.dev/save/mainboilerplate"
	"go.zomroad.dev/save/store"
)

const IniFilename = "savectl.ini"

// BaseCfg is the top-level savectl configuration, shared by all
// sub-commands.
var BaseCfg = new(struct {
	Log   mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Store StoreConfig   `group:"Storage" namespace:"store" env-namespace:"STORE"`
})

// StoreConfig locates and parameterizes the save storage to operate on.
type StoreConfig struct {
	Dir    string `long:"dir" env:"DIR" default:"." description:"Directory of a file-backed save store"`
	SQLite string `long:"sqlite" env:"SQLITE" description:"Path of a SQLite-backed save store (overrides --store.dir)"`
	Codec  string `long:"codec" env:"CODEC" default:"snappy" choice:"none" choice:"gzip" choice:"snappy" choice:"zstandard" description:"Compression codec of the primary slot"`
	Quota  int64  `long:"quota" env:"QUOTA" default:"0" description:"Storage quota in bytes (0 for unlimited)"`
}

func startup() {
	mbp.InitLog(BaseCfg.Log)
}

// openStore opens the configured KV and layers Persistence and the
// BackupRing over it. The returned closer is non-nil for stores holding an
// open handle.
func openStore() (store.KV, *store.Persistence, *store.BackupRing, io.Closer, error) {
	var kv store.KV
	var closer io.Closer

	if BaseCfg.Store.SQLite != "" {
		var skv, err = store.NewSQLiteKV(BaseCfg.Store.SQLite, BaseCfg.Store.Quota)
		if err != nil {
			return nil, nil, nil, nil, errors.WithMessage(err, "opening sqlite store")
		}
		kv, closer = skv, skv
	} else {
		var fkv, err = store.NewFileKV(afero.NewOsFs(), BaseCfg.Store.Dir, BaseCfg.Store.Quota)
		if err != nil {
			return nil, nil, nil, nil, errors.WithMessage(err, "opening file store")
		}
		kv = fkv
	}

	var codec, err = codecs.Parse(BaseCfg.Store.Codec)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	var p *store.Persistence
	if p, err = store.NewPersistence(kv, codec); err != nil {
		return nil, nil, nil, nil, err
	}
	return kv, p, store.NewBackupRing(kv, store.DefaultBackupCapacity), closer, nil
}

func closeStore(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
