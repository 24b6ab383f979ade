package savectlcmd

import (
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
)

type cmdReset struct {
	KeepBackups bool `long:"keep-backups" description:"Preserve the backup ring"`
}

// AddCmdReset registers the reset sub-command.
func AddCmdReset(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("reset", "Reset the save to schema defaults", `
Reset replaces the primary save with a fresh default document and, unless
--keep-backups is set, discards the backup ring. The current primary (if
readable) is snapshotted first so an accidental reset remains recoverable
with --keep-backups.
`, &cmdReset{})
	return err
}

func (cmd *cmdReset) Execute([]string) error {
	startup()

	var _, p, ring, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var doc = document.New()
	if prev, ok := p.Read(); ok {
		if cmd.KeepBackups {
			if err = ring.Snapshot(prev); err != nil {
				log.WithField("err", err).Warn("failed to snapshot replaced primary")
			}
		}
		if prev.SavedAt >= doc.SavedAt {
			doc.SavedAt = prev.SavedAt + 1
		}
	}
	if !cmd.KeepBackups {
		if err = ring.Reset(); err != nil {
			return err
		}
	}
	if err = p.Write(doc); err != nil {
		return err
	}

	log.WithField("savedAt", doc.SavedAt).Info("reset save to defaults")
	return nil
}
