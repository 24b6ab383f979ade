package savectlcmd

import (
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
)

type cmdRecover struct{}

// AddCmdRecover registers the recover sub-command.
func AddCmdRecover(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("recover", "Restore the newest intact backup", `
Recover scans the backup ring newest-first for the first generation whose
document verifies, and writes it over the primary slot.
`, &cmdRecover{})
	return err
}

func (cmd *cmdRecover) Execute([]string) error {
	startup()

	var _, p, ring, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var doc, recoverErr = ring.Recover()
	if recoverErr != nil {
		return recoverErr
	}
	if err = p.Write(doc); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"savedAt":  doc.SavedAt,
		"checksum": document.SumOf(doc),
	}).Info("recovered primary from backup")
	return nil
}
