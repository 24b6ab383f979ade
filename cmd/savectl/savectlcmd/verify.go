package savectlcmd

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/store"
)

type cmdVerify struct{}

// AddCmdVerify registers the verify sub-command.
func AddCmdVerify(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("verify", "Verify save integrity", `
Verify checks the primary slot and every backup generation, reporting any
corruption found. The exit status is non-zero if the store is corrupt and
no intact backup generation remains.
`, &cmdVerify{})
	return err
}

func (cmd *cmdVerify) Execute([]string) error {
	startup()

	var _, p, ring, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var report = store.NewMonitor(p, ring, nil).Check()

	var fields = log.Fields{
		"backupsScanned": report.BackupsScanned,
		"backupsCorrupt": report.BackupsCorrupt,
	}
	if report.PrimaryErr != nil {
		fields["primaryErr"] = report.PrimaryErr
	}

	switch {
	case !report.Corrupt():
		log.WithFields(fields).Info("save storage verifies clean")
	case report.Recoverable:
		log.WithFields(fields).Warn("save storage is corrupt but recoverable")
	default:
		log.WithFields(fields).Error("save storage is corrupt")
		return errors.New("no intact generation remains")
	}
	return nil
}
