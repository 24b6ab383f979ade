package savectlcmd

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	mbp "go.zomroad.dev/save/mainboilerplate"
	"go.zomroad.dev/save/store"
)

type cmdExport struct {
	Output      string `long:"output" short:"f" default:"-" description:"Output path. Use '-' for stdout"`
	GameVersion string `long:"game-version" default:"" description:"Game version to record in the envelope"`
}

// AddCmdExport registers the export sub-command.
func AddCmdExport(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("export", "Export the save to a portable file", `
Export wraps the primary save in a portable, checksummed envelope which
`+"`savectl import`"+` (or another install of the game) can import.
`, &cmdExport{})
	return err
}

func (cmd *cmdExport) Execute([]string) error {
	startup()

	var _, p, _, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var doc, ok = p.Read()
	if !ok {
		return errors.New("primary slot is absent or unreadable")
	}

	var gameVersion = cmd.GameVersion
	if gameVersion == "" {
		gameVersion = mbp.Version
	}
	var blob []byte
	if blob, err = store.Export(doc, gameVersion); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if cmd.Output != "-" {
		var f *os.File
		if f, err = os.Create(cmd.Output); err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if _, err = out.Write(blob); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"savedAt": doc.SavedAt,
		"bytes":   len(blob),
	}).Info("exported save")
	return nil
}
