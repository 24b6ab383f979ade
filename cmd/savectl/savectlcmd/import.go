package savectlcmd

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/store"
)

type cmdImport struct {
	Input string `long:"input" short:"f" default:"-" description:"Input path. Use '-' for stdin"`
}

// AddCmdImport registers the import sub-command.
func AddCmdImport(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("import", "Import a portable save file", `
Import verifies an exported envelope's format version and checksum, then
writes its document over the primary slot. The replaced primary (if any) is
snapshotted to the backup ring first.
`, &cmdImport{})
	return err
}

func (cmd *cmdImport) Execute([]string) error {
	startup()

	var in io.Reader = os.Stdin
	if cmd.Input != "-" {
		var f, err = os.Open(cmd.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	var blob, err = io.ReadAll(in)
	if err != nil {
		return err
	}

	var doc document.Document
	if doc, err = store.Import(blob); err != nil {
		return err
	}

	var _, p, ring, closer, openErr = openStore()
	if openErr != nil {
		return openErr
	}
	defer closeStore(closer)

	if prev, ok := p.Read(); ok {
		if err = ring.Snapshot(prev); err != nil {
			log.WithField("err", err).Warn("failed to snapshot replaced primary")
		}
	}
	if err = p.Write(doc); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"savedAt":  doc.SavedAt,
		"checksum": document.SumOf(doc),
	}).Info("imported save")
	return nil
}
