package savectlcmd

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
)

type cmdBackupsList struct{}

// AddCmdBackupsList registers the backups sub-command.
func AddCmdBackupsList(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("backups", "List backup generations", `
List the generations held by the backup ring, newest first. Generation 0 is
the one `+"`savectl recover`"+` would restore.
`, &cmdBackupsList{})
	return err
}

func (cmd *cmdBackupsList) Execute([]string) error {
	startup()

	var _, _, ring, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var entries, listErr = ring.List()
	if listErr != nil {
		return listErr
	}

	var table = tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"#", "Saved At", "Saved", "Checksum"})

	for i, e := range entries {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatInt(e.SavedAt, 10),
			humanize.Time(e.Document.SavedWall),
			e.Checksum,
		})
	}
	table.Render()
	return nil
}
