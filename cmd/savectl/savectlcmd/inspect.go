package savectlcmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"go.zomroad.dev/save/document"
)

type cmdInspect struct {
	Format   string `long:"format" short:"o" choice:"table" choice:"json" default:"table" description:"Output format"`
	Repaired bool   `long:"repaired" description:"Repair a validation-failed document before display"`
}

// AddCmdInspect registers the inspect sub-command.
func AddCmdInspect(cmd *flags.Command) error {
	var _, err = cmd.AddCommand("inspect", "Inspect the primary save", `
Inspect decodes and verifies the primary save slot and prints a summary of
the player's progression. With --repaired, a document which decodes and
checksums correctly but fails validation is repaired before display (the
stored copy is not modified).
`, &cmdInspect{})
	return err
}

func (cmd *cmdInspect) Execute([]string) error {
	startup()

	var _, p, _, closer, err = openStore()
	if err != nil {
		return err
	}
	defer closeStore(closer)

	var doc document.Document
	var ok bool
	if cmd.Repaired {
		doc, _, ok = p.ReadRepaired()
	} else {
		doc, ok = p.Read()
	}
	if !ok {
		return errors.New("primary slot is absent or unreadable (try `savectl recover`)")
	}

	if cmd.Format == "json" {
		var enc = json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	var table = tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Field", "Value"})

	for _, row := range [][]string{
		{"Schema", strconv.Itoa(doc.SchemaVersion)},
		{"Saved At", strconv.FormatInt(doc.SavedAt, 10)},
		{"Saved", humanize.Time(doc.SavedWall)},
		{"Player", doc.Player.Name},
		{"Currency", humanize.Comma(doc.Player.Currency)},
		{"Level", strconv.Itoa(doc.Player.Level)},
		{"Play Time", (time.Duration(doc.Player.PlayTime) * time.Second).String()},
		{"Vehicles", fmt.Sprintf("%d owned (%s selected)", len(doc.Vehicles.Owned), doc.Vehicles.SelectedID)},
		{"Levels", fmt.Sprintf("%d unlocked, %d completed", len(doc.Levels.Unlocked), len(doc.Levels.Completed))},
		{"Achievements", strconv.Itoa(len(doc.Achievements))},
		{"Total Runs", humanize.Comma(doc.Statistics.TotalRuns)},
		{"Checksum", document.SumOf(doc).String()},
	} {
		table.Append(row)
	}
	table.Render()
	return nil
}
