package main

import (
	"github.com/jessevdk/go-flags"

	"go.zomroad.dev/save/cmd/savectl/savectlcmd"
	mbp "go.zomroad.dev/save/mainboilerplate"
)

func main() {
	var parser = flags.NewParser(savectlcmd.BaseCfg, flags.Default)

	parser.LongDescription = `savectl is a tool for inspecting and repairing player save storage.

See --help pages of each sub-command for documentation and usage examples.
Optionally configure savectl with a '` + savectlcmd.IniFilename + `' file in the current working
directory, or with '~/.config/zomroad/` + savectlcmd.IniFilename + `'. Use the 'print-config'
sub-command to inspect the tool's current configuration.
`

	mbp.AddPrintConfigCmd(parser, savectlcmd.IniFilename)

	mbp.Must(savectlcmd.AddCmdInspect(parser.Command), "could not add inspect subcommand")
	mbp.Must(savectlcmd.AddCmdBackupsList(parser.Command), "could not add backups subcommand")
	mbp.Must(savectlcmd.AddCmdVerify(parser.Command), "could not add verify subcommand")
	mbp.Must(savectlcmd.AddCmdRecover(parser.Command), "could not add recover subcommand")
	mbp.Must(savectlcmd.AddCmdExport(parser.Command), "could not add export subcommand")
	mbp.Must(savectlcmd.AddCmdImport(parser.Command), "could not add import subcommand")
	mbp.Must(savectlcmd.AddCmdReset(parser.Command), "could not add reset subcommand")

	mbp.MustParseConfig(parser, savectlcmd.IniFilename)
}
