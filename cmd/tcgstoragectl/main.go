package main

import (
	"github.com/alecthomas/kong"

	"github.com/sedtools/tcgsed/pkg/cmdutil"
)

const (
	programName = "tcgstoragectl"
	programDesc = "Discover and manage TCG Storage (Opal/Enterprise) self-encrypting drives"
)

func main() {
	// Parse kong flags and sub-commands
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.NamedMapper("accessiblefile", cmdutil.AccessibleFileMapper()),
		kong.Resolvers(cmdutil.ResolvePassword(false)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	// Run the command
	err := ctx.Run(&context{})
	ctx.FatalIfErrorf(err)
}
