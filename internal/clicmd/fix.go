package clicmd

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/hkconfig"
)

// FixCommand runs the `fix` hook, applying fixers and staging their output
// (spec §6.2, §4.8).
type FixCommand struct{}

// FixOptions is `hk fix`'s flag set: CommonOptions plus trailing paths.
type FixOptions struct {
	CommonOptions
	Positional struct {
		Paths []string `positional-arg-name:"path"`
	} `positional-args:"true"`
}

func FixCommandFactory() (cli.Command, error) { return &FixCommand{}, nil }

func (c *FixCommand) Help() string {
	var opts FixOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [path ...]"
	return "usage: hk fix " + parser.Usage + "\n\nRun the fix hook, applying fixers and staging their output."
}

func (c *FixCommand) Synopsis() string { return "Run the fix hook" }

func (c *FixCommand) Run(args []string) int {
	var opts FixOptions
	remaining, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	paths := append(opts.Positional.Paths, remaining...)
	return runHook("fix", hkconfig.RunFix, opts.CommonOptions, paths)
}
