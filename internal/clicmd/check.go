package clicmd

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/hkconfig"
)

// CheckCommand runs the `check` hook without mutating files (spec §6.2).
type CheckCommand struct{}

// CheckOptions is `hk check`'s flag set: CommonOptions plus trailing paths.
type CheckOptions struct {
	CommonOptions
	Positional struct {
		Paths []string `positional-arg-name:"path"`
	} `positional-args:"true"`
}

func CheckCommandFactory() (cli.Command, error) { return &CheckCommand{}, nil }

func (c *CheckCommand) Help() string {
	var opts CheckOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [path ...]"
	return "usage: hk check " + parser.Usage + "\n\nRun the check hook without modifying files."
}

func (c *CheckCommand) Synopsis() string { return "Run the check hook" }

func (c *CheckCommand) Run(args []string) int {
	var opts CheckOptions
	remaining, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	paths := append(opts.Positional.Paths, remaining...)
	return runHook("check", hkconfig.RunCheck, opts.CommonOptions, paths)
}
