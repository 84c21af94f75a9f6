package clicmd

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
)

// RunHookCommand runs an arbitrary named hook (spec §6.2: "hk run <hook>"),
// not just the built-in check/fix pair.
type RunHookCommand struct{}

// RunHookOptions is `hk run`'s flag set: CommonOptions, the hook name, and
// trailing paths.
type RunHookOptions struct {
	CommonOptions
	Positional struct {
		Hook  string   `positional-arg-name:"hook"`
		Paths []string `positional-arg-name:"path"`
	} `positional-args:"true" required:"1"`
}

func RunHookCommandFactory() (cli.Command, error) { return &RunHookCommand{}, nil }

func (c *RunHookCommand) Help() string {
	var opts RunHookOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <hook> [path ...]"
	return "usage: hk run " + parser.Usage + "\n\nRun the named hook."
}

func (c *RunHookCommand) Synopsis() string { return "Run a named hook" }

func (c *RunHookCommand) Run(args []string) int {
	var opts RunHookOptions
	_, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	if opts.Positional.Hook == "" {
		fmt.Fprintln(os.Stderr, "hk: run requires a hook name")
		return 2
	}
	return runHook(opts.Positional.Hook, "", opts.CommonOptions, opts.Positional.Paths)
}
