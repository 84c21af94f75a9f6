package clicmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/checkutil"
	"github.com/jdx/hk/internal/gitrepo"
)

// UtilCommand runs one of the built-in utilities (spec §6.5) directly,
// independent of any hook/step configuration.
type UtilCommand struct{}

// UtilOptions is `hk util`'s flag set.
type UtilOptions struct {
	Fix            bool `long:"fix"  description:"rewrite files in place"`
	Diff           bool `long:"diff" description:"print a unified diff instead of rewriting"`
	AssumeInMerge  bool `long:"assume-in-merge" description:"treat the repo as mid-merge for check-merge-conflict"`
	Positional struct {
		Utility string   `positional-arg-name:"utility"`
		Paths   []string `positional-arg-name:"path"`
	} `positional-args:"true" required:"1"`
}

func UtilCommandFactory() (cli.Command, error) { return &UtilCommand{}, nil }

func (c *UtilCommand) Help() string {
	var opts UtilOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[--fix|--diff] <utility> [path ...]"
	return "usage: hk util " + parser.Usage + "\n\nAvailable utilities: " + strings.Join(checkutil.Names, ", ")
}

func (c *UtilCommand) Synopsis() string { return "Run a built-in utility directly" }

func (c *UtilCommand) Run(args []string) int {
	var opts UtilOptions
	_, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	mode := checkutil.ModeCheck
	switch {
	case opts.Fix && opts.Diff:
		fmt.Fprintln(os.Stderr, "hk: --fix and --diff are mutually exclusive")
		return 2
	case opts.Fix:
		mode = checkutil.ModeFix
	case opts.Diff:
		mode = checkutil.ModeDiff
	}

	root, err := gitrepo.FindRoot("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	results, err := checkutil.Run(opts.Positional.Utility, opts.Positional.Paths, mode, root, opts.AssumeInMerge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	failed := false
	for _, r := range results {
		if !r.Flagged {
			continue
		}
		failed = true
		switch {
		case mode == checkutil.ModeDiff && r.Diff != "":
			fmt.Print(r.Diff)
		case r.Reason != "":
			fmt.Printf("%s: %s\n", r.Path, r.Reason)
		default:
			fmt.Println(r.Path)
		}
	}
	if failed && mode != checkutil.ModeFix {
		return 1
	}
	return 0
}
