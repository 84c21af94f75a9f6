// Package main provides the hk command-line tool: a git hook manager and
// runner driven by a declarative hk.yaml.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/clicmd"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused
	date    = "unknown" //nolint:unused
)

func main() {
	c := cli.NewCLI("hk", version)
	c.Args = os.Args[1:]
	c.HelpFunc = helpFunc
	c.Commands = map[string]cli.CommandFactory{
		"check":     clicmd.CheckCommandFactory,
		"fix":       clicmd.FixCommandFactory,
		"run":       clicmd.RunHookCommandFactory,
		"init":      clicmd.InitCommandFactory,
		"install":   clicmd.InstallCommandFactory,
		"uninstall": clicmd.UninstallCommandFactory,
		"validate":  clicmd.ValidateCommandFactory,
		"test":      clicmd.TestCommandFactory,
		"config":    clicmd.ConfigCommandFactory,
		"util":      clicmd.UtilCommandFactory,
		"migrate":   clicmd.MigrateCommandFactory,
	}

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitStatus)
}

func helpFunc(cmdFactories map[string]cli.CommandFactory) string {
	var names []string
	for name := range cmdFactories {
		names = append(names, name)
	}
	sort.Strings(names)

	usage := "usage: hk [-h] [--version]\n          {" + strings.Join(names, ",") + "}\n          ...\n"
	helpText := usage + "\nRun and manage git hooks driven by hk.yaml.\n\npositional arguments:\n  {" + strings.Join(names, ",") + "}\n"
	for _, name := range names {
		c, err := cmdFactories[name]()
		if err != nil {
			continue
		}
		helpText += fmt.Sprintf("    %-10s %s\n", name, c.Synopsis())
	}
	return helpText
}
