package clicmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/cli"
)

// defaultHookNames is installed when the document declares no hooks of
// its own, matching git's standard client-side hook points.
var defaultHookNames = []string{"pre-commit", "pre-push"}

// hookWrapperScript is the executable shim `hk install` places at
// .git/hooks/<name>, forwarding to `hk run <name>` (spec §6.3).
const hookWrapperScript = `#!/bin/sh
exec hk run %s "$@"
`

// InstallCommand installs one wrapper script per configured hook into the
// repository's hook directory (spec §6.3).
type InstallCommand struct{}

type InstallOptions struct {
	Force bool `long:"force" description:"overwrite an existing hook script" short:"f"`
}

func InstallCommandFactory() (cli.Command, error) { return &InstallCommand{}, nil }

func (c *InstallCommand) Help() string {
	return "usage: hk install [--force]\n\nInstall an hk wrapper script for every configured hook."
}

func (c *InstallCommand) Synopsis() string { return "Install hk as the repository's git hooks" }

func (c *InstallCommand) Run(args []string) int {
	var opts InstallOptions
	_, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	app, err := NewApp(func(k string) string { return os.Getenv(k) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	defer app.Close()

	ctx := context.Background()
	if p, err := app.Backend.HooksPathLocal(ctx); err == nil && p != "" {
		fmt.Fprintf(os.Stderr, "warning: core.hooksPath is set to %q locally; hk's installed hooks will be ignored. Run `git config --unset core.hooksPath` to fix.\n", p)
	}
	if p, err := app.Backend.HooksPathGlobal(ctx); err == nil && p != "" {
		fmt.Fprintf(os.Stderr, "warning: core.hooksPath is set to %q globally; hk's installed hooks will be ignored. Run `git config --global --unset core.hooksPath` to fix.\n", p)
	}

	hooksDir := filepath.Join(app.Backend.Root(), ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	var names []string
	for _, h := range app.Resolved.Root.Hooks {
		names = append(names, h.Name)
	}
	if len(names) == 0 {
		names = defaultHookNames
	}

	for _, name := range names {
		path := filepath.Join(hooksDir, name)
		if _, statErr := os.Stat(path); statErr == nil && !opts.Force {
			fmt.Fprintf(os.Stderr, "hk: %s already exists, use --force to overwrite\n", path)
			continue
		}
		script := fmt.Sprintf(hookWrapperScript, name)
		if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "hk: %v\n", err)
			return 1
		}
		fmt.Printf("installed %s\n", path)
	}
	return 0
}
