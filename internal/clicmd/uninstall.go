package clicmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/cli"
)

// UninstallCommand removes hk's wrapper scripts from .git/hooks, leaving
// any script that doesn't look like one of ours untouched.
type UninstallCommand struct{}

func UninstallCommandFactory() (cli.Command, error) { return &UninstallCommand{}, nil }

func (c *UninstallCommand) Help() string {
	return "usage: hk uninstall\n\nRemove hk's installed git hook scripts."
}

func (c *UninstallCommand) Synopsis() string { return "Remove hk's installed git hooks" }

func (c *UninstallCommand) Run(args []string) int {
	app, err := NewApp(func(k string) string { return os.Getenv(k) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	defer app.Close()

	hooksDir := filepath.Join(app.Backend.Root(), ".git", "hooks")
	entries, err := os.ReadDir(hooksDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(hooksDir, entry.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil || !strings.Contains(string(data), "exec hk run ") {
			continue
		}
		if err := os.Remove(path); err != nil {
			fmt.Fprintf(os.Stderr, "hk: %v\n", err)
			continue
		}
		fmt.Printf("removed %s\n", path)
	}
	return 0
}
