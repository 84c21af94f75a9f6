package clicmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkconfig"
)

// defaultConfigTemplate is what `hk init` writes when no config exists,
// a minimal starting point with one placeholder `lint` step under a `check`
// and a `fix` hook.
const defaultConfigTemplate = `# generated by hk init
hooks:
  check:
    steps:
      lint:
        glob: "*"
        check: "true"
  fix:
    fix: true
    steps:
      lint:
        glob: "*"
        check: "true"
`

// InitCommand writes a starter configuration file (spec §6.2: "init
// [--force] [--mise]").
type InitCommand struct{}

type InitOptions struct {
	Force bool `long:"force" description:"overwrite an existing configuration file" short:"f"`
	Mise  bool `long:"mise"  description:"also emit a mise task wiring hk into mise run"`
}

func InitCommandFactory() (cli.Command, error) { return &InitCommand{}, nil }

func (c *InitCommand) Help() string {
	return "usage: hk init [--force] [--mise]\n\nWrite a starter hk.yaml."
}

func (c *InitCommand) Synopsis() string { return "Create a starter hk configuration file" }

func (c *InitCommand) Run(args []string) int {
	var opts InitOptions
	_, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	root, err := gitrepo.FindRoot("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	path := filepath.Join(root, hkconfig.DefaultFileName)
	if _, statErr := os.Stat(path); statErr == nil && !opts.Force {
		fmt.Fprintf(os.Stderr, "hk: %s already exists, use --force to overwrite\n", path)
		return 1
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", path)

	if opts.Mise {
		misePath := filepath.Join(root, ".mise.toml")
		if err := appendMiseTask(misePath); err != nil {
			fmt.Fprintf(os.Stderr, "hk: %v\n", err)
			return 1
		}
		fmt.Printf("wired hk into %s\n", misePath)
	}
	return 0
}

func appendMiseTask(path string) error {
	const task = "\n[tasks.lint]\nrun = \"hk check\"\n"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(task)
	return err
}
