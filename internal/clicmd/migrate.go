package clicmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"
)

// MigrateCommand converts a pre-commit configuration file into an hk
// configuration (spec §6.2: "migrate pre-commit [--config PATH] [--output
// PATH] [--force]").
type MigrateCommand struct{}

type MigrateOptions struct {
	Positional struct {
		Tool string `positional-arg-name:"tool"`
	} `positional-args:"true" required:"1"`
	Config string `long:"config" description:"path to the source config file" default:".pre-commit-config.yaml"`
	Output string `long:"output" description:"path to write the migrated hk.yaml"                default:"hk.yaml"`
	Force  bool   `long:"force"  description:"overwrite the output file if it exists" short:"f"`
}

func MigrateCommandFactory() (cli.Command, error) { return &MigrateCommand{}, nil }

func (c *MigrateCommand) Help() string {
	var opts MigrateOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "pre-commit [--config PATH] [--output PATH] [--force]"
	return "usage: hk migrate " + parser.Usage + "\n\nConvert a .pre-commit-config.yaml into an hk configuration."
}

func (c *MigrateCommand) Synopsis() string { return "Migrate another tool's configuration to hk" }

func (c *MigrateCommand) Run(args []string) int {
	var opts MigrateOptions
	_, helpShown, err := parseArgs(&opts, args)
	if helpShown {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	if opts.Positional.Tool != "pre-commit" {
		fmt.Fprintf(os.Stderr, "hk: unsupported migration source %q (only \"pre-commit\" is supported)\n", opts.Positional.Tool)
		return 2
	}

	data, err := os.ReadFile(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	var src preCommitConfig
	if err := yaml.Unmarshal(data, &src); err != nil {
		fmt.Fprintf(os.Stderr, "hk: parsing %s: %v\n", opts.Config, err)
		return 2
	}

	doc := migratePreCommit(src)
	out, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}

	if _, statErr := os.Stat(opts.Output); statErr == nil && !opts.Force {
		fmt.Fprintf(os.Stderr, "hk: %s already exists, use --force to overwrite\n", opts.Output)
		return 1
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s (%d step(s) migrated)\n", opts.Output, len(doc.Steps))
	return 0
}

// preCommitConfig is the subset of .pre-commit-config.yaml's shape that
// carries over into an hk step.
type preCommitConfig struct {
	Repos []struct {
		Repo  string `yaml:"repo"`
		Hooks []struct {
			ID      string   `yaml:"id"`
			Name    string   `yaml:"name"`
			Entry   string   `yaml:"entry"`
			Types   []string `yaml:"types"`
			Exclude string   `yaml:"exclude"`
			Args    []string `yaml:"args"`
		} `yaml:"hooks"`
	} `yaml:"repos"`
}

// migratedDoc is the minimal hk.yaml shape `migrate` emits: a flat,
// top-level `steps` map; no `hooks` entry is generated around it.
// Pre-commit's hook model has no concept of a separate check/fix split
// (every hook is assumed fixable through `--fix`'s best-effort semantics),
// matched here by wiring the same command into both check and fix.
type migratedDoc struct {
	Steps map[string]migratedStep `yaml:"steps"`
}

type migratedStep struct {
	Check   string   `yaml:"check,omitempty"`
	Fix     string   `yaml:"fix,omitempty"`
	Types   []string `yaml:"types,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

func migratePreCommit(src preCommitConfig) migratedDoc {
	doc := migratedDoc{Steps: map[string]migratedStep{}}
	for _, repo := range src.Repos {
		for _, h := range repo.Hooks {
			name := h.ID
			if name == "" {
				name = h.Name
			}
			cmd := h.Entry
			if len(h.Args) > 0 {
				cmd = cmd + " " + strings.Join(h.Args, " ")
			}
			step := migratedStep{Check: cmd, Fix: cmd, Types: h.Types}
			if h.Exclude != "" {
				step.Exclude = []string{h.Exclude}
			}
			doc.Steps[name] = step
		}
	}
	return doc
}
