package clicmd

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/hkconfig"
)

// ValidateCommand checks the resolved configuration for template and
// semantic errors without running anything (spec §6.2: "validate").
type ValidateCommand struct{}

func ValidateCommandFactory() (cli.Command, error) { return &ValidateCommand{}, nil }

func (c *ValidateCommand) Help() string {
	return "usage: hk validate\n\nValidate the resolved configuration."
}

func (c *ValidateCommand) Synopsis() string { return "Validate the configuration" }

func (c *ValidateCommand) Run(args []string) int {
	app, err := NewApp(func(k string) string { return os.Getenv(k) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 2
	}
	defer app.Close()

	if err := hkconfig.ValidateTemplates(app.Resolved.Root); err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return 2
	}

	errs := hkconfig.Validate(app.Resolved.Root)
	if len(errs) == 0 {
		fmt.Println("configuration is valid")
		return 0
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "hk: %v\n", e)
	}
	return 2
}
