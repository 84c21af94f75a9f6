package clicmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"

	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/stephtest"
)

// TestCommand drives the declarative step test harness over every step
// that declares `tests` (spec §6.2: "test [--step NAME] [--name NAME]
// [--list]").
type TestCommand struct{}

type TestOptions struct {
	Step string `long:"step" description:"only run tests declared on this step"`
	Name string `long:"name" description:"only run the test case with this name"`
	List bool   `long:"list" description:"list test cases instead of running them"`
}

func TestCommandFactory() (cli.Command, error) { return &TestCommand{}, nil }

func (c *TestCommand) Help() string {
	var opts TestOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[--step NAME] [--name NAME] [--list]"
	return "usage: hk test " + parser.Usage + "\n\nRun declarative step tests."
}

func (c *TestCommand) Synopsis() string { return "Run declarative step tests" }

func (c *TestCommand) Run(args []string) int {
	var opts TestOptions
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

	cases := collectCases(app.Resolved.Root, opts.Step, opts.Name)
	if len(cases) == 0 {
		fmt.Println("no test cases matched")
		return 0
	}

	if opts.List {
		for _, c := range cases {
			fmt.Printf("%s: %s\n", c.step.Name, c.test.Name)
		}
		return 0
	}

	failures := 0
	for _, c := range cases {
		res := stephtest.Run(context.Background(), c.step, c.test)
		if res.Passed {
			fmt.Printf("ok   %s: %s\n", res.Step, res.Name)
			continue
		}
		failures++
		fmt.Printf("fail %s: %s - %s\n", res.Step, res.Name, res.Message)
	}
	fmt.Printf("%d passed, %d failed\n", len(cases)-failures, failures)
	if failures > 0 {
		return 1
	}
	return 0
}

type testCase struct {
	step *hkconfig.Step
	test hkconfig.StepTest
}

func collectCases(doc *hkconfig.Document, stepFilter, nameFilter string) []testCase {
	var cases []testCase
	seen := map[string]bool{}
	for _, nh := range doc.Hooks {
		for _, step := range nh.Hook.Steps.Flatten() {
			if seen[step.Name] {
				continue
			}
			if stepFilter != "" && step.Name != stepFilter {
				continue
			}
			seen[step.Name] = true
			for _, test := range step.Tests {
				if nameFilter != "" && test.Name != nameFilter {
					continue
				}
				cases = append(cases, testCase{step: step, test: test})
			}
		}
	}
	return cases
}
