package stephtest

import (
	"context"
	"testing"

	"github.com/jdx/hk/internal/hkconfig"
)

func TestRunPassesOnMatchingFixOutput(t *testing.T) {
	step := &hkconfig.Step{Name: "trim", Fix: "printf 'fixed\\n' > out.txt"}
	test := hkconfig.StepTest{
		Name:   "basic fix",
		Before: map[string]string{"in.txt": "original\n"},
		Run:    "fix",
		Write:  map[string]string{"out.txt": "fixed\n"},
	}
	res := Run(context.Background(), step, test)
	if !res.Passed {
		t.Fatalf("expected pass, got failure: %s", res.Message)
	}
}

func TestRunFailsOnContentMismatch(t *testing.T) {
	step := &hkconfig.Step{Name: "trim", Fix: "printf 'wrong\\n' > out.txt"}
	test := hkconfig.StepTest{
		Name:  "mismatch",
		Run:   "fix",
		Write: map[string]string{"out.txt": "fixed\n"},
	}
	res := Run(context.Background(), step, test)
	if res.Passed {
		t.Fatal("expected failure on content mismatch")
	}
}

func TestRunChecksExitStatus(t *testing.T) {
	step := &hkconfig.Step{Name: "lint", Check: "exit 1"}
	test := hkconfig.StepTest{Name: "nonzero", Run: "check", Expect: hkconfig.StepTestExpect{Status: 1}}
	res := Run(context.Background(), step, test)
	if !res.Passed {
		t.Fatalf("expected pass matching exit status, got: %s", res.Message)
	}
}

func TestRunFailsWhenNoCommandForRunType(t *testing.T) {
	step := &hkconfig.Step{Name: "fixonly", Fix: "true"}
	test := hkconfig.StepTest{Name: "no check", Run: "check"}
	res := Run(context.Background(), step, test)
	if res.Passed {
		t.Fatal("expected failure when step has no check command")
	}
}
