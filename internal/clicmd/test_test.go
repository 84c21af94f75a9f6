package clicmd

import (
	"testing"

	"github.com/jdx/hk/internal/hkconfig"
)

func docWithSteps(steps ...*hkconfig.Step) *hkconfig.Document {
	var list hkconfig.StepList
	for _, s := range steps {
		list = append(list, hkconfig.StepOrGroup{Name: s.Name, Step: s})
	}
	return &hkconfig.Document{
		Hooks: hkconfig.HookList{
			{Name: "check", Hook: &hkconfig.Hook{Steps: list}},
			{Name: "fix", Hook: &hkconfig.Hook{Steps: list}},
		},
	}
}

func TestCollectCasesDedupesStepsAcrossHooks(t *testing.T) {
	lint := &hkconfig.Step{Name: "lint", Tests: []hkconfig.StepTest{{Name: "one"}, {Name: "two"}}}
	doc := docWithSteps(lint)

	cases := collectCases(doc, "", "")
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2 (deduped across check/fix)", len(cases))
	}
}

func TestCollectCasesFiltersByStepAndName(t *testing.T) {
	lint := &hkconfig.Step{Name: "lint", Tests: []hkconfig.StepTest{{Name: "one"}, {Name: "two"}}}
	format := &hkconfig.Step{Name: "format", Tests: []hkconfig.StepTest{{Name: "one"}}}
	doc := docWithSteps(lint, format)

	cases := collectCases(doc, "lint", "")
	if len(cases) != 2 {
		t.Fatalf("step filter: got %d cases, want 2", len(cases))
	}
	for _, c := range cases {
		if c.step.Name != "lint" {
			t.Fatalf("step filter leaked a %q case", c.step.Name)
		}
	}

	cases = collectCases(doc, "", "one")
	if len(cases) != 2 {
		t.Fatalf("name filter: got %d cases, want 2", len(cases))
	}
	for _, c := range cases {
		if c.test.Name != "one" {
			t.Fatalf("name filter leaked a %q case", c.test.Name)
		}
	}
}

func TestCollectCasesSkipsStepsWithoutTests(t *testing.T) {
	doc := docWithSteps(&hkconfig.Step{Name: "notest"})
	if cases := collectCases(doc, "", ""); len(cases) != 0 {
		t.Fatalf("got %d cases, want 0", len(cases))
	}
}
