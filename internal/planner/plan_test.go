package planner

import (
	"testing"

	"github.com/jdx/hk/internal/fileset"
	"github.com/jdx/hk/internal/hkconfig"
)

func hook(steps ...hkconfig.StepOrGroup) *hkconfig.Hook {
	return &hkconfig.Hook{Steps: hkconfig.StepList(steps)}
}

func stepEntry(s *hkconfig.Step) hkconfig.StepOrGroup {
	return hkconfig.StepOrGroup{Name: s.Name, Step: s}
}

func TestBuildSkipsNoFilesToProcess(t *testing.T) {
	s := &hkconfig.Step{Name: "lint", Check: "golangci-lint run"}
	in := Input{
		HookName:     "check",
		Hook:         hook(stepEntry(s)),
		RunType:      hkconfig.RunCheck,
		FilesForStep: func(*hkconfig.Step) ([]string, error) { return nil, nil },
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(plan.Jobs))
	}
	if len(plan.Skips) != 1 || plan.Skips[0].Reason != SkipNoFilesToProcess {
		t.Fatalf("expected no-files-to-process skip, got %+v", plan.Skips)
	}
}

func TestBuildReportsHighestPrecedenceReason(t *testing.T) {
	// profile not enabled AND condition false both apply: condition-false
	// outranks profile-not-enabled in reporting precedence.
	s := &hkconfig.Step{Name: "lint", Check: "x", Profiles: []string{"ci"}, Condition: "false"}
	in := Input{
		HookName:       "check",
		Hook:           hook(stepEntry(s)),
		RunType:        hkconfig.RunCheck,
		ActiveProfiles: map[string]bool{},
		ConditionEval:  func(*hkconfig.Step) (bool, error) { return false, nil },
		FilesForStep:   func(*hkconfig.Step) ([]string, error) { return []string{"a.go"}, nil },
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Skips) != 1 || plan.Skips[0].Reason != SkipConditionFalse {
		t.Fatalf("expected condition-false to take precedence, got %+v", plan.Skips)
	}
}

func TestBuildIncludesStepWithFiles(t *testing.T) {
	s := &hkconfig.Step{Name: "lint", Check: "x"}
	in := Input{
		HookName:     "check",
		Hook:         hook(stepEntry(s)),
		RunType:      hkconfig.RunCheck,
		FilesForStep: func(*hkconfig.Step) ([]string, error) { return []string{"a.go", "b.go"}, nil },
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Jobs) != 1 || len(plan.Jobs[0].Files) != 2 {
		t.Fatalf("expected one job with 2 files, got %+v", plan.Jobs)
	}
}

func TestBuildDependsEdgeSurvivesSkippedDependency(t *testing.T) {
	gen := &hkconfig.Step{Name: "generate", Fix: "go generate"}
	lint := &hkconfig.Step{Name: "lint", Check: "x", Depends: []string{"generate"}}
	in := Input{
		HookName: "check",
		Hook:     hook(stepEntry(gen), stepEntry(lint)),
		RunType:  hkconfig.RunCheck, // generate has no check command -> skipped
		FilesForStep: func(s *hkconfig.Step) ([]string, error) {
			return []string{"a.go"}, nil
		},
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Jobs) != 1 || plan.Jobs[0].ID != "lint" {
		t.Fatalf("expected lint job to run despite skipped dependency: %+v", plan.Jobs)
	}
	if len(plan.Jobs[0].DependsOn) != 0 {
		t.Fatalf("depends edge to a skipped step should not appear in the DAG: %+v", plan.Jobs[0].DependsOn)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	a := &hkconfig.Step{Name: "a", Check: "x", Depends: []string{"b"}}
	b := &hkconfig.Step{Name: "b", Check: "x", Depends: []string{"a"}}
	in := Input{
		HookName:     "check",
		Hook:         hook(stepEntry(a), stepEntry(b)),
		RunType:      hkconfig.RunCheck,
		FilesForStep: func(*hkconfig.Step) ([]string, error) { return []string{"a.go"}, nil },
	}
	if _, err := Build(in); err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestBuildBatchesIntoMultipleJobs(t *testing.T) {
	s := &hkconfig.Step{Name: "lint", Check: "x", Batch: true}
	in := Input{
		HookName:     "check",
		Hook:         hook(stepEntry(s)),
		RunType:      hkconfig.RunCheck,
		FilesForStep: func(*hkconfig.Step) ([]string, error) { return []string{"a.go", "b.go"}, nil },
		Batch: func(step *hkconfig.Step, files []string) [][]string {
			return [][]string{{files[0]}, {files[1]}}
		},
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Jobs) != 2 {
		t.Fatalf("expected 2 batched jobs, got %d", len(plan.Jobs))
	}
	if plan.Jobs[0].ID == plan.Jobs[1].ID {
		t.Fatalf("batched jobs must have distinct IDs: %+v", plan.Jobs)
	}
}

func TestBuildPartitionsByWorkspace(t *testing.T) {
	s := &hkconfig.Step{Name: "lint", Check: "x", WorkspaceIndicator: "go.mod"}
	in := Input{
		HookName:     "check",
		Hook:         hook(stepEntry(s)),
		RunType:      hkconfig.RunCheck,
		FilesForStep: func(*hkconfig.Step) ([]string, error) { return []string{"main.go", "a/main.go", "b/main.go"}, nil },
		AssignWorkspaces: func(_ *hkconfig.Step, files []string) []fileset.Workspace {
			return []fileset.Workspace{
				{Root: ".", Files: []string{"main.go"}},
				{Root: "a", Files: []string{"a/main.go"}},
				{Root: "b", Files: []string{"b/main.go"}},
			}
		},
	}
	plan, err := Build(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Jobs) != 3 {
		t.Fatalf("expected 3 workspace jobs, got %+v", plan.Jobs)
	}
	byWS := map[string][]string{}
	ids := map[string]bool{}
	for _, j := range plan.Jobs {
		byWS[j.Workspace] = j.Files
		ids[j.ID] = true
	}
	if len(ids) != 3 {
		t.Fatalf("expected distinct job IDs per workspace, got %+v", plan.Jobs)
	}
	for ws, want := range map[string][]string{".": {"main.go"}, "a": {"a/main.go"}, "b": {"b/main.go"}} {
		if got := byWS[ws]; len(got) != 1 || got[0] != want[0] {
			t.Fatalf("workspace %q: expected %v, got %v", ws, want, got)
		}
	}
}
