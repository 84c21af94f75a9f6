// Package planner builds a Plan, an ordered acyclic graph of Jobs with
// skip decisions, from a Hook, its resolved file sets, and the active run
// type (spec §4.3).
package planner

import (
	"fmt"
	"sort"

	"github.com/jdx/hk/internal/fileset"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/obs"
)

// SkipReason is the precedence-ordered taxonomy of why a step did not run
// (spec §4.3). Values are ordered by *reporting* precedence, highest first;
// this is a different order from the *check* precedence used to decide
// whether a step is skipped at all (see evaluateSkip).
type SkipReason string

// Recognized skip reasons, highest reporting precedence first.
const (
	SkipNoFilesToProcess  SkipReason = "no-files-to-process"
	SkipConditionFalse    SkipReason = "condition-false"
	SkipProfileNotEnabled SkipReason = "profile-not-enabled"
	SkipDisabled          SkipReason = "disabled-by-env"
	SkipNoCommand         SkipReason = "no-command-for-run-type"
)

// reportPrecedence ranks reasons for display when more than one applies;
// lower index wins.
var reportPrecedence = []SkipReason{
	SkipNoFilesToProcess,
	SkipConditionFalse,
	SkipProfileNotEnabled,
	SkipDisabled,
	SkipNoCommand,
}

// StepStatus is a Job's planned inclusion state.
type StepStatus string

// Recognized statuses.
const (
	StatusIncluded StepStatus = "included"
	StatusSkipped  StepStatus = "skipped"
)

// Job is one planned invocation: a step, optionally scoped to a workspace,
// with its resolved file subset. Batching (spec §4.2 step 7) may split one
// step into multiple Jobs sharing the same Step pointer.
type Job struct {
	ID        string
	Step      *hkconfig.Step
	Workspace string // "." when the step has no workspace_indicator
	Files     []string
	DependsOn []string // Job IDs
}

// SkipRecord documents why a step was not planned into any Job.
type SkipRecord struct {
	Step    string
	Reason  SkipReason
	Message string
}

// Plan is the planner's output: included Jobs plus skip records, suitable
// for JSON serialization (`--plan --json`).
type Plan struct {
	Hook  string
	Jobs  []Job
	Skips []SkipRecord
}

// Input is everything the planner needs for one hook invocation.
type Input struct {
	HookName       string
	Hook           *hkconfig.Hook
	RunType        hkconfig.RunType
	ActiveProfiles map[string]bool
	SkipSteps      map[string]bool // from --skip-step / config skip_steps
	SkipHooks      map[string]bool // from --skip-hook / config skip_hooks
	ConditionEval  func(step *hkconfig.Step) (bool, error)
	FilesForStep   func(step *hkconfig.Step) ([]string, error)
	Batch          func(step *hkconfig.Step, files []string) [][]string
	// AssignWorkspaces splits a step's resolved files by workspace_indicator
	// (spec §4.2 step 6); nil means every step runs as a single workspace
	// rooted at ".".
	AssignWorkspaces func(step *hkconfig.Step, files []string) []fileset.Workspace
	Logger           *obs.Logger
}

// Build constructs the Plan for one hook (spec §4.3).
func Build(in Input) (*Plan, error) {
	log := in.Logger
	if log == nil {
		log = obs.Discard
	}
	plan := &Plan{Hook: in.HookName}

	if in.SkipHooks[in.HookName] {
		for _, step := range in.Hook.Steps.Flatten() {
			plan.Skips = append(plan.Skips, SkipRecord{
				Step:    step.Name,
				Reason:  SkipDisabled,
				Message: fmt.Sprintf("hook %q disabled", in.HookName),
			})
		}
		log.Event("plan", "hook", in.HookName, "jobs", 0, "skipped", len(plan.Skips))
		return plan, nil
	}

	steps := in.Hook.Steps.Flatten()
	jobByStep := map[string]string{} // step name -> first Job ID, for depends edges

	for _, step := range steps {
		reason, msg, skip, err := evaluateSkip(step, in)
		if err != nil {
			return nil, fmt.Errorf("evaluating step %q: %w", step.Name, err)
		}
		if skip {
			// no-files-to-process outranks every other reason when reporting
			if files, ferr := in.FilesForStep(step); ferr == nil && len(files) == 0 {
				reason, msg = SkipNoFilesToProcess, "no files matched"
			}
			plan.Skips = append(plan.Skips, SkipRecord{Step: step.Name, Reason: reason, Message: msg})
			log.Event("skip", "step", step.Name, "reason", string(reason))
			continue
		}

		files, err := in.FilesForStep(step)
		if err != nil {
			return nil, fmt.Errorf("resolving files for step %q: %w", step.Name, err)
		}
		if len(files) == 0 {
			plan.Skips = append(plan.Skips, SkipRecord{
				Step: step.Name, Reason: SkipNoFilesToProcess,
				Message: "no files matched",
			})
			log.Event("skip", "step", step.Name, "reason", string(SkipNoFilesToProcess))
			continue
		}

		workspaces := []fileset.Workspace{{Root: ".", Files: files}}
		if in.AssignWorkspaces != nil {
			workspaces = in.AssignWorkspaces(step, files)
		}

		for _, ws := range workspaces {
			batches := [][]string{ws.Files}
			if in.Batch != nil {
				batches = in.Batch(step, ws.Files)
			}

			for i, batch := range batches {
				id := step.Name
				if len(workspaces) > 1 {
					id = fmt.Sprintf("%s#%s", id, ws.Root)
				}
				if len(batches) > 1 {
					id = fmt.Sprintf("%s#%d", id, i)
				}
				if _, ok := jobByStep[step.Name]; !ok {
					jobByStep[step.Name] = id
				}
				plan.Jobs = append(plan.Jobs, Job{
					ID:        id,
					Step:      step,
					Workspace: ws.Root,
					Files:     batch,
				})
			}
		}
	}

	// depends edges are resolved once every step is planned, so an edge to a
	// step listed later in the hook is kept as well
	for i := range plan.Jobs {
		for _, dep := range plan.Jobs[i].Step.Depends {
			if id, ok := jobByStep[dep]; ok {
				plan.Jobs[i].DependsOn = append(plan.Jobs[i].DependsOn, id)
			}
		}
	}

	if err := validateDAG(plan.Jobs); err != nil {
		return nil, err
	}

	sort.Slice(plan.Skips, func(i, j int) bool { return plan.Skips[i].Step < plan.Skips[j].Step })
	log.Event("plan", "hook", in.HookName, "jobs", len(plan.Jobs), "skipped", len(plan.Skips))
	return plan, nil
}

// evaluateSkip implements the spec §4.3 CHECK precedence (first match
// wins, in the order the spec lists them), but reports the reason at
// SkipReason's REPORTING precedence when more than one condition applies -
// the two orders differ, and both must be honored.
func evaluateSkip(step *hkconfig.Step, in Input) (reason SkipReason, msg string, skip bool, err error) {
	applicable := map[SkipReason]string{}

	if in.SkipSteps[step.Name] {
		applicable[SkipDisabled] = fmt.Sprintf("step %q disabled", step.Name)
	}
	if !hasCommandForRunType(step, in.RunType) {
		applicable[SkipNoCommand] = fmt.Sprintf("no %s command defined", in.RunType)
	}
	if len(step.Profiles) > 0 && !anyActive(step.Profiles, in.ActiveProfiles) {
		applicable[SkipProfileNotEnabled] = fmt.Sprintf("requires profile %v, none active", step.Profiles)
	}
	if step.Condition != "" && in.ConditionEval != nil {
		ok, cerr := in.ConditionEval(step)
		if cerr != nil {
			return "", "", false, cerr
		}
		if !ok {
			applicable[SkipConditionFalse] = fmt.Sprintf("condition %q is false", step.Condition)
		}
	}

	if len(applicable) == 0 {
		return "", "", false, nil
	}
	for _, r := range reportPrecedence {
		if m, ok := applicable[r]; ok {
			return r, m, true, nil
		}
	}
	// unreachable: every key in applicable is one of reportPrecedence's values.
	return SkipDisabled, "disabled", true, nil
}

func hasCommandForRunType(step *hkconfig.Step, rt hkconfig.RunType) bool {
	switch rt {
	case hkconfig.RunFix:
		return step.Fix != "" || step.CheckDiff != "" || step.CheckListFiles != "" || step.Check != ""
	default:
		return step.Check != "" || step.CheckDiff != "" || step.CheckListFiles != ""
	}
}

func anyActive(required []string, active map[string]bool) bool {
	for _, p := range required {
		if active[p] {
			return true
		}
	}
	return false
}

// validateDAG rejects a `depends` graph containing a cycle (spec §9:
// "node-indexed adjacency, cycle validation at load").
func validateDAG(jobs []Job) error {
	index := map[string]int{}
	for i, j := range jobs {
		index[j.ID] = i
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(jobs))
	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, dep := range jobs[i].DependsOn {
			di, ok := index[dep]
			if !ok {
				continue // dependency skipped or batched away: not an edge in this DAG
			}
			switch color[di] {
			case gray:
				return fmt.Errorf("cyclic depends: %s -> %s", jobs[i].ID, jobs[di].ID)
			case white:
				if err := visit(di); err != nil {
					return err
				}
			}
		}
		color[i] = black
		return nil
	}
	for i := range jobs {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}
