package clicmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdx/hk/internal/herr"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/hookrun"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/report"
	"github.com/jdx/hk/internal/scheduler"
)

// runHook is the shared skeleton behind `hk check`, `hk fix`, and
// `hk run <hook>` (spec §6.2): resolve the app, look up the hook, plan it,
// and either print the plan or execute it through hookrun.Run. A zero
// runType defers to the hook's own `fix` setting, which is how `hk run
// <hook>` picks between the check and fix execution paths.
func runHook(hookName string, runType hkconfig.RunType, common CommonOptions, paths []string) int {
	app, err := NewApp(func(k string) string { return os.Getenv(k) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return int(herr.CodeOf(err))
	}
	defer app.Close()

	hook := app.Resolved.Root.HookByName(hookName)
	if hook == nil {
		err := &herr.PlanError{Msg: fmt.Sprintf("no hook named %q", hookName)}
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return int(herr.CodeOf(err))
	}
	if runType == "" {
		runType = hkconfig.RunCheck
		if hook.Fix {
			runType = hkconfig.RunFix
		}
	}
	if app.Resolved.Root != nil {
		for _, skipped := range app.Resolved.SkipHooks {
			if skipped == hookName {
				fmt.Fprintf(os.Stdout, "hook %q skipped via skip_hooks\n", hookName)
				return 0
			}
		}
	}

	opts, err := app.buildOptions(common, paths, hookName, hook, runType)
	if err != nil {
		selErr := &herr.ValidationError{Hook: hookName, Msg: err.Error()}
		fmt.Fprintf(os.Stderr, "hk: %v\n", selErr)
		return int(herr.CodeOf(selErr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if common.Plan || common.PlanJSON || common.Why != "" {
		asJSON := common.PlanJSON || (common.Plan && common.JSON)
		return planOnly(ctx, opts, common.Why, asJSON)
	}

	result, err := hookrun.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "hk: interrupted")
			return int(herr.ExitInterrupted)
		}
		// an *herr.JobFailure is left to the reporter's summary; any other
		// error gets its own line, including the scheduler's plain "one or
		// more jobs failed" error.
		var jobFailure *herr.JobFailure
		if !errors.As(err, &jobFailure) {
			fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		}
		return int(herr.CodeOf(err))
	}
	return exitCodeFor(result)
}

// planOnly builds the plan (without running it) and prints it per
// `--plan`/`--plan --json`/`--why [NAME]` (spec §4.3, §6.2). A non-empty
// why restricts output to the named step's inclusion or skip reason;
// why == "*" (a bare `--why`, per its optional-value) explains every step.
func planOnly(ctx context.Context, opts hookrun.Options, why string, asJSON bool) int {
	plan, err := hookrun.Plan(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hk: %v\n", err)
		return int(herr.CodeOf(err))
	}
	if why != "" {
		return explainPlan(plan, why)
	}
	if asJSON {
		data, err := report.MarshalPlan(plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hk: %v\n", err)
			return int(herr.ExitJobFailure)
		}
		fmt.Println(string(data))
		return 0
	}
	for _, j := range plan.Jobs {
		fmt.Printf("%s: %d file(s)\n", j.ID, len(j.Files))
	}
	for _, s := range plan.Skips {
		fmt.Printf("skip %s: %s (%s)\n", s.Step, s.Message, s.Reason)
	}
	return 0
}

// explainPlan prints why each named step was (or wasn't) included in the
// plan. why == "*" explains every step found; otherwise only the named one.
func explainPlan(plan *planner.Plan, why string) int {
	matched := false
	for _, j := range plan.Jobs {
		if why != "*" && j.Step.Name != why {
			continue
		}
		matched = true
		fmt.Printf("%s: included, %d file(s) matched (workspace %s)\n", j.Step.Name, len(j.Files), j.Workspace)
	}
	for _, s := range plan.Skips {
		if why != "*" && s.Step != why {
			continue
		}
		matched = true
		fmt.Printf("%s: skipped - %s (%s)\n", s.Step, s.Message, s.Reason)
	}
	if !matched && why != "*" {
		fmt.Printf("%s: no such step\n", why)
		return 2
	}
	return 0
}

func exitCodeFor(result *hookrun.Result) int {
	for _, j := range result.Jobs {
		if j.Status == scheduler.StatusFailed || j.Status == scheduler.StatusAborted {
			return int(herr.ExitJobFailure)
		}
	}
	return 0
}
