package clicmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jdx/hk/internal/fileset"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/hookrun"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/render"
	"github.com/jdx/hk/internal/report"
	"github.com/jdx/hk/internal/stashctl"
)

// buildOptions turns a CommonOptions selector plus the resolved hook into
// a hookrun.Options ready for hookrun.Run (spec §6.2's shared check/fix/run
// skeleton).
func (a *App) buildOptions(common CommonOptions, paths []string, hookName string, hook *hkconfig.Hook, runType hkconfig.RunType) (hookrun.Options, error) {
	if common.PR && (common.All || common.FromRef != "") {
		return hookrun.Options{}, fmt.Errorf("--pr cannot be combined with --all or --from-ref")
	}

	jobs := a.Resolved.Jobs
	if common.Jobs > 0 {
		jobs = common.Jobs
	}
	failFast := a.Resolved.FailFast
	if common.FailFast {
		failFast = true
	}
	if common.NoFailFast {
		failFast = false
	}
	stage := true
	if common.NoStage && !common.Stage {
		stage = false
	}

	base := fileset.Base{All: common.All, FromRef: common.FromRef, ToRef: common.ToRef, PR: common.PR, Paths: paths}

	profiles := map[string]bool{}
	for _, p := range append(append([]string{}, a.Resolved.Profiles...), common.Profile...) {
		profiles[p] = true
	}
	skipSteps := toSet(append(append([]string{}, a.Resolved.SkipSteps...), common.SkipStep...))
	skipHooks := toSet(a.Resolved.SkipHooks)

	if len(common.Step) > 0 {
		// --step NAME restricts execution to exactly the named steps: every
		// other step in the hook is treated as skipped (spec §6.2).
		wanted := toSet(common.Step)
		for _, s := range hook.Steps.Flatten() {
			if !wanted[s.Name] {
				skipSteps[s.Name] = true
			}
		}
	}

	return hookrun.Options{
		HookName:         hookName,
		Hook:             hook,
		RunType:          runType,
		Backend:          a.Backend,
		Cache:            a.Cache,
		Logger:           a.Logger,
		Base:             base,
		GlobalExclude:    a.Resolved.Exclude,
		ActiveProfiles:   profiles,
		SkipSteps:        skipSteps,
		SkipHooks:        skipHooks,
		ConditionEval:    a.conditionEval(hook),
		Workers:          jobs,
		FailFast:         failFast,
		DisableBatching:  common.Slow,
		Stage:            stage,
		StashStrategy:    a.stashStrategy(),
		BackupDir:        a.backupDir(),
		BackupCount:      a.backupCount(),
		OutputLogPath:    stateDir(a.Getenv, a.Backend.Root()) + "/output.log",
		IncludeUntracked: a.Getenv("HK_STASH_UNTRACKED") == "1" || strings.EqualFold(a.Getenv("HK_STASH_UNTRACKED"), "true"),
		Env:              hook.Env,
		Reporter:         a.reporter(),
	}, nil
}

// conditionEval renders a step's `condition` template and runs it in a
// shell; exit 0 is true (spec §4.3: "condition evaluates to false
// (expression over git, env, shell capture)").
func (a *App) conditionEval(hook *hkconfig.Hook) func(step *hkconfig.Step) (bool, error) {
	return func(step *hkconfig.Step) (bool, error) {
		tmpl, err := render.Parse(step.Condition)
		if err != nil {
			return false, fmt.Errorf("step %q: invalid condition: %w", step.Name, err)
		}
		rendered := tmpl.Render(map[string]string{"root": a.Backend.Root()})
		cmd := exec.CommandContext(context.Background(), "sh", "-c", rendered)
		cmd.Dir = a.Backend.Root()
		return cmd.Run() == nil, nil
	}
}

func (a *App) stashStrategy() stashctl.Strategy {
	if strings.EqualFold(a.Getenv("HK_STASH_STRATEGY"), "patch-file") {
		return stashctl.StrategyPatchFile
	}
	return stashctl.StrategyGit
}

func (a *App) backupDir() string {
	return stateDir(a.Getenv, a.Backend.Root()) + "/patches"
}

func (a *App) backupCount() int {
	return 20
}

func (a *App) reporter() *report.Reporter {
	return &report.Reporter{
		Out:                os.Stdout,
		DisplaySkipReasons: displaySkipReasons(a.Resolved.DisplaySkipReasons, a.Resolved.HideWarnings),
		Color:              true,
	}
}

// displaySkipReasons builds the allow-list the Reporter shows skip lines
// for, then removes anything named by `hide_warnings`/`HK_HIDE_WARNINGS`
// (spec §6.1, §6.2) even if it was otherwise allow-listed.
func displaySkipReasons(shown, hidden []string) map[planner.SkipReason]bool {
	var out map[planner.SkipReason]bool
	if len(shown) == 0 {
		out = report.DefaultDisplaySkipReasons()
	} else {
		out = map[planner.SkipReason]bool{}
		for _, n := range shown {
			out[planner.SkipReason(n)] = true
		}
	}
	for _, h := range hidden {
		delete(out, planner.SkipReason(h))
	}
	return out
}

func toSet(vals []string) map[string]bool {
	out := map[string]bool{}
	for _, v := range vals {
		out[v] = true
	}
	return out
}
