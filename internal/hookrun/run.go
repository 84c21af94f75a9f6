// Package hookrun wires the core components (internal/fileset,
// internal/planner, internal/scheduler, internal/stashctl,
// internal/fixer, internal/gitrepo, internal/report) into the end to
// end flow that backs `hk check`, `hk fix`, and `hk run <hook>` (spec §9:
// "a single orchestrator thread plus a bounded worker pool").
package hookrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jdx/hk/internal/fileset"
	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkcache"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/obs"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/report"
	"github.com/jdx/hk/internal/scheduler"
	"github.com/jdx/hk/internal/stashctl"
)

// argMaxLimit is the byte budget AutoBatch chunks a step's file list
// against. Conservative relative to the kernel's actual ARG_MAX so a
// step's own argv overhead (interpreter path, flags) still fits.
const argMaxLimit = 128 * 1024

// Options is everything one hook invocation needs.
type Options struct {
	HookName string
	Hook     *hkconfig.Hook
	RunType  hkconfig.RunType

	Backend gitrepo.Backend
	Cache   *hkcache.Manager
	Logger  *obs.Logger

	Base           fileset.Base
	GlobalExclude  []string
	ActiveProfiles map[string]bool
	SkipSteps      map[string]bool
	SkipHooks      map[string]bool
	ConditionEval  func(step *hkconfig.Step) (bool, error)

	Workers  int
	FailFast bool

	// DisableBatching turns off ARG_MAX auto-batching regardless of a
	// step's own Batch setting (spec §6.2 "--slow").
	DisableBatching bool

	Stage            bool
	StashStrategy    stashctl.Strategy
	BackupDir        string
	BackupCount      int
	IncludeUntracked bool

	// OutputLogPath, if set, receives the run's raw per-job stdout/stderr
	// after every other run-path side effect (spec §6.4: "output.log
	// (last run's raw output)"). Empty disables the write.
	OutputLogPath string

	Env map[string]string

	Reporter *report.Reporter
}

// Result is what one hook invocation produced.
type Result struct {
	Plan    *planner.Plan
	Jobs    []scheduler.Result
	Stashed bool
}

// Plan resolves the candidate file set and builds a Plan without running
// it, backing `--plan`/`--plan --json` (spec §4.3).
func Plan(ctx context.Context, opts Options) (*planner.Plan, error) {
	log := opts.Logger
	if log == nil {
		log = obs.Discard
	}

	base, err := fileset.ResolveBase(ctx, opts.Backend, opts.Base)
	if err != nil {
		return nil, fmt.Errorf("resolving base file set: %w", err)
	}

	resolver := &fileset.Resolver{
		Backend: opts.Backend,
		Cache:   opts.Cache,
		Policy:  fileset.Policy{Exclude: opts.GlobalExclude},
	}

	filesForStep := func(step *hkconfig.Step) ([]string, error) {
		return resolver.ForStep(ctx, step, base)
	}
	batch := func(step *hkconfig.Step, files []string) [][]string {
		if opts.DisableBatching || !step.Batch {
			return [][]string{files}
		}
		return fileset.AutoBatch(files, argMaxLimit)
	}
	assignWorkspaces := func(step *hkconfig.Step, files []string) []fileset.Workspace {
		return fileset.AssignWorkspaces(opts.Backend.Root(), files, step.WorkspaceIndicator)
	}

	plan, err := planner.Build(planner.Input{
		HookName:         opts.HookName,
		Hook:             opts.Hook,
		RunType:          opts.RunType,
		ActiveProfiles:   opts.ActiveProfiles,
		SkipSteps:        opts.SkipSteps,
		SkipHooks:        opts.SkipHooks,
		ConditionEval:    opts.ConditionEval,
		FilesForStep:     filesForStep,
		Batch:            batch,
		AssignWorkspaces: assignWorkspaces,
		Logger:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("building plan: %w", err)
	}
	return plan, nil
}

// Run resolves files, builds a Plan, executes it, and (for fix-type hooks)
// drives the stash protocol and staging around the scheduler run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = obs.Discard
	}

	plan, err := Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	isFix := opts.RunType == hkconfig.RunFix && opts.Hook.Fix
	var session *stashctl.Session
	stashed := false
	if isFix && opts.Hook.Stash != hkconfig.StashNone && opts.Hook.Stash != "" {
		scope := stashScope(opts.Backend, plan, opts.Hook)
		session = &stashctl.Session{
			Backend:          opts.Backend,
			Cache:            opts.Cache,
			Logger:           log,
			Strategy:         opts.StashStrategy,
			BackupDir:        opts.BackupDir,
			BackupCount:      opts.BackupCount,
			IncludeUntracked: opts.IncludeUntracked,
		}
		stashed, err = session.Push(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("stash push: %w", err)
		}
	}

	runner := &jobRunner{
		backend: opts.Backend,
		logger:  log,
		hookEnv: opts.Env,
		fix:     isFix,
	}

	sched := scheduler.New(plan, runner, scheduler.Options{
		Workers:  opts.Workers,
		FailFast: opts.FailFast,
		Logger:   log,
	})
	results, runErr := sched.Run(ctx)
	if runErr != nil && ctx.Err() == nil {
		// a JobFailure; still proceed to restore/staging below so the
		// user's unstaged edits aren't stranded under the stash.
		log.Warn("one or more jobs failed", "hook", opts.HookName)
	}

	if session != nil && stashed {
		touched := touchedFiles(plan, results)
		if err := session.Reindex(ctx, touched); err != nil {
			return nil, fmt.Errorf("stash reindex: %w", err)
		}
		if err := session.Restore(ctx); err != nil {
			return nil, fmt.Errorf("stash restore: %w", err)
		}
	}

	if isFix && opts.Stage {
		if err := stageResults(ctx, opts.Backend, plan, results); err != nil {
			log.Warn("staging fixer output failed", "err", err)
		}
	}

	if opts.Reporter != nil {
		opts.Reporter.Summary(plan, results)
	}

	if opts.OutputLogPath != "" {
		if err := writeOutputLog(opts.OutputLogPath, results); err != nil {
			log.Warn("writing output log failed", "err", err)
		}
	}

	if runErr != nil && ctx.Err() != nil {
		return &Result{Plan: plan, Jobs: results, Stashed: stashed}, ctx.Err()
	}
	return &Result{Plan: plan, Jobs: results, Stashed: stashed}, runErr
}

// stashScope is the union of paths the hook might touch: every planned
// Job's files plus the hook's declared `stage` patterns resolved against
// the worktree (spec §4.6: "union of staged paths ∪ step file sets ∪
// declared stage patterns").
func stashScope(backend gitrepo.Backend, plan *planner.Plan, hook *hkconfig.Hook) []string {
	set := map[string]bool{}
	for _, j := range plan.Jobs {
		for _, f := range j.Files {
			set[f] = true
		}
	}
	for _, pattern := range hook.Stage {
		if pattern == hkconfig.JobFilesSentinel {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(backend.Root(), pattern))
		for _, m := range matches {
			if rel, err := filepath.Rel(backend.Root(), m); err == nil {
				set[rel] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// touchedFiles is every file a succeeded or failed Job may have mutated,
// i.e. every path that needs re-indexing from the post-fixer worktree.
func touchedFiles(plan *planner.Plan, results []scheduler.Result) []string {
	byID := map[string]scheduler.Result{}
	for _, r := range results {
		byID[r.Job.ID] = r
	}
	set := map[string]bool{}
	for _, j := range plan.Jobs {
		r, ok := byID[j.ID]
		if !ok || r.Status == scheduler.StatusSkipped || r.Status == scheduler.StatusAborted {
			continue
		}
		for _, f := range j.Files {
			set[f] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// stageResults resolves each successful fix Job's `stage` setting (spec
// §4.8) and `git add`s the matched paths.
func stageResults(ctx context.Context, backend gitrepo.Backend, plan *planner.Plan, results []scheduler.Result) error {
	byID := map[string]scheduler.Result{}
	for _, r := range results {
		byID[r.Job.ID] = r
	}
	var patterns []string
	for _, j := range plan.Jobs {
		r, ok := byID[j.ID]
		if !ok || r.Status != scheduler.StatusSucceeded {
			continue
		}
		stage := j.Step.Stage
		if !j.Step.StageSet {
			continue
		}
		for _, pattern := range stage {
			if pattern == hkconfig.JobFilesSentinel {
				patterns = append(patterns, j.Files...)
				continue
			}
			matches, err := filepath.Glob(filepath.Join(backend.Root(), j.Step.Dir, pattern))
			if err != nil {
				continue
			}
			for _, m := range matches {
				rel, relErr := filepath.Rel(backend.Root(), m)
				if relErr == nil {
					patterns = append(patterns, rel)
				}
			}
		}
	}
	if len(patterns) == 0 {
		return nil
	}
	_, err := backend.Stage(ctx, dedup(patterns))
	return err
}

// writeOutputLog overwrites the state directory's output.log with this
// run's raw per-job stdout/stderr (spec §6.4), one job per section in
// plan order so the file mirrors what the user just saw run.
func writeOutputLog(path string, results []scheduler.Result) error {
	byID := map[string]scheduler.Result{}
	for _, r := range results {
		byID[r.Job.ID] = r
	}
	var buf []byte
	for _, r := range results {
		buf = append(buf, fmt.Sprintf("=== %s (exit %d) ===\n", r.Job.ID, r.ExitCode)...)
		buf = append(buf, r.Stdout...)
		buf = append(buf, r.Stderr...)
		if len(buf) == 0 || buf[len(buf)-1] != '\n' {
			buf = append(buf, '\n')
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

func dedup(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
