package hookrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdx/hk/internal/fixer"
	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/obs"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/render"
	"github.com/jdx/hk/internal/scheduler"
)

// jobRunner executes one planner.Job's command(s) in a shell, implementing
// scheduler.Runner. Template rendering (internal/render), fix-phase
// precedence (internal/fixer), and process spawning all happen here so
// the scheduler itself stays free of exec/template concerns.
type jobRunner struct {
	backend gitrepo.Backend
	logger  *obs.Logger
	hookEnv map[string]string
	fix     bool
}

// Run implements scheduler.Runner.
func (r *jobRunner) Run(ctx context.Context, job planner.Job) (scheduler.Outcome, error) {
	step := job.Step
	dir := step.Dir
	if dir == "" {
		dir = "."
	}
	absDir := filepath.Join(r.backend.Root(), dir)

	tmp, err := os.MkdirTemp("", "hk-job-*")
	if err != nil {
		return scheduler.Outcome{Err: err}, nil
	}
	defer os.RemoveAll(tmp)

	vars := templateVars(step, job.Files, r.backend.Root(), job.Workspace, tmp)
	run := r.execFor(step, absDir, vars)

	if !r.fix {
		cmd := firstNonEmpty(step.Check, step.CheckDiff, step.CheckListFiles)
		stdout, stderr, code, execErr := run(ctx, cmd, job.Files)
		if execErr != nil {
			return scheduler.Outcome{Err: execErr}, nil
		}
		return scheduler.Outcome{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
	}

	if step.CheckFirst {
		// check_first: run the step's check command before the fixer and
		// skip the fixer entirely if it already passes (spec §4.4).
		if cmd := firstNonEmpty(step.Check, step.CheckDiff, step.CheckListFiles); cmd != "" {
			stdout, stderr, code, execErr := run(ctx, cmd, job.Files)
			if execErr != nil {
				return scheduler.Outcome{Err: execErr}, nil
			}
			if code == 0 {
				return scheduler.Outcome{ExitCode: 0, Stdout: stdout, Stderr: stderr}, nil
			}
		}
	}

	out, applyErr := fixer.Apply(ctx, r.backend, step.CheckDiff, step.CheckListFiles, step.Fix, job.Files, run)
	if applyErr != nil {
		return scheduler.Outcome{ExitCode: 1, Stderr: []byte(out.Diagnostic), Err: applyErr}, nil
	}
	return scheduler.Outcome{ExitCode: 0, Stderr: []byte(out.Diagnostic)}, nil
}

// execFor builds the fixer.Exec closure a Job's check/fix phase uses: it
// renders the given template field against vars, runs it in a shell with
// step.Prefix prepended unquoted, and captures stdout/stderr/exit code.
func (r *jobRunner) execFor(step *hkconfig.Step, dir string, vars map[string]string) fixer.Exec {
	return func(ctx context.Context, command string, files []string) ([]byte, []byte, int, error) {
		if command == "" {
			return nil, nil, 0, nil
		}
		tmpl, err := render.Parse(command)
		if err != nil {
			return nil, nil, 0, err
		}
		rendered := tmpl.Render(vars)
		if step.Prefix != "" {
			rendered = step.Prefix + " " + rendered
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", rendered)
		cmd.Dir = dir
		cmd.Env = composeEnv(r.hookEnv, step.Env)

		if step.Stdin != "" {
			stdinTmpl, err := render.Parse(step.Stdin)
			if err != nil {
				return nil, nil, 0, err
			}
			cmd.Stdin = strings.NewReader(stdinTmpl.Render(vars))
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if runErr == nil {
			return stdout.Bytes(), stderr.Bytes(), 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), -1, runErr
	}
}

// templateVars builds the variable set for the §4.5 command templates.
// workspace is the Job's workspace root (spec §4.2 step 6: "." unless the
// step declared a workspace_indicator), not the step's `dir` override.
func templateVars(step *hkconfig.Step, files []string, root, workspace, tmp string) map[string]string {
	rel := make([]string, len(files))
	copy(rel, files)
	sort.Strings(rel)

	quoted := make([]string, len(rel))
	for i, f := range rel {
		quoted[i] = shellQuote(f)
	}

	vars := map[string]string{
		"files":           strings.Join(quoted, " "),
		"files_list":      strings.Join(rel, "\n"),
		"workspace":       workspace,
		"workspace_files": strings.Join(quoted, " "),
		"globs":           strings.Join(step.Glob, " "),
		"tmp":             tmp,
		"root":            root,
	}
	if step.MakeFilespathFile {
		path := filepath.Join(tmp, "files")
		_ = os.WriteFile(path, []byte(strings.Join(rel, "\n")), 0o600)
		vars["filepaths_file"] = path
	}
	return vars
}

// composeEnv builds a Job's process environment: process env, then hook
// env, then step env, each layer overriding the last (spec §4.5). The
// inherited process env is filtered through gitrepo.FilterInheritedGitEnv
// first, since hk itself may be running under a GIT_INDEX_FILE/GIT_DIR
// set by an enclosing git hook invocation that a fixer subprocess must
// not inherit unfiltered.
func composeEnv(hookEnv, stepEnv map[string]string) []string {
	processEnv := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			processEnv[kv[:i]] = kv[i+1:]
		}
	}
	merged := gitrepo.FilterInheritedGitEnv(processEnv)
	for k, v := range hookEnv {
		merged[k] = v
	}
	for k, v := range stepEnv {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// shellQuote wraps a path in single quotes, escaping any embedded quote,
// so file names containing spaces or shell metacharacters render safely
// into a command template.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
