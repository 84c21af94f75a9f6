// Package stephtest is the declarative per-step test harness backing
// `hk test` (SPEC_FULL §4.10), grounded on the teacher's tests/integration
// shape: seed a synthetic workspace (before), run a step's check or fix
// command against it, and assert on exit status, rewritten file content
// (write), and file existence (expect.files).
package stephtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/render"
)

// Result is one test case's outcome.
type Result struct {
	Step    string
	Name    string
	Passed  bool
	Message string
}

// Run executes one declarative step test case in an isolated temp
// directory and reports whether its expectations held.
func Run(ctx context.Context, step *hkconfig.Step, test hkconfig.StepTest) Result {
	dir, err := os.MkdirTemp("", "hk-steptest-*")
	if err != nil {
		return fail(step, test, fmt.Sprintf("creating workspace: %v", err))
	}
	defer os.RemoveAll(dir)

	files, err := seed(dir, test.Before)
	if err != nil {
		return fail(step, test, err.Error())
	}

	command := step.Check
	if test.Run == "fix" {
		command = step.Fix
	}
	if command == "" {
		return fail(step, test, fmt.Sprintf("step has no %q command", test.Run))
	}

	status, _, _, err := execCommand(ctx, dir, command, files)
	if err != nil {
		return fail(step, test, err.Error())
	}
	if test.Expect.Status != 0 && status != test.Expect.Status {
		return fail(step, test, fmt.Sprintf("expected exit %d, got %d", test.Expect.Status, status))
	}

	for name, want := range test.Write {
		got, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			return fail(step, test, fmt.Sprintf("reading %s: %v", name, readErr))
		}
		if string(got) != want {
			return fail(step, test, fmt.Sprintf("%s: content mismatch, got %q want %q", name, got, want))
		}
	}

	for _, name := range test.Expect.Files {
		if _, statErr := os.Stat(filepath.Join(dir, name)); statErr != nil {
			return fail(step, test, fmt.Sprintf("expected file %s not found", name))
		}
	}

	return Result{Step: step.Name, Name: test.Name, Passed: true}
}

func seed(dir string, before map[string]string) ([]string, error) {
	var files []string
	for name, content := range before {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func execCommand(ctx context.Context, dir, command string, files []string) (status int, stdout, stderr []byte, err error) {
	tmpl, err := render.Parse(command)
	if err != nil {
		return 0, nil, nil, err
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "'" + strings.ReplaceAll(f, "'", `'\''`) + "'"
	}
	rendered := tmpl.Render(map[string]string{
		"files":      strings.Join(quoted, " "),
		"files_list": strings.Join(files, "\n"),
		"root":       dir,
		"workspace":  ".",
	})

	cmd := exec.CommandContext(ctx, "sh", "-c", rendered)
	cmd.Dir = dir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr == nil {
		return 0, outBuf.Bytes(), errBuf.Bytes(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), outBuf.Bytes(), errBuf.Bytes(), nil
	}
	return 0, outBuf.Bytes(), errBuf.Bytes(), runErr
}

func fail(step *hkconfig.Step, test hkconfig.StepTest, msg string) Result {
	return Result{Step: step.Name, Name: test.Name, Passed: false, Message: msg}
}
