// Package fixer applies a step's fix-phase precedence (spec §4.7):
// check_diff (parse+apply a unified diff) → check_list_files (narrow the
// file set, then run fix) → fix (run directly). Check-only mode never
// mutates files.
package fixer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/herr"
)

// Exec runs one rendered command and captures its result. Implementations
// live in internal/hookrun, alongside process spawning and env/cwd setup.
type Exec func(ctx context.Context, command string, files []string) (stdout, stderr []byte, exitCode int, err error)

// Outcome is what applying a step's fix phase produced.
type Outcome struct {
	Applied    bool     // true if any mutation (patch apply or fix command) ran
	Files      []string // the (possibly narrowed) file set fix actually saw
	Diagnostic string   // stderr / warning text surfaced to reporting
}

// Apply runs the fix-phase precedence for one step against files, using
// run to execute check_diff/check_list_files/fix and backend.ApplyPatch to
// materialize a check_diff's output.
func Apply(ctx context.Context, backend gitrepo.Backend, checkDiff, checkListFiles, fixCmd string, files []string, run Exec) (Outcome, error) {
	if checkDiff != "" {
		stdout, _, exitCode, err := run(ctx, checkDiff, files)
		if err == nil && exitCode == 0 {
			diff := extractUnifiedDiff(stdout)
			if diff != nil {
				outcome, applyErr := backend.ApplyPatch(ctx, diff, true)
				if applyErr == nil && outcome == gitrepo.PatchOK {
					return Outcome{Applied: true, Files: files}, nil
				}
			}
		}
		// malformed diff or failed apply: fall back to fix, per spec §4.7.1.
	}

	if checkListFiles != "" {
		stdout, stderr, exitCode, err := run(ctx, checkListFiles, files)
		if err != nil {
			return Outcome{}, fmt.Errorf("running check_list_files: %w", err)
		}
		list := splitLines(stdout)
		switch {
		case exitCode != 0 && len(list) == 0 && len(stderr) > 0:
			return Outcome{}, &herr.JobFailure{Step: "check_list_files", Code: exitCode}
		case exitCode == 0 && len(list) > 0:
			// misconfiguration: exit 0 means "nothing to do" even though a list
			// was printed. Warn and skip the fixer.
			return Outcome{Diagnostic: "check_list_files exited 0 with a non-empty file list; skipping fix"}, nil
		case exitCode != 0 && len(list) > 0:
			files = intersect(files, list)
		}
	}

	if fixCmd == "" {
		return Outcome{Files: files}, nil
	}

	_, stderr, exitCode, err := run(ctx, fixCmd, files)
	if err != nil {
		return Outcome{}, fmt.Errorf("running fix: %w", err)
	}
	if exitCode != 0 {
		return Outcome{Files: files, Diagnostic: string(stderr)}, &herr.JobFailure{Step: "fix", Code: exitCode}
	}
	return Outcome{Applied: true, Files: files}, nil
}

// extractUnifiedDiff locates the diff body within stdout that may be
// surrounded by diagnostic lines (spec §4.7: "first line matching `^--- `
// through the final hunk").
func extractUnifiedDiff(stdout []byte) []byte {
	lines := strings.Split(string(stdout), "\n")
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "--- ") {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		if strings.HasPrefix(lines[i], "@@ ") || strings.HasPrefix(lines[i], "+") || strings.HasPrefix(lines[i], "-") || strings.HasPrefix(lines[i], " ") {
			end = i + 1
			break
		}
	}
	body := strings.Join(lines[start:end], "\n")
	if body == "" {
		return nil
	}
	return []byte(body + "\n")
}

func splitLines(data []byte) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	set := map[string]bool{}
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}
