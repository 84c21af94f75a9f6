// Package checkutil implements the built-in utility checkers exposed as
// `hk util <name>` (spec §6.5): trailing-whitespace, end-of-file-fixer,
// mixed-line-ending, check-merge-conflict, check-symlinks,
// check-case-conflict, check-executables-have-shebangs, and
// fix-smart-quotes. Every utility shares the same default/--fix/--diff
// contract and silently skips binary files.
package checkutil

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jdx/hk/internal/fileset"
)

// Mode selects how a utility reports or applies its findings.
type Mode int

// Recognized modes.
const (
	ModeCheck Mode = iota // default: report offending paths, exit nonzero, no changes
	ModeFix               // mutate files in place
	ModeDiff              // print a unified diff, exit nonzero if non-empty
)

// Transform is a content-rewriting rule: given a file's bytes, return the
// corrected bytes and whether anything changed. Utilities that only flag
// (never fix) a condition are modeled separately as a Flagger.
type Transform func(data []byte) (fixed []byte, changed bool)

// Flagger reports a path-level condition that has no content rewrite
// (check-merge-conflict, check-symlinks, check-executables-have-shebangs).
// check-case-conflict works over the whole path set instead (CheckCaseConflict).
type Flagger func(path string, info os.FileInfo, data []byte) (flagged bool, reason string)

// PathResult is one file's outcome.
type PathResult struct {
	Path    string
	Flagged bool   // true if the path would be (or was) changed, or a flag condition held
	Diff    string // populated only in ModeDiff
	Reason  string // populated by Flaggers
}

// RunTransform applies a Transform to every path in mode, skipping binary
// files silently (spec §6.5).
func RunTransform(paths []string, mode Mode, t Transform) ([]PathResult, error) {
	var results []PathResult
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if fileset.IsBinary(data) {
			continue
		}

		fixed, changed := t(data)
		if !changed {
			continue
		}

		res := PathResult{Path: p, Flagged: true}
		switch mode {
		case ModeFix:
			info, statErr := os.Stat(p)
			perm := os.FileMode(0o644)
			if statErr == nil {
				perm = info.Mode()
			}
			if err := os.WriteFile(p, fixed, perm); err != nil {
				return nil, fmt.Errorf("writing %s: %w", p, err)
			}
		case ModeDiff:
			res.Diff = unifiedDiff(p, data, fixed)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunFlagger applies a Flagger to every path; ModeFix/ModeDiff have no
// effect for flag-only utilities, since there is no content rewrite.
func RunFlagger(paths []string, f Flagger) ([]PathResult, error) {
	var results []PathResult
	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		var data []byte
		if info.Mode().IsRegular() {
			data, err = os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
			if fileset.IsBinary(data) {
				continue
			}
		}
		flagged, reason := f(p, info, data)
		if flagged {
			results = append(results, PathResult{Path: p, Flagged: true, Reason: reason})
		}
	}
	return results, nil
}

// unifiedDiff renders a minimal a/b-prefixed unified diff between before
// and after for one path. It is whole-file (one hunk), which is
// sufficient for the line-local rewrites every Transform performs.
func unifiedDiff(path string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	oldLines := splitKeepEnding(before)
	newLines := splitKeepEnding(after)
	fmt.Fprintf(&b, "@@ -1,%d +1,%d @@\n", len(oldLines), len(newLines))
	for _, l := range oldLines {
		b.WriteString("-" + l)
	}
	for _, l := range newLines {
		b.WriteString("+" + l)
	}
	return b.String()
}

func splitKeepEnding(data []byte) []string {
	var lines []string
	start := 0
	for i, c := range data {
		if c == '\n' {
			lines = append(lines, string(data[start:i+1]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:])+"\n")
	}
	return lines
}

// SortedPaths is a small convenience so every utility reports paths in a
// stable order regardless of the order the caller resolved them in.
func SortedPaths(results []PathResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Path)
	}
	sort.Strings(out)
	return out
}
