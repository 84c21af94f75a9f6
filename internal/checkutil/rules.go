package checkutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// TrailingWhitespace removes trailing space/tab characters from every
// line, preserving each line's own ending (CRLF stays CRLF) unless the
// file's endings are mixed, in which case the file is left to
// MixedLineEnding to normalize.
func TrailingWhitespace(data []byte) ([]byte, bool) {
	lines, endings := splitLines(data)
	changed := false
	for i, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if trimmed != l {
			lines[i] = trimmed
			changed = true
		}
	}
	if !changed {
		return data, false
	}
	return joinLines(lines, endings), true
}

// EndOfFileFixer ensures the file ends with exactly one trailing newline.
// Idempotent: a file already ending in exactly one `\n` is left alone.
func EndOfFileFixer(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return data, false
	}
	trimmed := bytes.TrimRight(data, "\n")
	want := append(append([]byte{}, trimmed...), '\n')
	if bytes.Equal(want, data) {
		return data, false
	}
	return want, true
}

// MixedLineEnding normalizes every line ending to LF when the file mixes
// CRLF and LF; a file using one ending consistently is left untouched.
func MixedLineEnding(data []byte) ([]byte, bool) {
	hasCRLF := bytes.Contains(data, []byte("\r\n"))
	bareCR := bytes.IndexByte(data, '\r')
	lfOnly := false
	for bareCR >= 0 {
		if bareCR+1 >= len(data) || data[bareCR+1] != '\n' {
			lfOnly = true
			break
		}
		next := bytes.IndexByte(data[bareCR+1:], '\r')
		if next < 0 {
			break
		}
		bareCR = bareCR + 1 + next
	}
	mixed := hasCRLF && (lfOnly || bytes.Count(data, []byte("\n")) != bytes.Count(data, []byte("\r\n")))
	if !mixed {
		return data, false
	}
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
	return normalized, true
}

// mergeConflictMarkers are the column-1 markers check-merge-conflict
// flags. Prefixes, not full lines: git appends the ref name after these.
var mergeConflictMarkers = []string{"<<<<<<< ", "======= ", ">>>>>>> "}

// CheckMergeConflict flags files containing a merge-conflict marker at
// column 1, but only when the repository is mid-merge/rebase (or
// assumeInMerge is forced via --assume-in-merge).
func CheckMergeConflict(repoRoot string, assumeInMerge bool) Flagger {
	inMerge := assumeInMerge || inMergeOrRebaseState(repoRoot)
	return func(path string, info os.FileInfo, data []byte) (bool, string) {
		if !inMerge || !info.Mode().IsRegular() {
			return false, ""
		}
		for _, line := range strings.Split(string(data), "\n") {
			for _, marker := range mergeConflictMarkers {
				if strings.HasPrefix(line, marker) {
					return true, "merge conflict marker: " + strings.TrimSpace(line)
				}
			}
		}
		return false, ""
	}
}

func inMergeOrRebaseState(repoRoot string) bool {
	for _, marker := range []string{"MERGE_HEAD", "rebase-apply", "rebase-merge"} {
		if _, err := os.Stat(filepath.Join(repoRoot, ".git", marker)); err == nil {
			return true
		}
	}
	return false
}

// CheckSymlinks flags a path that is a symlink whose target does not
// exist (a broken symlink).
func CheckSymlinks() Flagger {
	return func(path string, info os.FileInfo, _ []byte) (bool, string) {
		if info.Mode()&os.ModeSymlink == 0 {
			return false, ""
		}
		if _, err := os.Stat(path); err != nil {
			return true, "broken symlink"
		}
		return false, ""
	}
}

// CheckCaseConflict flags every path in a set that collides with another
// path once compared case-insensitively, on a filesystem where that
// comparison would otherwise have distinguished them.
func CheckCaseConflict(paths []string) []PathResult {
	byLower := map[string][]string{}
	for _, p := range paths {
		key := strings.ToLower(p)
		byLower[key] = append(byLower[key], p)
	}
	var results []PathResult
	for _, group := range byLower {
		if len(group) < 2 {
			continue
		}
		for _, p := range group {
			results = append(results, PathResult{
				Path: p, Flagged: true,
				Reason: "case-conflicts with " + strings.Join(without(group, p), ", "),
			})
		}
	}
	return results
}

func without(all []string, exclude string) []string {
	out := make([]string, 0, len(all)-1)
	for _, v := range all {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out
}

// CheckExecutablesHaveShebangs flags a regular, executable file whose
// first two bytes are not `#!`.
func CheckExecutablesHaveShebangs() Flagger {
	return func(path string, info os.FileInfo, data []byte) (bool, string) {
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return false, ""
		}
		if len(data) >= 2 && data[0] == '#' && data[1] == '!' {
			return false, ""
		}
		return true, "executable file missing a shebang"
	}
}

// smartQuoteReplacements maps curly/fullwidth quote characters to their
// ASCII equivalents.
var smartQuoteReplacements = map[rune]rune{
	'“': '"', '”': '"', // left/right double quotation mark
	'‘': '\'', '’': '\'', // left/right single quotation mark
	'＂': '"', // fullwidth quotation mark
	'＇': '\'', // fullwidth apostrophe
}

// FixSmartQuotes replaces curly and fullwidth quote characters with their
// ASCII equivalents.
func FixSmartQuotes(data []byte) ([]byte, bool) {
	changed := false
	out := []rune(string(data))
	for i, r := range out {
		if repl, ok := smartQuoteReplacements[r]; ok {
			out[i] = repl
			changed = true
		}
	}
	if !changed {
		return data, false
	}
	return []byte(string(out)), true
}

// splitLines splits data into lines without their terminators, recording
// each line's original ending ("\n", "\r\n", or "" for a final partial
// line) so callers can reassemble byte-exactly.
func splitLines(data []byte) (lines []string, endings []string) {
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		end := i
		ending := "\n"
		if end > start && data[end-1] == '\r' {
			end--
			ending = "\r\n"
		}
		lines = append(lines, string(data[start:end]))
		endings = append(endings, ending)
		start = i + 1
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
		endings = append(endings, "")
	}
	return lines, endings
}

func joinLines(lines, endings []string) []byte {
	var b bytes.Buffer
	for i, l := range lines {
		b.WriteString(l)
		b.WriteString(endings[i])
	}
	return b.Bytes()
}
