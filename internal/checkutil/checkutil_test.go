package checkutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTrailingWhitespace(t *testing.T) {
	fixed, changed := TrailingWhitespace([]byte("a  \nb\t\nc\n"))
	if !changed {
		t.Fatal("expected change")
	}
	if string(fixed) != "a\nb\nc\n" {
		t.Fatalf("got %q", fixed)
	}

	if _, changed := TrailingWhitespace([]byte("a\nb\n")); changed {
		t.Fatal("expected no change for already-clean input")
	}
}

func TestEndOfFileFixer(t *testing.T) {
	fixed, changed := EndOfFileFixer([]byte("a\nb"))
	if !changed || string(fixed) != "a\nb\n" {
		t.Fatalf("got %q changed=%v", fixed, changed)
	}

	fixed, changed = EndOfFileFixer([]byte("a\nb\n\n\n"))
	if !changed || string(fixed) != "a\nb\n" {
		t.Fatalf("got %q changed=%v", fixed, changed)
	}

	if _, changed := EndOfFileFixer([]byte("a\nb\n")); changed {
		t.Fatal("expected no change for already-correct input")
	}
}

func TestMixedLineEnding(t *testing.T) {
	fixed, changed := MixedLineEnding([]byte("a\r\nb\nc\r\n"))
	if !changed {
		t.Fatal("expected change")
	}
	if string(fixed) != "a\nb\nc\n" {
		t.Fatalf("got %q", fixed)
	}

	if _, changed := MixedLineEnding([]byte("a\nb\nc\n")); changed {
		t.Fatal("expected no change for all-LF input")
	}
	if _, changed := MixedLineEnding([]byte("a\r\nb\r\n")); changed {
		t.Fatal("expected no change for all-CRLF input")
	}
}

func TestFixSmartQuotes(t *testing.T) {
	fixed, changed := FixSmartQuotes([]byte("“hello” and ‘world’"))
	if !changed {
		t.Fatal("expected change")
	}
	if string(fixed) != `"hello" and 'world'` {
		t.Fatalf("got %q", fixed)
	}

	if _, changed := FixSmartQuotes([]byte(`"plain"`)); changed {
		t.Fatal("expected no change for plain quotes")
	}
}

func TestCheckExecutablesHaveShebangs(t *testing.T) {
	dir := t.TempDir()
	shebang := writeTemp(t, dir, "good.sh", "#!/bin/sh\necho hi\n")
	if err := os.Chmod(shebang, 0o755); err != nil {
		t.Fatal(err)
	}
	noShebang := writeTemp(t, dir, "bad.sh", "echo hi\n")
	if err := os.Chmod(noShebang, 0o755); err != nil {
		t.Fatal(err)
	}
	notExec := writeTemp(t, dir, "plain.txt", "echo hi\n")

	results, err := RunFlagger([]string{shebang, noShebang, notExec}, CheckExecutablesHaveShebangs())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != noShebang {
		t.Fatalf("expected only %s flagged, got %+v", noShebang, results)
	}
}

func TestCheckCaseConflict(t *testing.T) {
	results := CheckCaseConflict([]string{"README.md", "readme.md", "other.go"})
	if len(results) != 2 {
		t.Fatalf("expected 2 conflicting paths, got %+v", results)
	}
	for _, r := range results {
		if !r.Flagged {
			t.Fatalf("expected flagged result: %+v", r)
		}
	}
}

func TestCheckSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := writeTemp(t, dir, "target.txt", "hi\n")
	goodLink := filepath.Join(dir, "good-link")
	if err := os.Symlink(target, goodLink); err != nil {
		t.Fatal(err)
	}
	brokenLink := filepath.Join(dir, "broken-link")
	if err := os.Symlink(filepath.Join(dir, "missing.txt"), brokenLink); err != nil {
		t.Fatal(err)
	}

	results, err := RunFlagger([]string{goodLink, brokenLink}, CheckSymlinks())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != brokenLink {
		t.Fatalf("expected only %s flagged, got %+v", brokenLink, results)
	}
}

func TestRunTransformModeDiff(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "a.txt", "a  \n")

	results, err := RunTransform([]string{p}, ModeDiff, TrailingWhitespace)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Diff == "" {
		t.Fatalf("expected a diff, got %+v", results)
	}
	if got, err := os.ReadFile(p); err != nil || string(got) != "a  \n" {
		t.Fatalf("ModeDiff must not mutate the file, got %q err=%v", got, err)
	}
}

func TestRunTransformModeFixPreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "a.sh", "#!/bin/sh  \n")
	if err := os.Chmod(p, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := RunTransform([]string{p}, ModeFix, TrailingWhitespace); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode preserved, got %v", info.Mode().Perm())
	}
	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "#!/bin/sh\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRunSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bin.dat")
	if err := os.WriteFile(p, []byte("a  \x00b  "), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := RunTransform([]string{p}, ModeFix, TrailingWhitespace)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected binary file skipped, got %+v", results)
	}
}

func TestDispatchUnknownUtility(t *testing.T) {
	if _, err := Run("nonexistent", nil, ModeCheck, "", false); err == nil {
		t.Fatal("expected error for unknown utility")
	}
}
