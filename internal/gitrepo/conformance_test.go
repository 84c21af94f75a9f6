package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initConformanceRepo builds a small real git repository: one committed
// file and one untracked file, so Status has something to report besides
// "clean". Skips if no git binary is on PATH, since the shell backend has
// no other way to exist.
func initConformanceRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=hk-conformance",
			"GIT_AUTHOR_EMAIL=hk-conformance@example.com",
			"GIT_COMMITTER_NAME=hk-conformance",
			"GIT_COMMITTER_EMAIL=hk-conformance@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-q", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")

	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("wip\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestBackendsAgreeOnSharedOperations proves the shell and library backends
// observe identical state for the same repository (spec §4.1: "every
// method must behave identically whether backed by go-git or a git
// subprocess").
func TestBackendsAgreeOnSharedOperations(t *testing.T) {
	dir := initConformanceRepo(t)

	shell, err := newShellBackend(dir)
	if err != nil {
		t.Fatalf("newShellBackend: %v", err)
	}
	lib, err := newLibBackend(dir)
	if err != nil {
		t.Fatalf("newLibBackend: %v", err)
	}

	ctx := context.Background()

	if got, want := shell.Root(), lib.Root(); got != want {
		t.Fatalf("Root: shell=%q lib=%q", got, want)
	}

	shellBranch, err := shell.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("shell.CurrentBranch: %v", err)
	}
	libBranch, err := lib.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("lib.CurrentBranch: %v", err)
	}
	if shellBranch != libBranch {
		t.Fatalf("CurrentBranch: shell=%q lib=%q", shellBranch, libBranch)
	}

	shellDefault, err := shell.DefaultBranch(ctx)
	if err != nil {
		t.Fatalf("shell.DefaultBranch: %v", err)
	}
	libDefault, err := lib.DefaultBranch(ctx)
	if err != nil {
		t.Fatalf("lib.DefaultBranch: %v", err)
	}
	if shellDefault != libDefault {
		t.Fatalf("DefaultBranch: shell=%q lib=%q", shellDefault, libDefault)
	}

	shellStatus, err := shell.Status(ctx, nil)
	if err != nil {
		t.Fatalf("shell.Status: %v", err)
	}
	libStatus, err := lib.Status(ctx, nil)
	if err != nil {
		t.Fatalf("lib.Status: %v", err)
	}
	if !statusesEqual(shellStatus, libStatus) {
		t.Fatalf("Status mismatch:\nshell=%+v\nlib=%+v", shellStatus, libStatus)
	}

	shellBlob, err := shell.BlobRead(ctx, SourceIndex, "README.md")
	if err != nil {
		t.Fatalf("shell.BlobRead: %v", err)
	}
	libBlob, err := lib.BlobRead(ctx, SourceIndex, "README.md")
	if err != nil {
		t.Fatalf("lib.BlobRead: %v", err)
	}
	if string(shellBlob) != string(libBlob) {
		t.Fatalf("BlobRead: shell=%q lib=%q", shellBlob, libBlob)
	}
}

func statusesEqual(a, b []FileStatus) bool {
	if len(a) != len(b) {
		return false
	}
	byPath := make(map[string]FileStatus, len(a))
	for _, s := range a {
		byPath[s.Path] = s
	}
	for _, s := range b {
		other, ok := byPath[s.Path]
		if !ok || other.Index != s.Index || other.Worktree != s.Worktree {
			return false
		}
	}
	return true
}
