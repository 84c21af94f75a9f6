package hookrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jdx/hk/internal/fileset"
	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkconfig"
)

// fakeBackend is a minimal in-memory-ish Backend over a real temp
// directory, enough to exercise fileset resolution and fix-phase staging
// without a real git repository.
type fakeBackend struct {
	root    string
	staged  [][]string
	indexed map[string][]byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	dir := t.TempDir()
	return &fakeBackend{root: dir, indexed: map[string][]byte{}}
}

func (b *fakeBackend) Root() string { return b.root }

func (b *fakeBackend) Status(_ context.Context, paths []string) ([]gitrepo.FileStatus, error) {
	var out []gitrepo.FileStatus
	for _, p := range paths {
		out = append(out, gitrepo.FileStatus{Path: p, Index: gitrepo.StateModified, Worktree: gitrepo.StateUnmodified})
	}
	return out, nil
}

func (b *fakeBackend) Attributes(_ context.Context, _ string) (gitrepo.AttrKind, error) {
	return gitrepo.AttrAuto, nil
}

func (b *fakeBackend) BlobRead(_ context.Context, _ gitrepo.BlobSource, path string) ([]byte, error) {
	if data, ok := b.indexed[path]; ok {
		return data, nil
	}
	return os.ReadFile(filepath.Join(b.root, path))
}

func (b *fakeBackend) BlobWrite(_ context.Context, data []byte) (string, error) { return "oid", nil }
func (b *fakeBackend) IndexUpdate(_ context.Context, path string, _ uint32, _ string) error {
	data, err := os.ReadFile(filepath.Join(b.root, path))
	if err != nil {
		return err
	}
	b.indexed[path] = data
	return nil
}
func (b *fakeBackend) WorktreeWrite(_ context.Context, path string, data []byte) error {
	return os.WriteFile(filepath.Join(b.root, path), data, 0o644)
}
func (b *fakeBackend) Stage(_ context.Context, patterns []string) ([]string, error) {
	b.staged = append(b.staged, patterns)
	return patterns, nil
}
func (b *fakeBackend) StashPush(_ context.Context, _ []string, _ bool) (gitrepo.StashRef, error) {
	return gitrepo.StashRef{}, nil
}
func (b *fakeBackend) StashApply(_ context.Context, _ gitrepo.StashRef) (gitrepo.PatchOutcome, error) {
	return gitrepo.PatchOK, nil
}
func (b *fakeBackend) StashDrop(_ context.Context, _ gitrepo.StashRef) error { return nil }
func (b *fakeBackend) ApplyPatch(_ context.Context, _ []byte, _ bool) (gitrepo.PatchOutcome, error) {
	return gitrepo.PatchOK, nil
}
func (b *fakeBackend) HooksPathLocal(_ context.Context) (string, error)  { return "", nil }
func (b *fakeBackend) HooksPathGlobal(_ context.Context) (string, error) { return "", nil }
func (b *fakeBackend) DefaultBranch(_ context.Context) (string, error)   { return "main", nil }
func (b *fakeBackend) MergeBase(_ context.Context, _, _ string) (string, error) { return "", nil }
func (b *fakeBackend) DiffNames(_ context.Context, _, _ string) ([]string, error) { return nil, nil }
func (b *fakeBackend) CurrentBranch(_ context.Context) (string, error) { return "main", nil }

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunCheckHookPassesAndFails(t *testing.T) {
	b := newFakeBackend(t)
	writeFile(t, b.root, "a.go", "package a\n")

	hook := &hkconfig.Hook{
		Steps: hkconfig.StepList{
			{Name: "ok", Step: &hkconfig.Step{Name: "ok", Glob: []string{"*.go"}, Check: "true"}},
			{Name: "bad", Step: &hkconfig.Step{Name: "bad", Glob: []string{"*.go"}, Check: "false"}},
		},
	}

	res, err := Run(context.Background(), Options{
		HookName: "check",
		Hook:     hook,
		RunType:  hkconfig.RunCheck,
		Backend:  b,
		Base:     fileset.Base{Paths: []string{"a.go"}},
		Workers:  2,
	})
	if err == nil {
		t.Fatal("expected an error from the failing step")
	}
	if len(res.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(res.Jobs))
	}
}

func TestRunFixHookStagesOutput(t *testing.T) {
	b := newFakeBackend(t)
	writeFile(t, b.root, "a.txt", "hello \n")

	hook := &hkconfig.Hook{
		Fix:   true,
		Stash: hkconfig.StashNone,
		Steps: hkconfig.StepList{
			{Name: "trim", Step: &hkconfig.Step{
				Name: "trim", Glob: []string{"*.txt"},
				Fix:      "printf 'hello\\n' > {{files}}",
				Stage:    []string{hkconfig.JobFilesSentinel},
				StageSet: true,
			}},
		},
	}

	_, err := Run(context.Background(), Options{
		HookName: "fix",
		Hook:     hook,
		RunType:  hkconfig.RunFix,
		Backend:  b,
		Base:     fileset.Base{Paths: []string{"a.txt"}},
		Workers:  1,
		Stage:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.staged) == 0 {
		t.Fatal("expected the fixed file to be staged")
	}
}
