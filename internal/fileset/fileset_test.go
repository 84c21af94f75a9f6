package fileset

import (
	"context"
	"testing"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkconfig"
)

// stubBackend is a minimal gitrepo.Backend covering only what ResolveBase
// needs, with canned answers for the ref-resolution calls.
type stubBackend struct {
	defaultBranch string
	mergeBase     string
	diffs         map[string][]string // "from..to" -> names
}

func (b *stubBackend) Root() string { return "/repo" }
func (b *stubBackend) Status(context.Context, []string) ([]gitrepo.FileStatus, error) {
	return nil, nil
}
func (b *stubBackend) Attributes(context.Context, string) (gitrepo.AttrKind, error) {
	return gitrepo.AttrAuto, nil
}
func (b *stubBackend) BlobRead(context.Context, gitrepo.BlobSource, string) ([]byte, error) {
	return nil, nil
}
func (b *stubBackend) BlobWrite(context.Context, []byte) (string, error) { return "", nil }
func (b *stubBackend) IndexUpdate(context.Context, string, uint32, string) error { return nil }
func (b *stubBackend) WorktreeWrite(context.Context, string, []byte) error       { return nil }
func (b *stubBackend) Stage(context.Context, []string) ([]string, error)        { return nil, nil }
func (b *stubBackend) StashPush(context.Context, []string, bool) (gitrepo.StashRef, error) {
	return gitrepo.StashRef{}, nil
}
func (b *stubBackend) StashApply(context.Context, gitrepo.StashRef) (gitrepo.PatchOutcome, error) {
	return gitrepo.PatchOK, nil
}
func (b *stubBackend) StashDrop(context.Context, gitrepo.StashRef) error { return nil }
func (b *stubBackend) ApplyPatch(context.Context, []byte, bool) (gitrepo.PatchOutcome, error) {
	return gitrepo.PatchOK, nil
}
func (b *stubBackend) HooksPathLocal(context.Context) (string, error)  { return "", nil }
func (b *stubBackend) HooksPathGlobal(context.Context) (string, error) { return "", nil }
func (b *stubBackend) DefaultBranch(context.Context) (string, error)   { return b.defaultBranch, nil }
func (b *stubBackend) MergeBase(context.Context, string, string) (string, error) {
	return b.mergeBase, nil
}
func (b *stubBackend) DiffNames(_ context.Context, from, to string) ([]string, error) {
	return b.diffs[from+".."+to], nil
}
func (b *stubBackend) CurrentBranch(context.Context) (string, error) { return "feature", nil }

func TestApplyExclude(t *testing.T) {
	files := []string{"a.go", "vendor/b.go", "c.go"}
	got := applyExclude(files, []string{"vendor/**"})
	want := []string{"a.go", "c.go"}
	if !equal(got, want) {
		t.Fatalf("applyExclude() = %v, want %v", got, want)
	}
}

func TestApplyStepFilterGlobOnly(t *testing.T) {
	step := &hkconfig.Step{Glob: []string{"**/*.go"}}
	got, err := applyStepFilter([]string{"main.go", "README.md", "pkg/x.go"}, step)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"main.go", "pkg/x.go"}
	if !equal(got, want) {
		t.Fatalf("applyStepFilter() = %v, want %v", got, want)
	}
}

func TestApplyStepFilterRegexAnchored(t *testing.T) {
	step := &hkconfig.Step{Regex: `.*\.ya?ml`}
	got, err := applyStepFilter([]string{"a.yaml", "a.yaml.bak", "b.yml"}, step)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.yaml", "b.yml"}
	if !equal(got, want) {
		t.Fatalf("applyStepFilter() = %v, want %v", got, want)
	}
}

func TestApplyStepFilterNoPositiveFiltersPassesAll(t *testing.T) {
	step := &hkconfig.Step{}
	files := []string{"a.go", "b.md"}
	got, err := applyStepFilter(files, step)
	if err != nil {
		t.Fatal(err)
	}
	if !equal(got, files) {
		t.Fatalf("applyStepFilter() = %v, want passthrough %v", got, files)
	}
}

func TestApplyStepFilterTypesOrGlob(t *testing.T) {
	step := &hkconfig.Step{Glob: []string{"*.go"}, Types: []string{"md"}}
	got, err := applyStepFilter([]string{"a.go", "b.md", "c.txt"}, step)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.go", "b.md"}
	if !equal(got, want) {
		t.Fatalf("applyStepFilter() = %v, want %v", got, want)
	}
}

func TestUnderDir(t *testing.T) {
	files := []string{"pkg/a.go", "other/b.go", "pkg/sub/c.go"}
	got := underDir(files, "pkg")
	want := []string{"pkg/a.go", "pkg/sub/c.go"}
	if !equal(got, want) {
		t.Fatalf("underDir() = %v, want %v", got, want)
	}
}

func TestAutoBatch(t *testing.T) {
	files := []string{"aaaa", "bbbb", "cccc", "dddd"}
	batches := AutoBatch(files, 12)
	if len(batches) != 2 {
		t.Fatalf("AutoBatch() = %d batches, want 2: %v", len(batches), batches)
	}
}

func TestAutoBatchDisabled(t *testing.T) {
	files := []string{"a", "b", "c"}
	batches := AutoBatch(files, 0)
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("AutoBatch(limit=0) = %v, want single batch", batches)
	}
}

func TestAssignWorkspacesNoIndicator(t *testing.T) {
	ws := AssignWorkspaces("/repo", []string{"a.go", "pkg/b.go"}, "")
	if len(ws) != 1 || ws[0].Root != "." {
		t.Fatalf("AssignWorkspaces() without indicator = %+v", ws)
	}
}

func TestResolveBasePRDiffsMergeBaseAgainstHead(t *testing.T) {
	b := &stubBackend{
		defaultBranch: "main",
		mergeBase:     "abc123",
		diffs:         map[string][]string{"abc123..HEAD": {"b.go", "a.go"}},
	}
	got, err := ResolveBase(context.Background(), b, Base{PR: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a.go", "b.go"}
	if !equal(got, want) {
		t.Fatalf("ResolveBase(PR) = %v, want %v", got, want)
	}
}

func TestResolveBaseExplicitPathsTakePriorityOverPR(t *testing.T) {
	b := &stubBackend{defaultBranch: "main", mergeBase: "abc123"}
	got, err := ResolveBase(context.Background(), b, Base{PR: true, Paths: []string{"x.go"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(got, []string{"x.go"}) {
		t.Fatalf("ResolveBase() = %v, want explicit paths to win", got)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
