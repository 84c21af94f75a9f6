package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
)

// libBackend implements Backend on top of go-git, in-process, without
// shelling out to the git binary.
type libBackend struct {
	root string
	repo *git.Repository
}

func newLibBackend(root string) (Backend, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", root, err)
	}
	return &libBackend{root: root, repo: repo}, nil
}

func (b *libBackend) Root() string { return b.root }

func toIndexState(s git.StatusCode) IndexState {
	switch s {
	case git.Added:
		return StateAdded
	case git.Modified:
		return StateModified
	case git.Deleted:
		return StateDeleted
	case git.Renamed:
		return StateRenamed
	case git.Copied:
		return StateCopied
	case git.Untracked:
		return StateUntracked
	default:
		return StateUnmodified
	}
}

func (b *libBackend) Status(_ context.Context, paths []string) ([]FileStatus, error) {
	wt, err := b.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var want map[string]bool
	if len(paths) > 0 {
		want = make(map[string]bool, len(paths))
		for _, p := range paths {
			want[p] = true
		}
	}

	out := make([]FileStatus, 0, len(st))
	for path, fs := range st {
		if want != nil && !want[path] {
			continue
		}
		out = append(out, FileStatus{
			Path:     path,
			Index:    toIndexState(fs.Staging),
			Worktree: toIndexState(fs.Worktree),
			OldPath:  fs.Extra,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Attributes classifies a path as text/binary per .gitattributes, defaulting
// to auto when no rule matches. go-git exposes no attributes matcher, so
// this reads and matches gitattributes files by hand - a small, narrow
// piece of parsing with no suitable dedicated library in the retrieved
// corpus (see DESIGN.md).
func (b *libBackend) Attributes(_ context.Context, path string) (AttrKind, error) {
	rules, err := loadGitAttributes(b.root)
	if err != nil {
		return AttrAuto, err
	}
	kind := AttrAuto
	for _, r := range rules {
		if r.match(path) {
			kind = r.kind
		}
	}
	return kind, nil
}

func (b *libBackend) BlobRead(_ context.Context, src BlobSource, path string) ([]byte, error) {
	switch src {
	case SourceHead:
		head, err := b.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to get HEAD: %w", err)
		}
		commit, err := b.repo.CommitObject(head.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to get HEAD commit: %w", err)
		}
		tree, err := commit.Tree()
		if err != nil {
			return nil, fmt.Errorf("failed to get HEAD tree: %w", err)
		}
		f, err := tree.File(path)
		if err != nil {
			return nil, fmt.Errorf("failed to find %s in HEAD: %w", path, err)
		}
		r, err := f.Reader()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = r.Close() }() //nolint:errcheck // best-effort close
		return io.ReadAll(r)
	case SourceIndex:
		idx, err := b.repo.Storer.Index()
		if err != nil {
			return nil, fmt.Errorf("failed to read index: %w", err)
		}
		entry, err := idx.Entry(path)
		if err != nil {
			return nil, fmt.Errorf("failed to find %s in index: %w", path, err)
		}
		obj, err := b.repo.BlobObject(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to read blob for %s: %w", path, err)
		}
		r, err := obj.Reader()
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }() //nolint:errcheck // best-effort close
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown blob source %v", src)
	}
}

func (b *libBackend) BlobWrite(_ context.Context, data []byte) (string, error) {
	obj := b.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("failed to open blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close() //nolint:errcheck // already failing
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob writer: %w", err)
	}
	hash, err := b.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}
	return hash.String(), nil
}

func (b *libBackend) IndexUpdate(_ context.Context, path string, mode uint32, oid string) error {
	lock := indexLockFor(b.root)
	lock.Lock()
	defer lock.Unlock()

	idx, err := b.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	hash := plumbing.NewHash(oid)
	found := false
	for _, e := range idx.Entries {
		if e.Name == path {
			e.Hash = hash
			e.Mode = filemode.FileMode(mode)
			found = true
			break
		}
	}
	if !found {
		idx.Entries = append(idx.Entries, &index.Entry{
			Name: path,
			Hash: hash,
			Mode: filemode.FileMode(mode),
		})
	}

	if err := b.repo.Storer.SetIndex(idx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// WorktreeWrite writes path atomically: temp file in the same directory,
// then rename (spec §4.1).
func (b *libBackend) WorktreeWrite(_ context.Context, path string, data []byte) error {
	full := filepath.Join(b.root, path)
	dir := filepath.Dir(full)
	tmp, err := os.CreateTemp(dir, ".hk-worktree-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()      //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if info, statErr := os.Stat(full); statErr == nil {
		_ = os.Chmod(tmpName, info.Mode()) //nolint:errcheck // best-effort permission preservation
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to rename temp file into place for %s: %w", path, err)
	}
	return nil
}

func (b *libBackend) Stage(ctx context.Context, patterns []string) ([]string, error) {
	lock := indexLockFor(b.root)
	lock.Lock()
	defer lock.Unlock()

	wt, err := b.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	matched, err := resolvePatternsToModifiedPaths(wt, patterns)
	if err != nil {
		return nil, err
	}

	staged := make([]string, 0, len(matched))
	for _, p := range matched {
		if _, err := wt.Add(p); err != nil {
			return staged, fmt.Errorf("failed to stage %s: %w", p, err)
		}
		staged = append(staged, p)
	}
	return staged, nil
}

func resolvePatternsToModifiedPaths(wt *git.Worktree, patterns []string) ([]string, error) {
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	var out []string
	for path, fs := range st {
		if fs.Worktree == git.Unmodified && fs.Worktree != git.Untracked {
			continue
		}
		if len(patterns) == 0 {
			out = append(out, path)
			continue
		}
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, path); ok || pat == path {
				out = append(out, path)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// StashPush/StashApply/StashDrop: go-git has no native stash object, so the
// library backend implements the same scoped-patch-file strategy as the
// shell backend's `git stash` equivalent, keeping both backends
// bit-identical at the Backend contract (spec §4.1) even though their
// internals differ.
func (b *libBackend) StashPush(ctx context.Context, scopePaths []string, includeUntracked bool) (StashRef, error) {
	return stashPushViaDiff(ctx, b, scopePaths, includeUntracked)
}

func (b *libBackend) StashApply(ctx context.Context, ref StashRef) (PatchOutcome, error) {
	return stashApplyViaPatch(ctx, b, ref)
}

func (b *libBackend) StashDrop(ctx context.Context, ref StashRef) error {
	return stashDropFile(ref)
}

func (b *libBackend) ApplyPatch(_ context.Context, patch []byte, stripAuto bool) (PatchOutcome, error) {
	return applyUnifiedPatch(b.root, patch, stripAuto)
}

func (b *libBackend) HooksPathLocal(_ context.Context) (string, error) {
	cfg, err := b.repo.Config()
	if err != nil {
		return "", fmt.Errorf("failed to read local config: %w", err)
	}
	if v := cfg.Raw.Section("core").Option("hooksPath"); v != "" {
		return v, nil
	}
	return filepath.Join(b.root, ".git", "hooks"), nil
}

func (b *libBackend) HooksPathGlobal(_ context.Context) (string, error) {
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err != nil {
		return "", nil //nolint:nilerr // absent global config is not an error
	}
	return cfg.Raw.Section("core").Option("hooksPath"), nil
}

func (b *libBackend) DefaultBranch(_ context.Context) (string, error) {
	cfg, err := b.repo.Config()
	if err == nil {
		if v := cfg.Raw.Section("init").Option("defaultBranch"); v != "" {
			return v, nil
		}
	}
	ref, err := b.repo.Reference(plumbing.HEAD, false)
	if err == nil && ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "main", nil
}

func (b *libBackend) MergeBase(_ context.Context, a, bRef string) (string, error) {
	aHash, err := b.resolve(a)
	if err != nil {
		return "", err
	}
	bHash, err := b.resolve(bRef)
	if err != nil {
		return "", err
	}
	aCommit, err := b.repo.CommitObject(aHash)
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", a, err)
	}
	bCommit, err := b.repo.CommitObject(bHash)
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", bRef, err)
	}
	bases, err := aCommit.MergeBase(bCommit)
	if err != nil {
		return "", fmt.Errorf("failed to compute merge base of %s and %s: %w", a, bRef, err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("no merge base between %s and %s", a, bRef)
	}
	return bases[0].Hash.String(), nil
}

func (b *libBackend) DiffNames(_ context.Context, from, to string) ([]string, error) {
	fromHash, err := b.resolve(from)
	if err != nil {
		return nil, err
	}
	toHash, err := b.resolve(to)
	if err != nil {
		return nil, err
	}
	fromCommit, err := b.repo.CommitObject(fromHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", from, err)
	}
	toCommit, err := b.repo.CommitObject(toHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", to, err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}
	var names []string
	for _, c := range changes {
		if c.To.Name != "" {
			names = append(names, c.To.Name)
		} else if c.From.Name != "" {
			names = append(names, c.From.Name)
		}
	}
	return names, nil
}

func (b *libBackend) CurrentBranch(_ context.Context) (string, error) {
	head, err := b.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", errors.New("HEAD is detached")
	}
	return head.Name().Short(), nil
}

func (b *libBackend) resolve(ref string) (plumbing.Hash, error) {
	if h, err := b.repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *h, nil
	}
	if h := plumbing.NewHash(ref); !h.IsZero() || ref == strings.Repeat("0", 40) {
		return h, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("unable to resolve reference %q", ref)
}

