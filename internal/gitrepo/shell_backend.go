package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// shellBackend implements Backend by shelling out to the git binary. It
// must remain behaviorally identical to libBackend for every operation
// (spec §4.1); internal/gitrepo/conformance_test.go runs the same table
// against both.
type shellBackend struct {
	root string
}

func newShellBackend(root string) (Backend, error) {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = root
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("not a git repository (or git not on PATH): %w", err)
	}
	return &shellBackend{root: root}, nil
}

func (b *shellBackend) Root() string { return b.root }

func (b *shellBackend) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = b.root
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}

// Status parses `git status --porcelain=v1 -z` output. The -z form uses NUL
// separators and emits the original path after the new path (separately,
// also NUL-terminated) for renames/copies, per spec §4.1.
func (b *shellBackend) Status(ctx context.Context, paths []string) ([]FileStatus, error) {
	args := []string{"status", "--porcelain=v1", "-z", "--"}
	args = append(args, paths...)
	out, err := b.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	var results []FileStatus
	fields := strings.Split(strings.TrimRight(string(out), "\x00"), "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if entry == "" {
			continue
		}
		if len(entry) < 4 {
			continue
		}
		x, y := entry[0], entry[1]
		path := entry[3:]

		fs := FileStatus{
			Path:     path,
			Index:    porcelainState(x),
			Worktree: porcelainState(y),
		}
		if (x == 'R' || x == 'C') && i+1 < len(fields) {
			i++
			fs.OldPath = fields[i]
		}
		results = append(results, fs)
	}
	return results, nil
}

func porcelainState(c byte) IndexState {
	switch c {
	case 'A':
		return StateAdded
	case 'M':
		return StateModified
	case 'D':
		return StateDeleted
	case 'R':
		return StateRenamed
	case 'C':
		return StateCopied
	case '?':
		return StateUntracked
	default:
		return StateUnmodified
	}
}

func (b *shellBackend) Attributes(_ context.Context, path string) (AttrKind, error) {
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

// BlobRead returns raw, newline-preserving bytes - `git show` never
// rewrites line endings, so Output() bytes are used directly rather than
// any line-oriented reader (spec §4.1 requires this explicitly).
func (b *shellBackend) BlobRead(ctx context.Context, src BlobSource, path string) ([]byte, error) {
	var rev string
	switch src {
	case SourceIndex:
		rev = ":" + path
	case SourceHead:
		rev = "HEAD:" + path
	default:
		return nil, fmt.Errorf("unknown blob source %v", src)
	}
	return b.git(ctx, "show", rev)
}

func (b *shellBackend) BlobWrite(ctx context.Context, data []byte) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "hash-object", "-w", "--stdin")
	cmd.Dir = b.root
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git hash-object: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *shellBackend) IndexUpdate(ctx context.Context, path string, mode uint32, oid string) error {
	lock := indexLockFor(b.root)
	lock.Lock()
	defer lock.Unlock()

	_, err := b.git(ctx, "update-index", "--add", "--cacheinfo",
		fmt.Sprintf("%o,%s,%s", mode, oid, path))
	return err
}

func (b *shellBackend) WorktreeWrite(_ context.Context, path string, data []byte) error {
	return writeAtomic(joinRoot(b.root, path), data)
}

func (b *shellBackend) Stage(ctx context.Context, patterns []string) ([]string, error) {
	lock := indexLockFor(b.root)
	lock.Lock()
	defer lock.Unlock()

	statusOut, err := b.git(ctx, "status", "--porcelain=v1", "-z")
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, entry := range strings.Split(strings.TrimRight(string(statusOut), "\x00"), "\x00") {
		if len(entry) < 4 {
			continue
		}
		path := entry[3:]
		if len(patterns) == 0 {
			matched = append(matched, path)
			continue
		}
		for _, pat := range patterns {
			if pat == path {
				matched = append(matched, path)
				break
			}
			if ok, _ := filepath.Match(pat, path); ok {
				matched = append(matched, path)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	args := append([]string{"add", "--"}, matched...)
	if _, err := b.git(ctx, args...); err != nil {
		return nil, err
	}
	return matched, nil
}

func (b *shellBackend) StashPush(ctx context.Context, scopePaths []string, includeUntracked bool) (StashRef, error) {
	return stashPushViaDiff(ctx, b, scopePaths, includeUntracked)
}

func (b *shellBackend) StashApply(ctx context.Context, ref StashRef) (PatchOutcome, error) {
	return stashApplyViaPatch(ctx, b, ref)
}

func (b *shellBackend) StashDrop(_ context.Context, ref StashRef) error {
	return stashDropFile(ref)
}

// ApplyPatch uses the same hand-rolled applier as libBackend so both
// backends produce identical results rather than relying on `git apply`'s
// own (slightly different) fuzz and whitespace heuristics.
func (b *shellBackend) ApplyPatch(_ context.Context, patch []byte, stripAuto bool) (PatchOutcome, error) {
	return applyUnifiedPatch(b.root, patch, stripAuto)
}

func (b *shellBackend) HooksPathLocal(ctx context.Context) (string, error) {
	out, err := b.git(ctx, "config", "--get", "core.hooksPath")
	if err != nil {
		return joinRoot(b.root, ".git/hooks"), nil //nolint:nilerr // unset config is not an error
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *shellBackend) HooksPathGlobal(ctx context.Context) (string, error) {
	out, err := b.git(ctx, "config", "--global", "--get", "core.hooksPath")
	if err != nil {
		return "", nil //nolint:nilerr // unset global config is not an error
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *shellBackend) DefaultBranch(ctx context.Context) (string, error) {
	if out, err := b.git(ctx, "config", "--get", "init.defaultBranch"); err == nil {
		if v := strings.TrimSpace(string(out)); v != "" {
			return v, nil
		}
	}
	if out, err := b.git(ctx, "symbolic-ref", "--short", "HEAD"); err == nil {
		return strings.TrimSpace(string(out)), nil
	}
	return "main", nil
}

func (b *shellBackend) MergeBase(ctx context.Context, a, bRef string) (string, error) {
	out, err := b.git(ctx, "merge-base", a, bRef)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *shellBackend) DiffNames(ctx context.Context, from, to string) ([]string, error) {
	out, err := b.git(ctx, "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

func (b *shellBackend) CurrentBranch(ctx context.Context) (string, error) {
	out, err := b.git(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", errors.New("HEAD is detached")
	}
	return strings.TrimSpace(string(out)), nil
}

func joinRoot(root, path string) string {
	if strings.HasPrefix(path, root) {
		return path
	}
	return filepath.Join(root, path)
}
