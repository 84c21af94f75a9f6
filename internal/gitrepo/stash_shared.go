package gitrepo

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoChangesToStash is returned by StashPush when scopePaths have no
// unstaged changes and untracked files were not requested. The captured
// patch is a `git diff` of tracked files only: untracked files are never
// captured, even when requested.
var ErrNoChangesToStash = errors.New("no changes to stash")

// stashPatchDir is where captured patches live for the lifetime of a run.
// Both backends implement stash_push/apply/drop the same way (a scoped
// `git diff` captured to a patch file, replayed with `git apply`) since
// go-git has no native stash equivalent - the teacher repo itself falls
// back to shelling out for this operation even in its library-backed path.
var stashPatchDir = filepath.Join(os.TempDir(), "hk-stash")

var stashRegistryMu sync.Mutex
var stashRegistry = map[string]string{} // StashRef.ID -> patch file path

func stashPushViaDiff(_ context.Context, b interface{ Root() string }, scopePaths []string, includeUntracked bool) (StashRef, error) {
	root := b.Root()

	args := []string{"diff", "--binary", "--"}
	args = append(args, scopePaths...)
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return StashRef{}, fmt.Errorf("stash: failed to capture diff: %w", err)
	}

	if out.Len() == 0 && !includeUntracked {
		return StashRef{}, ErrNoChangesToStash
	}

	if err := os.MkdirAll(stashPatchDir, 0o750); err != nil {
		return StashRef{}, fmt.Errorf("stash: failed to create state directory: %w", err)
	}

	id, err := randomID()
	if err != nil {
		return StashRef{}, err
	}
	patchPath := filepath.Join(stashPatchDir, "stash-"+id+".patch")
	if err := os.WriteFile(patchPath, out.Bytes(), 0o600); err != nil {
		return StashRef{}, fmt.Errorf("stash: failed to write patch: %w", err)
	}

	restoreArgs := append([]string{"checkout", "HEAD", "--"}, scopePaths...)
	if len(scopePaths) > 0 {
		restore := exec.Command("git", restoreArgs...)
		restore.Dir = root
		_ = restore.Run() //nolint:errcheck // best effort; newly added paths have no HEAD entry
	}

	stashRegistryMu.Lock()
	stashRegistry[id] = patchPath
	stashRegistryMu.Unlock()

	return StashRef{ID: id}, nil
}

func stashApplyViaPatch(_ context.Context, b interface{ Root() string }, ref StashRef) (PatchOutcome, error) {
	stashRegistryMu.Lock()
	patchPath, ok := stashRegistry[ref.ID]
	stashRegistryMu.Unlock()
	if !ok {
		return PatchInvalid, fmt.Errorf("stash: unknown ref %q", ref.ID)
	}

	data, err := os.ReadFile(patchPath) //nolint:gosec // path is constructed from our own state directory
	if err != nil {
		return PatchInvalid, fmt.Errorf("stash: failed to read patch %s: %w", patchPath, err)
	}
	if len(data) == 0 {
		return PatchOK, nil
	}

	check := exec.Command("git", "apply", "--check", patchPath)
	check.Dir = b.Root()
	if err := check.Run(); err != nil {
		return PatchConflict, nil //nolint:nilerr // conflict is a reported outcome, not a Go error
	}

	apply := exec.Command("git", "apply", patchPath)
	apply.Dir = b.Root()
	if out, err := apply.CombinedOutput(); err != nil {
		return PatchInvalid, fmt.Errorf("stash: apply failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return PatchOK, nil
}

// StashPatchBytes returns the raw captured diff for ref, for callers (the
// stash protocol's restore phase) that need to recover one path's
// pre-fix content rather than replay the whole patch via StashApply.
func StashPatchBytes(ref StashRef) ([]byte, error) {
	stashRegistryMu.Lock()
	patchPath, ok := stashRegistry[ref.ID]
	stashRegistryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("stash: unknown ref %q", ref.ID)
	}
	return os.ReadFile(patchPath) //nolint:gosec // path is constructed from our own state directory
}

func stashDropFile(ref StashRef) error {
	stashRegistryMu.Lock()
	patchPath, ok := stashRegistry[ref.ID]
	delete(stashRegistry, ref.ID)
	stashRegistryMu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(patchPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stash: failed to remove patch %s: %w", patchPath, err)
	}
	return nil
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("stash: failed to generate id: %w", err)
	}
	return fmt.Sprintf("%x", buf), nil
}
