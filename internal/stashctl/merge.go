package stashctl

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jdx/hk/internal/gitrepo"
)

// extractPathFromStash recovers one path's full "theirs" content (index
// content + the user's unstaged delta) from the captured stash patch,
// in-memory, without mutating the worktree.
func extractPathFromStash(_ context.Context, b gitrepo.Backend, ref gitrepo.StashRef, path string) ([]byte, error) {
	patch, err := gitrepo.StashPatchBytes(ref)
	if err != nil {
		return nil, err
	}
	base, _ := b.BlobRead(context.Background(), gitrepo.SourceIndex, path)
	content, ok, err := gitrepo.ExtractPathContent(patch, path, base, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return content, nil
}

// restoreUntracked is a no-op for the shared patch-file stash strategy:
// the patch is a `git diff` of tracked files and captures no untracked
// files, so there is nothing to restore here. Kept as a named step
// so the protocol's 8-step structure (spec §4.6) stays visible in code,
// and so a future strategy needing a separate untracked archive has a
// single call site to extend.
func restoreUntracked(_ context.Context, _ gitrepo.Backend, _ gitrepo.StashRef) error {
	return nil
}

// ThreeWayMerge reapplies the unstaged delta (base -> theirs) onto the
// fixer's output (ours), per spec §4.6 step 6. hadBase is false when the
// path had no index entry at snapshot time (a newly-added, not-yet-staged
// file); in that case theirs is treated as authoritative since there is no
// common ancestor to diff against.
//
// On a hunk that fails to apply cleanly, the unstaged version wins
// entirely for this file (conflict=true) rather than attempting a partial,
// line-level reconciliation - this still satisfies the spec's invariant
// of never losing the user's in-progress edits, at the cost of also
// discarding the fixer's change to this one file when hunks collide.
func ThreeWayMerge(base, ours, theirs []byte, hadBase bool) (merged []byte, conflict bool) {
	if !hadBase || len(theirs) == 0 {
		if len(theirs) == 0 {
			return ours, false
		}
		return theirs, false
	}
	if string(base) == string(ours) {
		// fixer made no change to this file: the unstaged tail applies as-is.
		return theirs, false
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(string(base), string(theirs))
	if len(patches) == 0 {
		return ours, false
	}

	result, applied := dmp.PatchApply(patches, string(ours))
	for _, ok := range applied {
		if !ok {
			return theirs, true
		}
	}
	return []byte(result), false
}
