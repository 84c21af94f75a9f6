// Package stashctl implements the stash protocol (spec §4.6): capture the
// worktree's unstaged tail before fixers run, apply the staged baseline,
// let fixers mutate the worktree, re-index their output, then restore the
// user's unstaged edits on top via a three-way merge.
package stashctl

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkcache"
	"github.com/jdx/hk/internal/obs"
)

// RestorePhase is the stash protocol's own lifecycle, tracked so a crash or
// cancellation mid-protocol can report exactly how far restoration got
// (spec §9: "RestorePhase state machine").
type RestorePhase string

// Recognized phases, in the order the protocol passes through them.
const (
	PhaseCaptured RestorePhase = "captured" // snapshot taken, baseline not yet applied
	PhaseApplied  RestorePhase = "applied"  // worktree reset to index content
	PhaseMerged   RestorePhase = "merged"   // fixer output re-indexed, three-way merge computed
	PhaseRestored RestorePhase = "restored" // worktree holds fixer output + unstaged tail
)

// Session tracks one stash protocol invocation end to end.
type Session struct {
	Backend gitrepo.Backend
	Cache   *hkcache.Manager
	Logger  *obs.Logger

	Mode             gitrepo.Kind // unused by Session directly; informs the caller's backend choice
	Strategy         Strategy
	BackupDir        string // per-repo backup patch directory (spec §6.4)
	BackupCount      int    // rotation limit, default 20
	IncludeUntracked bool

	phase    RestorePhase
	ref      gitrepo.StashRef
	scope    []string
	baseline map[string][]byte // scope path -> index content captured at snapshot time
	hadStash bool
}

// Strategy selects how the unstaged tail is captured and reapplied.
type Strategy string

// Recognized strategies (spec §4.6 "Two stash strategies").
const (
	StrategyGit       Strategy = "git"
	StrategyPatchFile Strategy = "patch-file"
)

// Phase reports the protocol's current lifecycle position.
func (s *Session) Phase() RestorePhase { return s.phase }

// Push performs steps 1-3: detect, snapshot, apply baseline. It returns
// (false, nil) with no further state changes when no scope path has an
// unstaged tail (spec step 1's early-exit).
func (s *Session) Push(ctx context.Context, scope []string) (bool, error) {
	sort.Strings(scope)
	s.scope = scope
	log := s.log()

	statuses, err := s.Backend.Status(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("checking for unstaged changes: %w", err)
	}
	anyUnstaged := false
	for _, st := range statuses {
		if st.Worktree != gitrepo.StateUnmodified {
			anyUnstaged = true
			break
		}
	}
	if !anyUnstaged {
		log.Event("stash.push", "scope", len(scope), "skipped", true)
		return false, nil
	}

	baseline := map[string][]byte{}
	for _, p := range scope {
		data, err := s.Backend.BlobRead(ctx, gitrepo.SourceIndex, p)
		if err != nil {
			continue // not in the index (untracked or newly added unstaged): no baseline to capture
		}
		baseline[p] = data
	}
	s.baseline = baseline

	ref, err := s.Backend.StashPush(ctx, scope, s.IncludeUntracked)
	if err != nil {
		return false, fmt.Errorf("stashing unstaged changes: %w", err)
	}
	s.ref = ref
	s.hadStash = true
	s.phase = PhaseCaptured
	log.Event("stash.push", "scope", len(scope), "ref", ref.ID)

	if err := s.writeBackup(ctx, ref); err != nil {
		log.Warn("failed to write stash backup patch", "err", err)
	}

	for _, p := range scope {
		if data, ok := baseline[p]; ok {
			if err := s.Backend.WorktreeWrite(ctx, p, data); err != nil {
				return false, fmt.Errorf("resetting %s to index baseline: %w", p, err)
			}
		}
	}
	s.phase = PhaseApplied
	return true, nil
}

// Reindex performs step 5: read each scope path's post-fixer worktree
// content and write it to the index via blob_write + index_update.
func (s *Session) Reindex(ctx context.Context, paths []string) error {
	for _, p := range paths {
		full := filepath.Join(s.Backend.Root(), p)
		data, err := os.ReadFile(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading fixer output for %s: %w", p, err)
		}
		oid, err := s.Backend.BlobWrite(ctx, data)
		if err != nil {
			return fmt.Errorf("writing blob for %s: %w", p, err)
		}
		if err := s.Backend.IndexUpdate(ctx, p, 0o100644, oid); err != nil {
			return fmt.Errorf("updating index for %s: %w", p, err)
		}
	}
	s.phase = PhaseMerged
	return nil
}

// Restore performs steps 6-8: three-way merge the unstaged tail back onto
// the fixer's output, preferring the unstaged version on conflict, restore
// untracked files, then drop the stash.
func (s *Session) Restore(ctx context.Context) error {
	if !s.hadStash {
		s.phase = PhaseRestored
		return nil
	}
	log := s.log()

	for _, p := range s.scope {
		base, hadBase := s.baseline[p]
		fixerOut, err := s.Backend.BlobRead(ctx, gitrepo.SourceIndex, p)
		if err != nil {
			continue
		}
		unstagedPatch, err := extractPathFromStash(ctx, s.Backend, s.ref, p)
		if err != nil || len(unstagedPatch) == 0 {
			continue // nothing to reapply for this path
		}

		merged, conflict := ThreeWayMerge(base, fixerOut, unstagedPatch, hadBase)
		if conflict {
			log.Warn("unstaged preferred on conflicting hunk", "path", p)
		}
		if err := s.Backend.WorktreeWrite(ctx, p, merged); err != nil {
			return fmt.Errorf("restoring unstaged tail for %s: %w", p, err)
		}
	}

	if err := restoreUntracked(ctx, s.Backend, s.ref); err != nil {
		log.Warn("failed to restore untracked files from stash", "err", err)
	}

	if _, err := s.Backend.StashApply(ctx, s.ref); err != nil {
		log.Warn("stash left in place after restore error; see backup patch", "err", err)
		return fmt.Errorf("finalizing stash restore: %w", err)
	}

	if err := s.Backend.StashDrop(ctx, s.ref); err != nil {
		log.Warn("fixer succeeded but stash could not be dropped; recover from backup patch if needed", "err", err)
		return nil // step 8: never fail the run over a drop failure
	}
	s.phase = PhaseRestored
	log.Event("stash.restore", "scope", len(s.scope), "phase", string(s.phase))
	return nil
}

func (s *Session) log() *obs.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return obs.Discard
}

// writeBackup persists a human-recoverable copy of the stash's patch under
// BackupDir, named `{repo}-{yyyymmdd}-{hhmmss}-{hash}.patch` per spec
// §6.4, then rotates old entries beyond BackupCount (default 20). This is
// the artifact a failed restore points the user at (spec §4.6 step 8), so
// it must exist on disk before Push returns.
func (s *Session) writeBackup(ctx context.Context, ref gitrepo.StashRef) error {
	_ = ctx
	if s.BackupDir == "" {
		return nil
	}
	patch, err := gitrepo.StashPatchBytes(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BackupDir, 0o750); err != nil {
		return err
	}

	repo := filepath.Base(s.Backend.Root())
	now := time.Now()
	sum := sha256.Sum256(patch)
	name := fmt.Sprintf("%s-%s-%x.patch", repo, now.Format("20060102-150405"), sum[:4])
	if err := os.WriteFile(filepath.Join(s.BackupDir, name), patch, 0o600); err != nil {
		return err
	}

	names, err := os.ReadDir(s.BackupDir)
	if err != nil {
		return err
	}
	limit := s.BackupCount
	if limit <= 0 {
		limit = 20
	}
	if len(names) > limit {
		sort.Slice(names, func(i, j int) bool { return names[i].Name() < names[j].Name() })
		for _, n := range names[:len(names)-limit] {
			_ = os.Remove(filepath.Join(s.BackupDir, n.Name()))
		}
	}
	return nil
}
