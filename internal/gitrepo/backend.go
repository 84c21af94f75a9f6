package gitrepo

import "context"

// IndexState is a path's state relative to HEAD/index, as reported by
// status (spec §4.1).
type IndexState string

// Recognized index states.
const (
	StateUnmodified IndexState = "unmodified"
	StateAdded      IndexState = "added"
	StateModified   IndexState = "modified"
	StateDeleted    IndexState = "deleted"
	StateRenamed    IndexState = "renamed"
	StateCopied     IndexState = "copied"
	StateUntracked  IndexState = "untracked"
)

// FileStatus is one entry of a status() result: a path's index and
// worktree state, plus its rename origin when applicable.
type FileStatus struct {
	Path     string
	Index    IndexState
	Worktree IndexState
	OldPath  string // non-empty when Index or Worktree is StateRenamed
}

// StagedAndDeleted reports the `AD` case (staged-added, worktree-deleted):
// Job file lists must exclude these paths (spec §4.1).
func (s FileStatus) StagedAndDeleted() bool {
	return s.Index == StateAdded && s.Worktree == StateDeleted
}

// AttrKind is a path's text/binary classification per gitattributes.
type AttrKind string

// Recognized attribute kinds.
const (
	AttrText   AttrKind = "text"
	AttrBinary AttrKind = "binary"
	AttrAuto   AttrKind = "auto"
)

// BlobSource selects which tree a blob_read is relative to.
type BlobSource int

// Recognized blob sources.
const (
	SourceIndex BlobSource = iota
	SourceHead
)

// StashRef identifies a captured stash, opaque to callers.
type StashRef struct {
	ID string
}

// PatchOutcome is the result of apply_patch.
type PatchOutcome string

// Recognized patch outcomes.
const (
	PatchOK       PatchOutcome = "ok"
	PatchConflict PatchOutcome = "conflict"
	PatchInvalid  PatchOutcome = "invalid"
)

// Backend is the git adapter interface (spec §4.1). Every method must
// behave identically whether backed by go-git or a git subprocess.
type Backend interface {
	Root() string

	Status(ctx context.Context, paths []string) ([]FileStatus, error)
	Attributes(ctx context.Context, path string) (AttrKind, error)

	BlobRead(ctx context.Context, src BlobSource, path string) ([]byte, error)
	BlobWrite(ctx context.Context, data []byte) (string, error)
	IndexUpdate(ctx context.Context, path string, mode uint32, oid string) error
	WorktreeWrite(ctx context.Context, path string, data []byte) error
	Stage(ctx context.Context, patterns []string) ([]string, error)

	StashPush(ctx context.Context, scopePaths []string, includeUntracked bool) (StashRef, error)
	StashApply(ctx context.Context, ref StashRef) (PatchOutcome, error)
	StashDrop(ctx context.Context, ref StashRef) error

	ApplyPatch(ctx context.Context, patch []byte, stripAuto bool) (PatchOutcome, error)

	HooksPathLocal(ctx context.Context) (string, error)
	HooksPathGlobal(ctx context.Context) (string, error)

	DefaultBranch(ctx context.Context) (string, error)
	MergeBase(ctx context.Context, a, b string) (string, error)
	DiffNames(ctx context.Context, from, to string) ([]string, error)
	CurrentBranch(ctx context.Context) (string, error)
}
