// Package fileset resolves the set of files a Step or Job operates on
// (spec §4.2): base-set selection, top-level excludes, symlink and binary
// policy, per-step filters (dir/glob/regex/exclude/types), workspace
// assignment, and ARG_MAX-driven auto-batching.
package fileset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/gobwas/glob"

	"github.com/jdx/hk/internal/gitrepo"
	"github.com/jdx/hk/internal/hkcache"
	"github.com/jdx/hk/internal/hkconfig"
)

// Base describes how to select the starting file set for a run, before any
// step-level filtering.
type Base struct {
	All     bool
	FromRef string
	ToRef   string
	PR      bool     // changed files between the default branch and HEAD (spec §4.2, §6.2 "--pr")
	Paths   []string // explicit paths given on the command line
}

// ResolveBase computes the run-wide candidate set (spec §4.2 step 1). When
// neither All, a ref range, PR, nor explicit Paths is given, it defaults to
// the staged files (the conventional hook default).
func ResolveBase(ctx context.Context, b gitrepo.Backend, base Base) ([]string, error) {
	switch {
	case len(base.Paths) > 0:
		out := make([]string, len(base.Paths))
		copy(out, base.Paths)
		sort.Strings(out)
		return out, nil
	case base.PR:
		return resolvePRBase(ctx, b)
	case base.FromRef != "" || base.ToRef != "":
		from, to := base.FromRef, base.ToRef
		if to == "" {
			to = "HEAD"
		}
		names, err := b.DiffNames(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("resolving ref range %s..%s: %w", from, to, err)
		}
		sort.Strings(names)
		return names, nil
	case base.All:
		statuses, err := b.Status(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("listing worktree files: %w", err)
		}
		var out []string
		for _, s := range statuses {
			out = append(out, s.Path)
		}
		return allTrackedAndStatus(ctx, b, out)
	default:
		statuses, err := b.Status(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("listing staged files: %w", err)
		}
		var out []string
		for _, s := range statuses {
			if s.Index != gitrepo.StateUnmodified && s.Index != gitrepo.StateUntracked {
				out = append(out, s.Path)
			}
		}
		sort.Strings(out)
		return out, nil
	}
}

// allTrackedAndStatus merges every path in HEAD (an empty-tree..HEAD diff)
// with any untracked/modified paths surfaced by Status, for `--all` runs. The
// teacher's equivalent walked the worktree directly; here we stay within
// the Backend so both git backends produce the same list.
func allTrackedAndStatus(ctx context.Context, b gitrepo.Backend, statusPaths []string) ([]string, error) {
	tracked, err := b.DiffNames(ctx, emptyTreeRef, "HEAD")
	if err != nil {
		tracked = nil // empty repo (no HEAD yet) is not fatal for --all
	}
	set := map[string]struct{}{}
	for _, p := range tracked {
		set[p] = struct{}{}
	}
	for _, p := range statusPaths {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// resolvePRBase diffs the default branch's merge-base against HEAD, the
// conventional "what does this PR change" file set (spec §4.2: "changed
// files between default branch ... and current HEAD").
func resolvePRBase(ctx context.Context, b gitrepo.Backend) ([]string, error) {
	def, err := b.DefaultBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving default branch for --pr: %w", err)
	}
	base, err := b.MergeBase(ctx, def, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolving merge base of %s and HEAD: %w", def, err)
	}
	names, err := b.DiffNames(ctx, base, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolving --pr diff: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// emptyTreeRef is git's well-known empty-tree object, used so `--all` can
// diff "everything since the beginning of history" without special-casing
// repositories that do have a HEAD.
const emptyTreeRef = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Policy holds run-wide filtering decisions independent of any one step.
type Policy struct {
	Exclude       []string // top-level exclude globs (spec §4.2 step 2)
	AllowSymlinks bool     // run-wide default; steps may override via AllowSymlinks
}

// Resolver applies the full per-step resolution pipeline on top of a
// pre-computed base set.
type Resolver struct {
	Backend gitrepo.Backend
	Cache   *hkcache.Manager
	Policy  Policy
}

// ForStep resolves the effective file list for one Step (spec §4.2 steps
// 2-6; batching is step 7, done separately by AutoBatch since it changes
// the shape of the result, not its membership).
func (r *Resolver) ForStep(ctx context.Context, step *hkconfig.Step, base []string) ([]string, error) {
	files := applyExclude(base, r.Policy.Exclude)
	files = applyExclude(files, step.Exclude)

	files, err := r.applySymlinkPolicy(files, step)
	if err != nil {
		return nil, err
	}

	files, err = r.applyBinaryPolicy(ctx, files, step)
	if err != nil {
		return nil, err
	}

	files, err = applyStepFilter(files, step)
	if err != nil {
		return nil, err
	}

	if step.Dir != "" {
		files = underDir(files, step.Dir)
	}

	return files, nil
}

// applyExclude drops any path matched by one of the given glob patterns.
func applyExclude(files []string, patterns []string) []string {
	if len(patterns) == 0 {
		return files
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			continue // an invalid exclude pattern excludes nothing, rather than failing the run
		}
		globs = append(globs, g)
	}
	out := files[:0:0]
	for _, f := range files {
		excluded := false
		for _, g := range globs {
			if g.Match(f) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, f)
		}
	}
	return out
}

// applySymlinkPolicy drops symlinks unless the step (or run-wide policy)
// explicitly allows them (spec §4.2 step 3).
func (r *Resolver) applySymlinkPolicy(files []string, step *hkconfig.Step) ([]string, error) {
	allow := r.Policy.AllowSymlinks || step.AllowSymlinks
	if allow {
		return files, nil
	}
	root := r.Backend.Root()
	out := files[:0:0]
	for _, f := range files {
		info, err := os.Lstat(filepath.Join(root, f))
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted path: nothing to classify, drop it
			}
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// applyBinaryPolicy drops binary files unless the step's `types` list
// explicitly includes "binary" (spec §4.2 step 4). Classification is
// gitattributes-first, content-sniff fallback, cached by (path, mtime,
// size).
func (r *Resolver) applyBinaryPolicy(ctx context.Context, files []string, step *hkconfig.Step) ([]string, error) {
	wantsBinary := containsFold(step.Types, "binary")
	if wantsBinary && len(step.Types) == 1 {
		// only binary wanted: everything else is filtered by applyStepFilter's
		// types check, so no need to compute classification here.
		return files, nil
	}
	root := r.Backend.Root()
	out := files[:0:0]
	for _, f := range files {
		isBinary, err := r.classify(ctx, root, f)
		if err != nil {
			return nil, err
		}
		if isBinary && !wantsBinary {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *Resolver) classify(ctx context.Context, root, path string) (bool, error) {
	if kind, err := r.Backend.Attributes(ctx, path); err == nil && kind != gitrepo.AttrAuto {
		return kind == gitrepo.AttrBinary, nil
	}

	full := filepath.Join(root, path)
	info, statErr := os.Stat(full)
	if statErr != nil {
		return false, nil // deleted/unreadable path: treat as non-binary, caller drops it elsewhere
	}
	stamp := hkcache.FileStamp{Mtime: info.ModTime().UnixNano(), Size: info.Size()}

	if r.Cache != nil {
		if isBinary, ok, cerr := r.Cache.GetBinaryDetection(full, stamp); cerr == nil && ok {
			return isBinary, nil
		}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return false, nil
	}
	isBinary := sniff(data)
	if r.Cache != nil {
		_ = r.Cache.PutBinaryDetection(full, stamp, isBinary)
	}
	return isBinary, nil
}

// IsBinary reports whether data looks binary by the same heuristic
// Resolver.applyBinaryPolicy uses, exported for callers (the utility
// checkers) that need to skip binary files without a Resolver.
func IsBinary(data []byte) bool { return sniff(data) }

// sniff matches gitrepo's own content-based detector: presence of a NUL
// byte in the first 8KiB.
func sniff(data []byte) bool {
	const max = 8192
	if len(data) > max {
		data = data[:max]
	}
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	return false
}

// applyStepFilter applies glob/regex/types as an OR of positive matches
// (spec §4.2 step 5: "a file is included if it matches ANY configured
// positive filter; if none are configured, all files pass").
func applyStepFilter(files []string, step *hkconfig.Step) ([]string, error) {
	var globs []glob.Glob
	for _, p := range step.Glob {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		globs = append(globs, g)
		// `**/` also matches zero directories, as in shell globstar
		for _, alt := range []string{strings.TrimPrefix(p, "**/"), strings.Replace(p, "/**/", "/", 1)} {
			if alt == p {
				continue
			}
			if g0, err := glob.Compile(alt, '/'); err == nil {
				globs = append(globs, g0)
			}
		}
	}

	var re *regexp2.Regexp
	if step.Regex != "" {
		pattern := step.Regex
		if !strings.HasPrefix(pattern, "^") {
			pattern = "^" + pattern
		}
		if !strings.HasSuffix(pattern, "$") {
			pattern += "$"
		}
		r, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", step.Regex, err)
		}
		re = r
	}

	hasPositive := len(globs) > 0 || re != nil || len(step.Types) > 0
	if !hasPositive {
		return files, nil
	}

	out := files[:0:0]
	for _, f := range files {
		if matchesAny(f, globs, re, step.Types) {
			out = append(out, f)
		}
	}
	return out, nil
}

func matchesAny(f string, globs []glob.Glob, re *regexp2.Regexp, types []string) bool {
	for _, g := range globs {
		if g.Match(f) {
			return true
		}
	}
	if re != nil {
		if ok, _ := re.MatchString(f); ok {
			return true
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(f), ".")
	for _, t := range types {
		if strings.EqualFold(t, ext) {
			return true
		}
	}
	return false
}

func underDir(files []string, dir string) []string {
	dir = strings.TrimSuffix(dir, "/") + "/"
	out := files[:0:0]
	for _, f := range files {
		if strings.HasPrefix(f, dir) {
			out = append(out, f)
		}
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// Workspace maps a workspace root directory to the files that belong to it,
// assigned by nearest-ancestor-with-indicator-file (spec §4.2 step 6).
type Workspace struct {
	Root  string
	Files []string
}

// AssignWorkspaces groups files by the nearest ancestor directory
// containing the step's workspace indicator file (e.g. go.mod). Files with
// no matching ancestor form a single workspace rooted at ".".
func AssignWorkspaces(root string, files []string, indicator string) []Workspace {
	if indicator == "" {
		return []Workspace{{Root: ".", Files: files}}
	}
	byRoot := map[string][]string{}
	var order []string
	for _, f := range files {
		wsRoot := nearestIndicatorDir(root, f, indicator)
		if _, ok := byRoot[wsRoot]; !ok {
			order = append(order, wsRoot)
		}
		byRoot[wsRoot] = append(byRoot[wsRoot], f)
	}
	sort.Strings(order)
	out := make([]Workspace, 0, len(order))
	for _, ws := range order {
		fs := byRoot[ws]
		sort.Strings(fs)
		out = append(out, Workspace{Root: ws, Files: fs})
	}
	return out
}

func nearestIndicatorDir(root, file, indicator string) string {
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(root, dir, indicator)); err == nil {
			return dir
		}
		if dir == "." || dir == string(filepath.Separator) {
			return "."
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

// AutoBatch splits files into ARG_MAX-safe chunks (spec §4.2 step 7),
// counting each path's length plus one separator byte; the command's own
// length is not counted, so limit must already leave room for it. limit is
// a byte budget (typically derived from the platform's ARG_MAX); a
// limit <= 0 disables batching.
func AutoBatch(files []string, limit int) [][]string {
	if limit <= 0 || len(files) == 0 {
		return [][]string{files}
	}
	var batches [][]string
	var current []string
	size := 0
	for _, f := range files {
		add := len(f) + 1
		if size+add > limit && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, f)
		size += add
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
