package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind selects which Backend implementation an Open call constructs. The
// choice is made once at startup and never mixed at runtime (spec §9
// "Dynamic dispatch for git backends").
type Kind string

// Recognized backend kinds.
const (
	KindLib   Kind = "lib"
	KindShell Kind = "shell"
)

// FindRoot walks up from path (or the working directory, if path is empty)
// looking for a `.git` entry, following the gitdir-file indirection used by
// worktrees and submodules.
func FindRoot(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		path = wd
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	for {
		gitEntry := filepath.Join(abs, ".git")
		if info, err := os.Stat(gitEntry); err == nil {
			if info.IsDir() {
				return abs, nil
			}
			if content, err := os.ReadFile(gitEntry); err == nil { //nolint:gosec // path is repo-local, not user input
				if strings.HasPrefix(strings.TrimSpace(string(content)), "gitdir: ") {
					return abs, nil
				}
			}
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a git repository: %s", path)
		}
		abs = parent
	}
}

// Open resolves the repository root starting at path and constructs the
// requested Backend.
func Open(path string, kind Kind) (Backend, error) {
	root, err := FindRoot(path)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindShell:
		return newShellBackend(root)
	case KindLib, "":
		return newLibBackend(root)
	default:
		return nil, fmt.Errorf("unknown git backend kind %q", kind)
	}
}

// KindFromEnv resolves the backend kind from HK_GIT_BACKEND ("shell" selects
// the shell backend) or, when that is unset, from HK_LIBGIT2 (a false value
// selects the shell backend), defaulting to the library backend.
func KindFromEnv(getenv func(string) string) Kind {
	switch strings.ToLower(getenv("HK_GIT_BACKEND")) {
	case "shell":
		return KindShell
	case "":
		if v, err := strconv.ParseBool(getenv("HK_LIBGIT2")); err == nil && !v {
			return KindShell
		}
		return KindLib
	default:
		return KindLib
	}
}
