package checkutil

import "fmt"

// Names lists the built-in utility names `hk util <name>` dispatches on.
var Names = []string{
	"trailing-whitespace",
	"end-of-file-fixer",
	"mixed-line-ending",
	"check-merge-conflict",
	"check-symlinks",
	"check-case-conflict",
	"check-executables-have-shebangs",
	"fix-smart-quotes",
}

// Run dispatches name against paths in mode. repoRoot and assumeInMerge
// are only consulted by check-merge-conflict.
func Run(name string, paths []string, mode Mode, repoRoot string, assumeInMerge bool) ([]PathResult, error) {
	switch name {
	case "trailing-whitespace":
		return RunTransform(paths, mode, TrailingWhitespace)
	case "end-of-file-fixer":
		return RunTransform(paths, mode, EndOfFileFixer)
	case "mixed-line-ending":
		return RunTransform(paths, mode, MixedLineEnding)
	case "fix-smart-quotes":
		return RunTransform(paths, mode, FixSmartQuotes)
	case "check-merge-conflict":
		return RunFlagger(paths, CheckMergeConflict(repoRoot, assumeInMerge))
	case "check-symlinks":
		return RunFlagger(paths, CheckSymlinks())
	case "check-executables-have-shebangs":
		return RunFlagger(paths, CheckExecutablesHaveShebangs())
	case "check-case-conflict":
		return CheckCaseConflict(paths), nil
	default:
		return nil, fmt.Errorf("unknown utility %q", name)
	}
}
