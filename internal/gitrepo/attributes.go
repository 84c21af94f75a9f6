package gitrepo

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// attrRule is one line of a .gitattributes file that sets text/binary/auto.
type attrRule struct {
	pattern glob.Glob
	kind    AttrKind
}

func (r attrRule) match(path string) bool {
	return r.pattern.Match(path)
}

// loadGitAttributes reads the root .gitattributes file (later rules win,
// per git's own precedence) and the repository-wide .git/info/attributes
// override. Per-directory .gitattributes files are not consulted; hk steps
// operate on repo-relative paths and the common case is a single root file.
func loadGitAttributes(root string) ([]attrRule, error) {
	var rules []attrRule

	for _, rel := range []string{".gitattributes", filepath.Join(".git", "info", "attributes")} {
		path := filepath.Join(root, rel)
		f, err := os.Open(path) //nolint:gosec // path is repo-local, not user input
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return rules, err
		}
		fileRules, err := parseGitAttributes(f)
		_ = f.Close() //nolint:errcheck // best-effort close
		if err != nil {
			return rules, err
		}
		rules = append(rules, fileRules...)
	}

	return rules, nil
}

func parseGitAttributes(r *os.File) ([]attrRule, error) {
	var rules []attrRule
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pattern := fields[0]
		var kind AttrKind
		for _, attr := range fields[1:] {
			switch attr {
			case "binary":
				kind = AttrBinary
			case "text":
				kind = AttrText
			case "-text":
				kind = AttrBinary
			}
		}
		if kind == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		rules = append(rules, attrRule{pattern: g, kind: kind})
	}
	return rules, scanner.Err()
}

// sniffBinary reports whether data looks binary by the presence of a NUL
// byte in the first 8 KiB (spec §4.2 invariant 4).
func sniffBinary(data []byte) bool {
	limit := 8192
	if len(data) < limit {
		limit = len(data)
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
