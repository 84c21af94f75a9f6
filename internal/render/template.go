// Package render parses and executes the {{variable}} command templates
// used by step `check`/`fix`/`check_diff`/`stdin` fields (spec §4.5).
//
// Templates are parsed once at config-load time into a typed AST so that an
// unknown variable name is a config error, not a silent empty string at
// render time (spec §9 "Template strings").
package render

import (
	"fmt"
	"strings"
)

// Vars are the only variable names a template may reference (spec §4.5).
var knownVars = map[string]bool{
	"files":          true,
	"files_list":     true,
	"workspace":      true,
	"workspace_files": true,
	"globs":          true,
	"tmp":            true,
	"root":           true,
	"filepaths_file": true,
}

type segment struct {
	literal string
	varName string // empty for a pure-literal segment
}

// Template is a parsed command template.
type Template struct {
	raw      string
	segments []segment
	vars     []string
}

// Parse parses a template string, rejecting any `{{name}}` reference whose
// name is not in the known variable set.
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	seen := map[string]bool{}

	rest := raw
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return nil, fmt.Errorf("unterminated template variable in %q", raw)
		}
		end += start

		t.segments = append(t.segments, segment{literal: rest[:start]})
		name := strings.TrimSpace(rest[start+2 : end])
		if !knownVars[name] {
			return nil, fmt.Errorf("unknown template variable %q in %q", name, raw)
		}
		t.segments = append(t.segments, segment{varName: name})
		if !seen[name] {
			seen[name] = true
			t.vars = append(t.vars, name)
		}

		rest = rest[end+2:]
	}

	return t, nil
}

// MustValidate parses raw purely to validate it, discarding the result.
// Used at config-load time for fields that are rendered lazily later.
func MustValidate(raw string) error {
	_, err := Parse(raw)
	return err
}

// Vars returns the distinct variable names referenced, in first-use order.
func (t *Template) Vars() []string {
	return t.vars
}

// Render substitutes each known variable with vars[name]; an absent key
// renders as empty string (spec §4.5: "undefined variables render as
// empty").
func (t *Template) Render(vars map[string]string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.varName == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(vars[seg.varName])
	}
	return b.String()
}

// String returns the original template source.
func (t *Template) String() string { return t.raw }
