package hkconfig

import (
	"strconv"
	"strings"

	"dario.cat/mergo"
)

// Source identifies which configuration layer contributed a resolved field
// value, recorded for `hk config sources` (spec §6.1).
type Source string

// Recognized layers, in increasing precedence order for scalars.
const (
	SourceDefault      Source = "default"
	SourceDocument     Source = "document"
	SourceLocalOverlay Source = "local"
	SourceUserOverlay  Source = "user"
	SourceGitConfig    Source = "gitconfig"
	SourceEnv          Source = "env"
	SourceCLI          Source = "cli"
)

// Resolved is the merged, run-ready configuration: scalar fields follow
// last-writer-wins over CLI > env > git config > user overlay > project
// overlay > project document > defaults; list fields accumulate (union,
// deduped) across every layer that set them (spec §6.1).
type Resolved struct {
	Root               *Document
	Exclude            []string
	SkipSteps          []string
	SkipHooks          []string
	HideWarnings       []string
	Profiles           []string
	DisplaySkipReasons []string
	Jobs               int
	FailFast           bool
	Provenance         map[string]Source
}

// CLIOverrides carries the subset of command-line flags that participate in
// config merge (the rest of the CLI surface, §6.2, is out of the core's
// scope).
type CLIOverrides struct {
	Jobs               *int
	FailFast           *bool
	Exclude            []string
	SkipSteps          []string
	SkipHooks          []string
	Profiles           []string
	DisplaySkipReasons []string
	HideWarnings       []string
}

// EnvOverrides is CLIOverrides' environment-variable counterpart, parsed
// from the HK_* variables in spec §6.2.
type EnvOverrides = CLIOverrides

// LoadEnvOverrides reads the subset of HK_* environment variables that feed
// config merge. CSV values are split on commas per spec §6.1.
func LoadEnvOverrides(getenv func(string) string) EnvOverrides {
	var e EnvOverrides

	if v := getenv("HK_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			e.Jobs = &n
		}
	}
	if v := getenv("HK_FAIL_FAST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			e.FailFast = &b
		}
	}
	e.Exclude = splitCSV(getenv("HK_EXCLUDE"))
	e.SkipSteps = splitCSV(firstNonEmpty(getenv("HK_SKIP_STEPS"), getenv("HK_SKIP_STEP")))
	e.SkipHooks = splitCSV(getenv("HK_SKIP_HOOK"))
	e.Profiles = splitCSV(getenv("HK_PROFILE"))
	e.HideWarnings = splitCSV(getenv("HK_HIDE_WARNINGS"))

	return e
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Merge layers the document stack, git-config overrides, environment
// overrides, and CLI overrides into one Resolved configuration.
//
// docLayers is ordered lowest to highest precedence among the document
// sources: [project document, local overlay, user overlay].
func Merge(docLayers []*Document, gitCfg, env, cli CLIOverrides) (*Resolved, error) {
	root := &Document{}
	for i, layer := range docLayers {
		if layer == nil {
			continue
		}
		if i == 0 {
			*root = *layer
			continue
		}
		if err := mergeHookLists(root, layer); err != nil {
			return nil, err
		}
		if layer.Jobs != 0 {
			root.Jobs = layer.Jobs
		}
		if layer.FailFast {
			root.FailFast = layer.FailFast
		}
	}

	r := &Resolved{
		Root:       root,
		Jobs:       1,
		Provenance: map[string]Source{},
	}

	r.unionList("exclude", &r.Exclude, SourceDocument, root.Exclude)
	r.unionList("skip_steps", &r.SkipSteps, SourceDocument, root.SkipSteps)
	r.unionList("skip_hooks", &r.SkipHooks, SourceDocument, root.SkipHooks)
	r.unionList("hide_warnings", &r.HideWarnings, SourceDocument, root.HideWarnings)
	r.unionList("profiles", &r.Profiles, SourceDocument, root.Profiles)
	r.unionList("display_skip_reasons", &r.DisplaySkipReasons, SourceDocument, root.DisplaySkipReasons)
	if len(r.DisplaySkipReasons) == 0 {
		r.DisplaySkipReasons = []string{"profile-not-enabled"}
		r.Provenance["display_skip_reasons"] = SourceDefault
	}

	if root.Jobs != 0 {
		r.setScalarInt(&r.Jobs, SourceDocument, root.Jobs)
	}
	r.setScalarBool(&r.FailFast, SourceDocument, root.FailFast)

	for _, layer := range []struct {
		src CLIOverrides
		tag Source
	}{
		{gitCfg, SourceGitConfig},
		{env, SourceEnv},
		{cli, SourceCLI},
	} {
		r.unionList("exclude", &r.Exclude, layer.tag, layer.src.Exclude)
		r.unionList("skip_steps", &r.SkipSteps, layer.tag, layer.src.SkipSteps)
		r.unionList("skip_hooks", &r.SkipHooks, layer.tag, layer.src.SkipHooks)
		r.unionList("profiles", &r.Profiles, layer.tag, layer.src.Profiles)
		r.unionList("display_skip_reasons", &r.DisplaySkipReasons, layer.tag, layer.src.DisplaySkipReasons)
		r.unionList("hide_warnings", &r.HideWarnings, layer.tag, layer.src.HideWarnings)
		if layer.src.Jobs != nil {
			r.setScalarInt(&r.Jobs, layer.tag, *layer.src.Jobs)
		}
		if layer.src.FailFast != nil {
			r.setScalarBool(&r.FailFast, layer.tag, *layer.src.FailFast)
		}
	}

	return r, nil
}

func (r *Resolved) unionList(field string, dst *[]string, src Source, vals []string) {
	if len(vals) == 0 {
		return
	}
	seen := make(map[string]bool, len(*dst))
	for _, v := range *dst {
		seen[v] = true
	}
	for _, v := range vals {
		if !seen[v] {
			*dst = append(*dst, v)
			seen[v] = true
		}
	}
	r.Provenance[field] = src
}

func (r *Resolved) setScalarInt(dst *int, src Source, val int) {
	*dst = val
	r.Provenance["jobs"] = src
}

func (r *Resolved) setScalarBool(dst *bool, src Source, val bool) {
	*dst = val
	r.Provenance["fail_fast"] = src
}

// mergeHookLists merges override's hooks into base by name: a hook present
// in both layers has its steps/fix/stash/env fields overridden individually
// (last-writer-wins, via mergo, generalizing the teacher's hand-written
// field-by-field override helpers); a hook present only in override is
// appended.
func mergeHookLists(base, override *Document) error {
	for _, oh := range override.Hooks {
		if existing := base.HookByName(oh.Name); existing != nil {
			if err := mergo.Merge(existing, oh.Hook, mergo.WithOverride); err != nil {
				return err
			}
			continue
		}
		base.Hooks = append(base.Hooks, oh)
	}
	if len(override.Exclude) > 0 {
		base.Exclude = append(base.Exclude, override.Exclude...)
	}
	if len(override.SkipSteps) > 0 {
		base.SkipSteps = append(base.SkipSteps, override.SkipSteps...)
	}
	if len(override.SkipHooks) > 0 {
		base.SkipHooks = append(base.SkipHooks, override.SkipHooks...)
	}
	if len(override.HideWarnings) > 0 {
		base.HideWarnings = append(base.HideWarnings, override.HideWarnings...)
	}
	if len(override.Profiles) > 0 {
		base.Profiles = append(base.Profiles, override.Profiles...)
	}
	if len(override.DisplaySkipReasons) > 0 {
		base.DisplaySkipReasons = append(base.DisplaySkipReasons, override.DisplaySkipReasons...)
	}
	return nil
}

// GitConfigOverrides reads hk.* git-config keys (hk.exclude, hk.jobs,
// hk.failFast, hk.profile) via the repository's config.
func GitConfigOverrides(getConfig func(section, key string) (string, bool)) CLIOverrides {
	var c CLIOverrides
	if v, ok := getConfig("hk", "exclude"); ok {
		c.Exclude = splitCSV(v)
	}
	if v, ok := getConfig("hk", "jobs"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Jobs = &n
		}
	}
	if v, ok := getConfig("hk", "failFast"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FailFast = &b
		}
	}
	if v, ok := getConfig("hk", "profile"); ok {
		c.Profiles = splitCSV(v)
	}
	return c
}
