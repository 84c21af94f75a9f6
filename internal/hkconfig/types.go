// Package hkconfig loads and merges the declarative configuration hk reads
// to decide which steps run for a given hook.
package hkconfig

// RunType selects whether a hook may mutate files.
type RunType string

// Recognized run types.
const (
	RunCheck RunType = "check"
	RunFix   RunType = "fix"
)

// StashMode controls how the fix-phase stash protocol isolates the user's
// unstaged edits from fixer runs.
type StashMode string

// Recognized stash modes.
const (
	StashNone      StashMode = "none"
	StashGit       StashMode = "git"
	StashPatchFile StashMode = "patch-file"
)

// OutputSummary controls which stream(s) of a job's output are surfaced in
// the human-facing report.
type OutputSummary string

// Recognized output-summary modes.
const (
	OutputStderr         OutputSummary = "stderr"
	OutputStdout         OutputSummary = "stdout"
	OutputCombined       OutputSummary = "combined"
	OutputStderrOnFail   OutputSummary = "stderr_on_fail"
	OutputStdoutOnFail   OutputSummary = "stdout_on_fail"
	OutputCombinedOnFail OutputSummary = "combined_on_fail"
	OutputHide           OutputSummary = "hide"
)

// JobFilesSentinel is the `stage` value that resolves at stage-time to a
// step's effective file set (see spec §4.3, §4.8).
const JobFilesSentinel = "<JOB_FILES>"

// Step is a single unit of work declared in configuration. Commands are
// template strings rendered by internal/render; see spec §4.5.
//
//nolint:govet // field order favors readability over alignment, matching teacher style
type Step struct {
	Name               string            `yaml:"-"`
	Glob               []string          `yaml:"glob,omitempty"`
	Regex              string            `yaml:"regex,omitempty"`
	Exclude            []string          `yaml:"exclude,omitempty"`
	ExcludeRegex       string            `yaml:"exclude_regex,omitempty"`
	Dir                string            `yaml:"dir,omitempty"`
	WorkspaceIndicator string            `yaml:"workspace_indicator,omitempty"`
	Types              []string          `yaml:"types,omitempty"`
	Profiles           []string          `yaml:"profiles,omitempty"`
	Condition          string            `yaml:"condition,omitempty"`
	Depends            []string          `yaml:"depends,omitempty"`
	Exclusive          bool              `yaml:"exclusive,omitempty"`
	Batch              bool              `yaml:"batch,omitempty"`
	CheckFirst         bool              `yaml:"check_first,omitempty"`
	Interactive        bool              `yaml:"interactive,omitempty"`
	Stage              []string          `yaml:"stage,omitempty"`
	StageSet           bool              `yaml:"-"` // true iff Stage was explicitly present in the document
	Stdin              string            `yaml:"stdin,omitempty"`
	Prefix             string            `yaml:"prefix,omitempty"`
	Env                map[string]string `yaml:"env,omitempty"`
	Check              string            `yaml:"check,omitempty"`
	CheckListFiles     string            `yaml:"check_list_files,omitempty"`
	CheckDiff          string            `yaml:"check_diff,omitempty"`
	Fix                string            `yaml:"fix,omitempty"`
	OutputSummary      OutputSummary     `yaml:"output_summary,omitempty"`
	Attributes         []string          `yaml:"attributes,omitempty"`
	AllowSymlinks      bool              `yaml:"allow_symlinks,omitempty"`
	MakeFilespathFile  bool              `yaml:"make_filespath_file,omitempty"`
	Tests              []StepTest        `yaml:"tests,omitempty"`
}

// StepTest is one declarative test case for a step (spec §2 "Tests
// framework", SPEC_FULL §4.10).
type StepTest struct {
	Name   string            `yaml:"name,omitempty"`
	Before map[string]string `yaml:"before,omitempty"`
	Run    string            `yaml:"run,omitempty"` // "check" | "fix"
	Write  map[string]string `yaml:"write,omitempty"`
	Expect StepTestExpect    `yaml:"expect,omitempty"`
}

// StepTestExpect is the expected outcome of a StepTest.
type StepTestExpect struct {
	Status int      `yaml:"status,omitempty"`
	Files  []string `yaml:"files,omitempty"`
}

// Group is a named, ordered collection of steps that runs as one unit.
type Group struct {
	Name     string   `yaml:"-"`
	Steps    StepList `yaml:"steps,omitempty"`
	Parallel bool     `yaml:"parallel,omitempty"`
}

// StepOrGroup is one entry of an ordered step/group mapping. Exactly one of
// Step or Group is non-nil.
type StepOrGroup struct {
	Name  string
	Step  *Step
	Group *Group
}

// StepList is an order-preserving sequence of named steps or groups, as
// they appear in the YAML document (spec §3: "ordered mapping of steps").
type StepList []StepOrGroup

// Hook is a named trigger point (pre-commit, check, fix, pre-push, or a
// user-defined hook name).
//
//nolint:govet // field order favors readability, matching teacher style
type Hook struct {
	Name     string            `yaml:"-"`
	Steps    StepList          `yaml:"steps,omitempty"`
	Fix      bool              `yaml:"fix,omitempty"`
	Stash    StashMode         `yaml:"stash,omitempty"`
	Stage    []string          `yaml:"stage,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Report   string            `yaml:"report,omitempty"`
}

// HookList is an order-preserving sequence of named hooks.
type HookList []NamedHook

// NamedHook pairs a hook name with its definition.
type NamedHook struct {
	Name string
	Hook *Hook
}

// Document is the typed, already-evaluated configuration object the core
// consumes (spec §6.1). One Document is produced per configuration source
// layer (project file, local overlay, user overlay) before merge.
//
//nolint:govet // field order favors readability, matching teacher style
type Document struct {
	Hooks              HookList `yaml:"hooks,omitempty"`
	Exclude            []string `yaml:"exclude,omitempty"`
	SkipSteps          []string `yaml:"skip_steps,omitempty"`
	SkipHooks          []string `yaml:"skip_hooks,omitempty"`
	HideWarnings       []string `yaml:"hide_warnings,omitempty"`
	Profiles           []string `yaml:"profiles,omitempty"`
	DisplaySkipReasons []string `yaml:"display_skip_reasons,omitempty"`
	Jobs               int      `yaml:"jobs,omitempty"`
	FailFast           bool     `yaml:"fail_fast,omitempty"`
}

// HookByName returns the named hook, or nil if absent.
func (d *Document) HookByName(name string) *Hook {
	for _, h := range d.Hooks {
		if h.Name == name {
			return h.Hook
		}
	}
	return nil
}

// StepByName recursively finds a named step anywhere in the list, including
// inside groups.
func (l StepList) StepByName(name string) *Step {
	for _, entry := range l {
		if entry.Step != nil && entry.Name == name {
			return entry.Step
		}
		if entry.Group != nil {
			if s := entry.Group.Steps.StepByName(name); s != nil {
				return s
			}
		}
	}
	return nil
}

// Flatten returns every step in declaration order, descending into groups.
func (l StepList) Flatten() []*Step {
	var out []*Step
	for _, entry := range l {
		if entry.Step != nil {
			out = append(out, entry.Step)
		}
		if entry.Group != nil {
			out = append(out, entry.Group.Steps.Flatten()...)
		}
	}
	return out
}
