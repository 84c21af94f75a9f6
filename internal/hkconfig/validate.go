package hkconfig

import (
	"fmt"

	"github.com/jdx/hk/internal/herr"
	"github.com/jdx/hk/internal/render"
)

// Validate checks every hook/step in doc for the inconsistent settings
// spec §7 calls out as ValidationError: `stage` declared without `fix`,
// and `stdin` combined with `interactive`. It returns every violation
// found rather than stopping at the first.
func Validate(doc *Document) []error {
	var errs []error
	for _, nh := range doc.Hooks {
		for _, s := range nh.Hook.Steps.Flatten() {
			if s.StageSet && s.Fix == "" {
				errs = append(errs, &herr.ValidationError{Hook: nh.Name, Step: s.Name, Msg: "`stage` is set but the step has no `fix` command"})
			}
			if s.Stdin != "" && s.Interactive {
				errs = append(errs, &herr.ValidationError{Hook: nh.Name, Step: s.Name, Msg: "`stdin` cannot be combined with `interactive`"})
			}
		}
	}
	return errs
}

// ValidateTemplates parses every template-bearing field of every step in doc
// and rejects unknown template variables at load time, rather than at
// render time (spec §4.5, spec §9 "Template strings").
func ValidateTemplates(doc *Document) error {
	for _, nh := range doc.Hooks {
		for _, step := range nh.Hook.Steps.Flatten() {
			if err := validateStepTemplates(nh.Name, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStepTemplates(hookName string, s *Step) error {
	fields := []struct {
		name string
		val  string
	}{
		{"check", s.Check},
		{"check_list_files", s.CheckListFiles},
		{"check_diff", s.CheckDiff},
		{"fix", s.Fix},
		{"stdin", s.Stdin},
		{"prefix", s.Prefix},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		if _, err := render.Parse(f.val); err != nil {
			return fmt.Errorf("hook %q, step %q, field %q: %w", hookName, s.Name, f.name, err)
		}
	}
	return nil
}
