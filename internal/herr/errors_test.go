package herr

import (
	"errors"
	"testing"
)

func TestCodeOfTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ExitCode
	}{
		{"config", &ConfigError{Path: "hk.yaml", Err: errors.New("bad yaml")}, ExitConfig},
		{"validation", &ValidationError{Msg: "stdin requires non-interactive"}, ExitConfig},
		{"plan", &PlanError{Msg: "unknown step \"lint\""}, ExitConfig},
		{"job", &JobFailure{Step: "lint", Code: 1}, ExitJobFailure},
		{"git", &GitError{Op: "stash_apply", Err: errors.New("conflict")}, ExitJobFailure},
		{"internal", &InternalError{Msg: "worker panic"}, ExitJobFailure},
		{"cancel", &Cancellation{Reason: "SIGINT"}, ExitInterrupted},
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitJobFailure},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CodeOf(c.err); got != c.want {
				t.Fatalf("CodeOf(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestConfigErrorFormatsLineWhenPresent(t *testing.T) {
	err := &ConfigError{Path: "hk.yaml", Line: 12, Err: errors.New("unexpected token")}
	want := "hk.yaml:12: unexpected token"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestGitErrorUnwraps(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &GitError{Op: "apply_patch", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("GitError does not unwrap to its cause")
	}
}
