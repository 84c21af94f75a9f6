// Package herr is the error taxonomy (spec §7): a small set of distinct
// wrapped error types, each carrying an exit-code hint so the CLI layer
// never has to re-derive severity from an error's text.
package herr

import "fmt"

// ExitCode is the process exit code a top-level error should produce.
type ExitCode int

// Recognized exit codes (spec §6.2 "Exit codes").
const (
	ExitSuccess       ExitCode = 0
	ExitJobFailure    ExitCode = 1
	ExitConfig        ExitCode = 2
	ExitInterrupted   ExitCode = 130
)

// ConfigError is a parse/validation failure of the configuration document.
// Fatal at startup.
type ConfigError struct {
	Path string
	Line int
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode implements the exitCoder interface.
func (e *ConfigError) ExitCode() ExitCode { return ExitConfig }

// ValidationError is an inconsistent step/hook setting, e.g. `stage` set
// without `fix`, or `stdin` combined with `interactive`. Fatal at load.
type ValidationError struct {
	Hook string
	Step string
	Msg  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Step != "":
		return fmt.Sprintf("hook %q, step %q: %s", e.Hook, e.Step, e.Msg)
	case e.Hook != "":
		return fmt.Sprintf("hook %q: %s", e.Hook, e.Msg)
	default:
		return e.Msg
	}
}

func (e *ValidationError) ExitCode() ExitCode { return ExitConfig }

// GitError wraps a failed git-adapter operation. Recovery depends on the
// phase it occurred in; during stash restore, a non-recoverable GitError
// leaves a backup patch rather than losing data.
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string { return fmt.Sprintf("git %s: %v", e.Op, e.Err) }
func (e *GitError) Unwrap() error { return e.Err }
func (e *GitError) ExitCode() ExitCode { return ExitJobFailure }

// PlanError is an unknown step/hook name, or a cyclic `depends` graph.
// Fatal before any Job executes.
type PlanError struct {
	Msg string
}

func (e *PlanError) Error() string      { return e.Msg }
func (e *PlanError) ExitCode() ExitCode { return ExitConfig }

// JobFailure is a non-zero exit from a user command. Reported per step;
// does not affect other Jobs unless fail-fast is set.
type JobFailure struct {
	Step string
	Code int
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("step %q failed with exit code %d", e.Step, e.Code)
}

func (e *JobFailure) ExitCode() ExitCode { return ExitJobFailure }

// Cancellation signals a user- or child-triggered interrupt; the cleanup
// path (stash restore) runs before the process exits.
type Cancellation struct {
	Reason string
}

func (e *Cancellation) Error() string      { return "cancelled: " + e.Reason }
func (e *Cancellation) ExitCode() ExitCode { return ExitInterrupted }

// InternalError marks a worker crash (panic recovered at a worker
// boundary); the Job is Failed with a diagnostic and the run continues
// unless fail-fast is set.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Msg, e.Err)
	}
	return "internal error: " + e.Msg
}

func (e *InternalError) Unwrap() error  { return e.Err }
func (e *InternalError) ExitCode() ExitCode { return ExitJobFailure }

// exitCoder is implemented by every taxonomy type above.
type exitCoder interface {
	ExitCode() ExitCode
}

// CodeOf extracts the exit code a top-level error should produce, falling
// back to ExitJobFailure for any error outside the taxonomy (still
// non-zero, per spec §6.2: "non-zero on any Failed Job").
func CodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	if ec, ok := err.(exitCoder); ok { //nolint:errorlint // intentional type switch over the taxonomy's own types
		return ec.ExitCode()
	}
	return ExitJobFailure
}
