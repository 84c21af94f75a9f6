package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// Slot is the scheduler-wide interactive terminal lock (spec §4.4: "a
// semaphore of size 1 held for the Job's lifetime"). Only one interactive
// Job may be attached to the real terminal at a time; all others wait.
type Slot struct {
	ch chan struct{}
}

// NewSlot returns a free Slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the slot is free or ctx is cancelled.
func (s *Slot) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot.
func (s *Slot) Release() { <-s.ch }

// RunInteractive runs cmd attached to a pseudo-terminal so the child can
// drive a real TTY (prompts, progress bars) while holding the slot. The
// progress display must be suspended by the caller for the Job's duration.
func RunInteractive(ctx context.Context, slot *Slot, cmd *exec.Cmd) (int, error) {
	if err := slot.Acquire(ctx); err != nil {
		return -1, err
	}
	defer slot.Release()

	f, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("starting interactive job in a pty: %w", err)
	}
	defer f.Close() //nolint:errcheck // best-effort cleanup of the pty master

	done := make(chan struct{})
	go func() {
		_, _ = os.Stdout.ReadFrom(f) //nolint:errcheck // terminal passthrough, not an I/O we validate
		close(done)
	}()

	waitErr := cmd.Wait()
	<-done
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, waitErr
	}
	return 0, nil
}
