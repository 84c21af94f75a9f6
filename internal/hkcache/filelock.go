package hkcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileLock is an advisory, cross-process lock guarding whole-cache
// operations (e.g. Clean, schema migration) on the SQLite-backed cache
// directory, so two concurrent hk invocations against the same repo
// don't corrupt or race on cache state.
type FileLock struct {
	file     *os.File
	lockPath string
}

// NewFileLock returns a lock guarding cacheDir's `.lock` file. The lock
// file itself carries no content; flock's kernel-held lock state is all
// that matters.
func NewFileLock(cacheDir string) *FileLock {
	return &FileLock{
		lockPath: filepath.Join(cacheDir, ".lock"),
	}
}

// Lock acquires the file lock via flock(2), trying non-blocking first so
// a canceled ctx doesn't have to wait on contention before it can bail.
func (fl *FileLock) Lock(ctx context.Context) error {
	file, err := os.OpenFile(fl.lockPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	fl.file = file

	// Try to acquire without blocking first.
	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		// Got the lock immediately
		return nil
	}

	// If we couldn't get the lock immediately, check if context is canceled
	select {
	case <-ctx.Done():
		_ = fl.file.Close() //nolint:errcheck // Best effort close, context error is more important
		fl.file = nil
		return ctx.Err()
	default:
	}

	// Fall back to a blocking lock, run in a goroutine so ctx cancellation
	// can still interrupt the wait.
	done := make(chan error, 1)
	go func() {
		done <- syscall.Flock(int(file.Fd()), syscall.LOCK_EX)
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = fl.file.Close() //nolint:errcheck // Best effort close, flock error is more important
			fl.file = nil
			return fmt.Errorf("failed to acquire file lock: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = fl.file.Close() //nolint:errcheck // Best effort close, context error is more important
		fl.file = nil
		return ctx.Err()
	}
}

// Unlock releases the file lock.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN)

	// Close the file
	if closeErr := fl.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	fl.file = nil
	return err
}

// WithLock runs fn while holding the lock, releasing it even if fn panics
// or returns an error.
func (fl *FileLock) WithLock(ctx context.Context, fn func() error) error {
	if err := fl.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if unlockErr := fl.Unlock(); unlockErr != nil {
			fmt.Printf("⚠️  Warning: failed to unlock file: %v\n", unlockErr)
		}
	}()

	return fn()
}

// WithLockTimeout executes a function while holding the file lock with a timeout
func (fl *FileLock) WithLockTimeout(timeout time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return fl.WithLock(ctx, fn)
}
