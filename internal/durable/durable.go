// Package durable writes the files dilagent keeps under a working root:
// atomic write-then-rename guarded by a file lock, so a second dilagent
// process sharing the working root can never interleave or tear a write.
// In-process serialization is the owning store's mutex, not this lock.
package durable

import (
	"fmt"
	"os"
	"time"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/flock"
)

// LockTimeout is the maximum duration to wait for the file lock.
const LockTimeout = 5 * time.Second

// lockPerm is the permission for lock files.
const lockPerm = 0o600

// WriteFile writes data to path atomically while holding an exclusive lock
// on path + ".lock".
func WriteFile(path string, data []byte, perm os.FileMode) error {
	lockFile, err := acquireLock(path + ".lock")
	if err != nil {
		return err
	}
	defer func() { _ = releaseLock(lockFile) }()

	return atomicWrite(path, data, perm)
}

// acquireLock acquires an exclusive lock on the given lock file, retrying
// until LockTimeout elapses.
func acquireLock(lockPath string) (*os.File, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockPerm) //#nosec G304 -- path is derived from the validated working root
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		if err := flock.Exclusive(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", dilerrors.ErrLockTimeout)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock and closes the file.
func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := flock.Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

// atomicWrite writes data to a file atomically using write-then-rename, with
// an fsync before the rename so a crash never leaves a truncated durable file.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
