//go:build !windows
// +build !windows

package store

import (
	"fmt"
	"os"
	"syscall"
)

// flockExclusive takes a blocking exclusive lock on f. Used around index
// writes so the daemon and one-shot commands serialize.
func flockExclusive(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock: %w", err)
	}
	return nil
}

// flockShared takes a blocking shared lock on f. Readers can overlap.
func flockShared(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	return nil
}

func funlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
