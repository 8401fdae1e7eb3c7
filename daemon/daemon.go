// Package daemon manages the background watch process for a vault.
//
// Each vault gets its own daemon, tracked by a PID file under the vault's
// .vaultindex directory. A ready marker file signals that initialization
// (store, embedder, queue restore) has completed, so callers spawning the
// daemon can distinguish "still starting" from "running".
//
// PID file writes are serialized with a file lock so two watch processes
// started at the same time cannot both claim the vault.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	pidFileName   = "watch.pid"
	logFileName   = "watch.log"
	readyFileName = "watch.ready"
)

// LogPath returns the path of the daemon log file inside stateDir.
func LogPath(stateDir string) string {
	return filepath.Join(stateDir, logFileName)
}

// WritePIDFile records the current process as the vault's watch daemon.
// The PID file holds a single decimal PID. The lock file stays open and
// locked for the lifetime of the process; the OS releases it on exit.
func WritePIDFile(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := filepath.Join(stateDir, pidFileName)
	lockPath := pidPath + ".lock"

	lockFh, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := lockFile(lockFh); err != nil {
		lockFh.Close()
		return fmt.Errorf("another watch process is starting for this vault (lock held)")
	}

	content := fmt.Sprintf("%d\n", os.Getpid())
	tmpPath := pidPath + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		lockFh.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Rename(tmpPath, pidPath); err != nil {
		os.Remove(tmpPath)
		lockFh.Close()
		return fmt.Errorf("failed to rename PID file: %w", err)
	}

	// lockFh is intentionally left open so the lock outlives this call.
	return nil
}

// ReadPIDFile returns the recorded daemon PID, or 0 if no PID file exists.
// It does not check whether the process is alive; use GetRunningPID for that.
func ReadPIDFile(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file and its lock file.
func RemovePIDFile(stateDir string) error {
	pidPath := filepath.Join(stateDir, pidFileName)
	_ = os.Remove(pidPath + ".lock")

	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetRunningPID returns the PID of the running daemon, or 0 if none.
// Stale PID files left by a crashed process are cleaned up on the way.
func GetRunningPID(stateDir string) (int, error) {
	pid, err := ReadPIDFile(stateDir)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		return 0, nil
	}

	if !IsProcessRunning(pid) {
		_ = RemovePIDFile(stateDir)
		return 0, nil
	}
	return pid, nil
}

// WriteReadyFile marks the daemon as fully initialized. Called once the
// embedder has answered, the queue snapshot is restored and the watcher
// is running.
func WriteReadyFile(stateDir string) error {
	content := fmt.Sprintf("ready\n%d\n", os.Getpid())
	if err := os.WriteFile(filepath.Join(stateDir, readyFileName), []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write ready file: %w", err)
	}
	return nil
}

// RemoveReadyFile removes the ready marker.
func RemoveReadyFile(stateDir string) error {
	if err := os.Remove(filepath.Join(stateDir, readyFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ready file: %w", err)
	}
	return nil
}

// IsReady reports whether the ready marker exists.
func IsReady(stateDir string) bool {
	_, err := os.Stat(filepath.Join(stateDir, readyFileName))
	return err == nil
}

// SpawnBackground re-executes the current binary detached from the
// terminal, with stdout and stderr appended to the daemon log file and
// VAULTINDEX_BACKGROUND=1 set so the child knows not to respawn.
//
// Args are the command-line arguments for the child, e.g. {"watch"}.
// Returns the child PID and a channel that is closed when the child
// exits, so callers can detect a child that died during startup.
func SpawnBackground(stateDir string, args []string) (int, <-chan struct{}, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return 0, nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	logFile, err := os.OpenFile(LogPath(stateDir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	liveness, err := newLivenessCheck()
	if err != nil {
		logFile.Close()
		return 0, nil, err
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "VAULTINDEX_BACKGROUND=1")
	cmd.SysProcAttr = sysProcAttr()
	liveness.configureCmd(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		liveness.cleanup()
		return 0, nil, fmt.Errorf("failed to start background process: %w", err)
	}

	logFile.Close()
	return cmd.Process.Pid, liveness.start(cmd.Process.Pid), nil
}

// IsBackground reports whether this process was spawned by SpawnBackground.
func IsBackground() bool {
	return os.Getenv("VAULTINDEX_BACKGROUND") == "1"
}
