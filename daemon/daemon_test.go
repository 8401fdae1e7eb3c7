package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	if err := WritePIDFile(dir); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	pid, err := ReadPIDFile(dir)
	if err != nil {
		t.Fatalf("ReadPIDFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected PID %d, got %d", os.Getpid(), pid)
	}
}

func TestReadPIDFileMissing(t *testing.T) {
	pid, err := ReadPIDFile(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for missing PID file, got %v", err)
	}
	if pid != 0 {
		t.Errorf("expected PID 0 for missing file, got %d", pid)
	}
}

func TestReadPIDFileCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "watch.pid"), []byte("not a pid\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPIDFile(dir); err == nil {
		t.Error("expected error for corrupt PID file")
	}
}

func TestRemovePIDFile(t *testing.T) {
	dir := t.TempDir()

	if err := WritePIDFile(dir); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}
	if err := RemovePIDFile(dir); err != nil {
		t.Fatalf("RemovePIDFile failed: %v", err)
	}

	pid, err := ReadPIDFile(dir)
	if err != nil || pid != 0 {
		t.Errorf("expected empty state after remove, got pid=%d err=%v", pid, err)
	}

	// Removing again is not an error.
	if err := RemovePIDFile(dir); err != nil {
		t.Errorf("second RemovePIDFile failed: %v", err)
	}
}

func TestGetRunningPIDAlive(t *testing.T) {
	dir := t.TempDir()

	if err := WritePIDFile(dir); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	pid, err := GetRunningPID(dir)
	if err != nil {
		t.Fatalf("GetRunningPID failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected own PID %d, got %d", os.Getpid(), pid)
	}
}

func TestGetRunningPIDStale(t *testing.T) {
	dir := t.TempDir()

	// PID well above any real process on a test machine.
	if err := os.WriteFile(filepath.Join(dir, "watch.pid"), []byte("99999999\n"), 0600); err != nil {
		t.Fatal(err)
	}

	pid, err := GetRunningPID(dir)
	if err != nil {
		t.Fatalf("GetRunningPID failed: %v", err)
	}
	if pid != 0 {
		t.Errorf("expected 0 for stale PID, got %d", pid)
	}

	// Stale PID file should have been cleaned up.
	if _, err := os.Stat(filepath.Join(dir, "watch.pid")); !os.IsNotExist(err) {
		t.Error("expected stale PID file to be removed")
	}
}

func TestReadyFileLifecycle(t *testing.T) {
	dir := t.TempDir()

	if IsReady(dir) {
		t.Error("expected not ready before WriteReadyFile")
	}

	if err := WriteReadyFile(dir); err != nil {
		t.Fatalf("WriteReadyFile failed: %v", err)
	}
	if !IsReady(dir) {
		t.Error("expected ready after WriteReadyFile")
	}

	if err := RemoveReadyFile(dir); err != nil {
		t.Fatalf("RemoveReadyFile failed: %v", err)
	}
	if IsReady(dir) {
		t.Error("expected not ready after RemoveReadyFile")
	}

	if err := RemoveReadyFile(dir); err != nil {
		t.Errorf("second RemoveReadyFile failed: %v", err)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("expected own process to be running")
	}
	if IsProcessRunning(0) {
		t.Error("expected PID 0 to report not running")
	}
	if IsProcessRunning(-1) {
		t.Error("expected negative PID to report not running")
	}
}

func TestIsBackground(t *testing.T) {
	t.Setenv("VAULTINDEX_BACKGROUND", "")
	if IsBackground() {
		t.Error("expected foreground without env var")
	}

	t.Setenv("VAULTINDEX_BACKGROUND", "1")
	if !IsBackground() {
		t.Error("expected background with env var set")
	}
}
