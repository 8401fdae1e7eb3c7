// Package fileutil holds small filesystem helpers shared by the
// persistence layers.
package fileutil

import (
	"os"
	"path/filepath"
)

// EnsureParentDir creates the parent directories of path if they are missing.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// ReplaceFileAtomically renames tempPath over targetPath. Where the plain
// rename fails (some filesystems reject replacing an open target), it
// falls back to remove-then-rename.
func ReplaceFileAtomically(tempPath, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err == nil {
		return nil
	}

	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tempPath, targetPath)
}
