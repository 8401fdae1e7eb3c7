// Package workspace tracks where in the vault activity is happening, for
// diagnostics and idle detection.
package workspace

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ActivityTracker counts file activity per workspace. A workspace is the
// first path segment of a vault-relative path; files at the vault root fall
// under the root workspace. Record never fails: malformed paths land in the
// root workspace rather than being dropped.
type ActivityTracker struct {
	mu         sync.Mutex
	counts     map[string]int
	lastActive map[string]time.Time
}

const rootWorkspace = "."

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{
		counts:     make(map[string]int),
		lastActive: make(map[string]time.Time),
	}
}

// WorkspaceOf maps a vault-relative path to its workspace.
func WorkspaceOf(relPath string) string {
	relPath = filepath.ToSlash(strings.TrimSpace(relPath))
	relPath = strings.TrimPrefix(relPath, "./")
	if relPath == "" {
		return rootWorkspace
	}
	if i := strings.IndexByte(relPath, '/'); i > 0 {
		return relPath[:i]
	}
	return rootWorkspace
}

// Record notes activity on a path.
func (t *ActivityTracker) Record(relPath string) {
	ws := WorkspaceOf(relPath)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[ws]++
	t.lastActive[ws] = time.Now()
}

// Counts returns a copy of the per-workspace activity counts.
func (t *ActivityTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.counts))
	for ws, n := range t.counts {
		out[ws] = n
	}
	return out
}

// LastActivity returns when a workspace was last active, or zero time if
// never.
func (t *ActivityTracker) LastActivity(ws string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive[ws]
}

// MostActive returns the workspace with the highest activity count, or ""
// when nothing was recorded.
func (t *ActivityTracker) MostActive() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	best := ""
	bestCount := 0
	for ws, n := range t.counts {
		if n > bestCount || (n == bestCount && best != "" && ws < best) {
			best = ws
			bestCount = n
		}
	}
	return best
}
