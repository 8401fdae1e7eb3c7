package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vaultindex/internal/fileutil"
)

// snapshotEntry is the on-disk shape of one queued event.
type snapshotEntry struct {
	Path  string    `json:"path"`
	Event FileEvent `json:"event"`
}

// Persist writes the queue contents to the snapshot file. The write is
// atomic: a temp file in the same directory is renamed over the target, so
// a crash mid-write never leaves a truncated snapshot behind.
func (q *EventQueue) Persist() error {
	q.mu.Lock()
	entries := make([]snapshotEntry, 0, len(q.events))
	for path, ev := range q.events {
		entries = append(entries, snapshotEntry{Path: path, Event: ev})
	}
	q.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}

	if err := fileutil.EnsureParentDir(q.snapshotPath); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(q.snapshotPath), ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close queue snapshot: %w", err)
	}

	if err := fileutil.ReplaceFileAtomically(tmpPath, q.snapshotPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace queue snapshot: %w", err)
	}
	return nil
}

// Restore loads the snapshot from disk, replacing the in-memory contents.
// A missing snapshot is an empty queue, not an error. Every restored entry
// stays eligible for processing; staleness decisions belong to the caller.
func (q *EventQueue) Restore() error {
	data, err := os.ReadFile(q.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read queue snapshot: %w", err)
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode queue snapshot: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = make(map[string]FileEvent, len(entries))
	for _, entry := range entries {
		ev := entry.Event
		if ev.Path == "" {
			ev.Path = entry.Path
		}
		q.events[entry.Path] = ev
	}
	return nil
}
