package queue

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshot_PersistAndRestore(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "queue.json")

	q1 := NewEventQueue(snapshotPath)
	q1.Add(FileEvent{Path: "notes/a.md", Op: OpModify, Timestamp: 100, Priority: PriorityNormal, Source: SourceWatcher})
	q1.Add(FileEvent{Path: "notes/b.md", Op: OpDelete, Timestamp: 200, Priority: PriorityHigh, Source: SourceWatcher})

	if err := q1.Persist(); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	q2 := NewEventQueue(snapshotPath)
	if err := q2.Restore(); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if q2.Size() != 2 {
		t.Fatalf("expected 2 restored entries, got %d", q2.Size())
	}

	ev, ok := q2.Get("notes/b.md")
	if !ok {
		t.Fatal("expected notes/b.md restored")
	}
	if ev.Op != OpDelete || ev.Priority != PriorityHigh || ev.Timestamp != 200 {
		t.Errorf("restored event mismatch: %+v", ev)
	}
}

func TestSnapshot_RestoreMissingFileIsEmptyQueue(t *testing.T) {
	q := NewEventQueue(filepath.Join(t.TempDir(), "does-not-exist.json"))

	if err := q.Restore(); err != nil {
		t.Fatalf("expected missing snapshot to restore empty, got error: %v", err)
	}
	if q.Size() != 0 {
		t.Errorf("expected empty queue, got %d entries", q.Size())
	}
}

func TestSnapshot_RestoreCorruptFileFails(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(snapshotPath, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	q := NewEventQueue(snapshotPath)
	if err := q.Restore(); err == nil {
		t.Error("expected error restoring corrupt snapshot")
	}
}

func TestSnapshot_PersistOverwritesPrevious(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "queue.json")

	q := NewEventQueue(snapshotPath)
	q.Add(FileEvent{Path: "a.md", Op: OpModify, Timestamp: 1, Priority: PriorityNormal})
	if err := q.Persist(); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	q.Remove("a.md")
	q.Add(FileEvent{Path: "b.md", Op: OpCreate, Timestamp: 2, Priority: PriorityNormal})
	if err := q.Persist(); err != nil {
		t.Fatalf("second persist failed: %v", err)
	}

	q2 := NewEventQueue(snapshotPath)
	if err := q2.Restore(); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if q2.Contains("a.md") {
		t.Error("expected a.md pruned from snapshot")
	}
	if !q2.Contains("b.md") {
		t.Error("expected b.md in snapshot")
	}
}
