package workspace

import (
	"testing"
	"time"
)

func TestWorkspaceOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes/a.md", "notes"},
		{"notes/deep/b.md", "notes"},
		{"root.md", "."},
		{"", "."},
		{"./notes/a.md", "notes"},
		{"  notes/a.md", "notes"},
	}

	for _, tt := range tests {
		if got := WorkspaceOf(tt.path); got != tt.want {
			t.Errorf("WorkspaceOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestActivityTracker_RecordAndCounts(t *testing.T) {
	tr := NewActivityTracker()

	tr.Record("notes/a.md")
	tr.Record("notes/b.md")
	tr.Record("journal/today.md")
	tr.Record("inbox.md")

	counts := tr.Counts()
	if counts["notes"] != 2 {
		t.Errorf("expected 2 events in notes, got %d", counts["notes"])
	}
	if counts["journal"] != 1 {
		t.Errorf("expected 1 event in journal, got %d", counts["journal"])
	}
	if counts["."] != 1 {
		t.Errorf("expected 1 root event, got %d", counts["."])
	}

	if tr.MostActive() != "notes" {
		t.Errorf("expected notes most active, got %s", tr.MostActive())
	}
}

func TestActivityTracker_RecordNeverFailsOnOddInput(t *testing.T) {
	tr := NewActivityTracker()

	// None of these should panic.
	tr.Record("")
	tr.Record("   ")
	tr.Record("/leading/slash.md")
	tr.Record("trailing/")

	if tr.LastActivity(".").IsZero() {
		t.Error("expected odd input recorded under root workspace")
	}
}

func TestActivityTracker_LastActivity(t *testing.T) {
	tr := NewActivityTracker()

	if !tr.LastActivity("notes").IsZero() {
		t.Error("expected zero time before any activity")
	}

	tr.Record("notes/a.md")
	if tr.LastActivity("notes").IsZero() {
		t.Error("expected last activity set after record")
	}
}

func TestSessionTracker_GroupsEventsIntoSessions(t *testing.T) {
	tr := NewSessionTracker(50 * time.Millisecond)

	id1 := tr.Touch()
	id2 := tr.Touch()
	if id1 != id2 {
		t.Error("expected rapid events to share a session")
	}

	current := tr.Current()
	if current == nil || current.Events != 2 {
		t.Fatalf("expected active session with 2 events, got %+v", current)
	}

	// Let the session time out, then touch again.
	time.Sleep(80 * time.Millisecond)
	id3 := tr.Touch()
	if id3 == id1 {
		t.Error("expected a new session after timeout")
	}

	history := tr.History()
	if len(history) != 1 {
		t.Fatalf("expected 1 closed session, got %d", len(history))
	}
	if history[0].ID != id1 || history[0].Events != 2 {
		t.Errorf("unexpected closed session: %+v", history[0])
	}
}

func TestSessionTracker_CurrentNilWhenQuiet(t *testing.T) {
	tr := NewSessionTracker(20 * time.Millisecond)

	if tr.Current() != nil {
		t.Error("expected no session before any activity")
	}

	tr.Touch()
	time.Sleep(50 * time.Millisecond)
	if tr.Current() != nil {
		t.Error("expected session closed after quiet period")
	}
}
