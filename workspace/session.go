package workspace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one contiguous stretch of vault activity.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Events    int       `json:"events"`
}

// SessionTracker groups activity into sessions. A session starts on the
// first event after a gap longer than the configured timeout and closes
// once the gap recurs.
type SessionTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	current *Session
	closed  []Session
}

func NewSessionTracker(timeout time.Duration) *SessionTracker {
	return &SessionTracker{timeout: timeout}
}

// Touch records an event, opening a new session when needed. Returns the
// active session's ID.
func (t *SessionTracker) Touch() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.rolloverLocked(now)

	if t.current == nil {
		t.current = &Session{
			ID:        uuid.New().String(),
			StartedAt: now,
		}
	}
	t.current.Events++
	t.current.EndedAt = now
	return t.current.ID
}

// Current returns a copy of the active session, or nil when the vault has
// been quiet past the timeout.
func (t *SessionTracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(time.Now())
	if t.current == nil {
		return nil
	}
	s := *t.current
	return &s
}

// History returns closed sessions, oldest first.
func (t *SessionTracker) History() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(time.Now())
	out := make([]Session, len(t.closed))
	copy(out, t.closed)
	return out
}

func (t *SessionTracker) rolloverLocked(now time.Time) {
	if t.current != nil && now.Sub(t.current.EndedAt) > t.timeout {
		t.closed = append(t.closed, *t.current)
		t.current = nil
	}
}
