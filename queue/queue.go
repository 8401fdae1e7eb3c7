package queue

import (
	"sort"
	"sync"
)

// EventQueue is a coalescing, priority-ordered store of pending file
// mutations. At most one live event exists per path; repeated adds for the
// same path merge instead of appending, so edit bursts never enqueue
// duplicate work.
type EventQueue struct {
	mu           sync.Mutex
	events       map[string]FileEvent
	snapshotPath string
}

// NewEventQueue creates a queue whose snapshot lives at snapshotPath.
func NewEventQueue(snapshotPath string) *EventQueue {
	return &EventQueue{
		events:       make(map[string]FileEvent),
		snapshotPath: snapshotPath,
	}
}

// Add merges event into any existing entry for the same path.
func (q *EventQueue) Add(event FileEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.events[event.Path]; ok {
		q.events[event.Path] = existing.merge(event)
		return
	}
	q.events[event.Path] = event
}

// List returns all pending events ordered by priority (high first), then by
// ascending timestamp within a tier. Deletes sort before upserts on full
// ties so a rename's delete half always drains before its create half.
func (q *EventQueue) List() []FileEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := make([]FileEvent, 0, len(q.events))
	for _, ev := range q.events {
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Priority != events[j].Priority {
			return events[i].Priority > events[j].Priority
		}
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		if events[i].IsDelete() != events[j].IsDelete() {
			return events[i].IsDelete()
		}
		return events[i].Path < events[j].Path
	})

	return events
}

// Remove drops the pending event for path, if any.
func (q *EventQueue) Remove(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.events, path)
}

// Contains reports whether a pending event exists for path.
func (q *EventQueue) Contains(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.events[path]
	return ok
}

// Size returns the number of pending events.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear removes all pending events.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = make(map[string]FileEvent)
}

// Get returns the pending event for path.
func (q *EventQueue) Get(path string) (FileEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev, ok := q.events[path]
	return ev, ok
}
