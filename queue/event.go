package queue

// Op is the kind of file mutation carried by a FileEvent.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Priority orders queued events; deletions are always high so they drain
// before creates and modifies.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Source tags where an event came from.
type Source string

const (
	SourceWatcher Source = "watcher"
	SourceManual  Source = "manual"
)

// FileEvent is the atomic unit of indexing work.
type FileEvent struct {
	Path      string   `json:"path"`
	Op        Op       `json:"op"`
	Timestamp int64    `json:"timestamp"` // milliseconds
	SystemOp  bool     `json:"system_op,omitempty"`
	Source    Source   `json:"source"`
	Priority  Priority `json:"priority"`
}

// IsDelete reports whether the event removes a path from the index.
func (e FileEvent) IsDelete() bool {
	return e.Op == OpDelete
}

// merge combines a newer event for the same path into e. Priority and
// timestamp take the max of both sides. A delete replaces any pending
// upsert and is never downgraded back: once a path is marked deleted the
// pending embed work for it is cancelled.
func (e FileEvent) merge(newer FileEvent) FileEvent {
	merged := e
	if newer.Op == OpDelete || e.Op != OpDelete {
		merged.Op = newer.Op
	}
	if e.Op == OpDelete {
		merged.Op = OpDelete
	}
	if newer.Priority > merged.Priority {
		merged.Priority = newer.Priority
	}
	if newer.Timestamp > merged.Timestamp {
		merged.Timestamp = newer.Timestamp
	}
	merged.Source = newer.Source
	merged.SystemOp = newer.SystemOp
	return merged
}

func (o Op) String() string {
	return string(o)
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}
