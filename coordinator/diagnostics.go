package coordinator

import (
	"time"

	"vaultindex/queue"
	"vaultindex/workspace"
)

// Diagnostics is a point-in-time snapshot of pipeline state for the status
// command and the MCP server.
type Diagnostics struct {
	Strategy          string             `json:"strategy"`
	QueueSize         int                `json:"queue_size"`
	QueuedEvents      []queue.FileEvent  `json:"queued_events,omitempty"`
	IdleFor           time.Duration      `json:"idle_for"`
	CorpusReady       bool               `json:"corpus_ready"`
	SuppressedEvents  int                `json:"suppressed_events"`
	WorkspaceActivity map[string]int     `json:"workspace_activity,omitempty"`
	MostActive        string             `json:"most_active_workspace,omitempty"`
	CurrentSession    *workspace.Session `json:"current_session,omitempty"`
}

// Diagnose collects current pipeline state.
func (c *Coordinator) Diagnose() Diagnostics {
	return Diagnostics{
		Strategy:          c.scheduler.Strategy(),
		QueueSize:         c.queue.Size(),
		QueuedEvents:      c.queue.List(),
		IdleFor:           c.scheduler.IdleFor(),
		CorpusReady:       c.monitor.CorpusReady(),
		SuppressedEvents:  c.monitor.SuppressedCount(),
		WorkspaceActivity: c.activity.Counts(),
		MostActive:        c.activity.MostActive(),
		CurrentSession:    c.sessions.Current(),
	}
}
