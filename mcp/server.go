// Package mcp provides an MCP (Model Context Protocol) server for
// vaultindex. This lets AI agents inspect the index and queue, and request
// reindexing, over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"vaultindex/config"
	"vaultindex/queue"
	"vaultindex/store"
)

// Server wraps the MCP server with vaultindex functionality. Each tool call
// reads the vault's on-disk state fresh, so a server can run alongside the
// watch daemon.
type Server struct {
	mcpServer *server.MCPServer
	vaultRoot string
}

// IndexStatus is the status tool's output.
type IndexStatus struct {
	TotalFiles  int    `json:"total_files"`
	TotalChunks int    `json:"total_chunks"`
	IndexSize   string `json:"index_size"`
	LastUpdated string `json:"last_updated"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Strategy    string `json:"strategy"`
	QueueSize   int    `json:"queue_size"`
}

// QueueEntry is one queued event in the queue tool's output.
type QueueEntry struct {
	Path      string `json:"path"`
	Op        string `json:"op"`
	Priority  string `json:"priority"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// encodeOutput encodes data in the specified format (json or toon).
func encodeOutput(data any, format string) (string, error) {
	switch format {
	case "toon":
		return gotoon.Encode(data)
	default: // "json"
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}

// NewServer creates a new MCP server for vaultindex.
func NewServer(vaultRoot string) (*Server, error) {
	s := &Server{
		vaultRoot: vaultRoot,
	}

	s.mcpServer = server.NewMCPServer(
		"vaultindex",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	statusTool := mcp.NewTool("vaultindex_status",
		mcp.WithDescription("Check the health of the vault index. Returns statistics about indexed documents, chunks, queue depth, and configuration."),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	queueTool := mcp.NewTool("vaultindex_queue",
		mcp.WithDescription("List pending file events waiting to be embedded, in the order they would be processed."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries to return (default: 50)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(queueTool, s.handleQueue)

	reindexTool := mcp.NewTool("vaultindex_reindex",
		mcp.WithDescription("Queue a document for re-embedding. The watch daemon picks the event up on its next drain."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path of the document to reindex"),
		),
		mcp.WithBoolean("delete",
			mcp.Description("Remove the document from the index instead of re-embedding it (default: false)"),
		),
	)
	s.mcpServer.AddTool(reindexTool, s.handleReindex)
}

// handleStatus handles the vaultindex_status tool call.
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	cfg, err := config.Load(s.vaultRoot)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load configuration: %v", err)), nil
	}

	st := store.NewGOBStore(config.GetIndexPath(s.vaultRoot))
	if err := st.Load(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load index: %v", err)), nil
	}

	stats, err := st.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read index stats: %v", err)), nil
	}

	q := queue.NewEventQueue(config.GetQueuePath(s.vaultRoot))
	if err := q.Restore(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read queue snapshot: %v", err)), nil
	}

	lastUpdated := "never"
	if !stats.LastUpdated.IsZero() {
		lastUpdated = stats.LastUpdated.Format(time.RFC3339)
	}

	status := IndexStatus{
		TotalFiles:  stats.TotalFiles,
		TotalChunks: stats.TotalChunks,
		IndexSize:   formatBytes(stats.IndexSize),
		LastUpdated: lastUpdated,
		Provider:    cfg.Embedder.Provider,
		Model:       cfg.Embedder.Model,
		Strategy:    cfg.Strategy.Type,
		QueueSize:   q.Size(),
	}

	output, err := encodeOutput(status, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode output: %v", err)), nil
	}

	return mcp.NewToolResultText(output), nil
}

// handleQueue handles the vaultindex_queue tool call.
func (s *Server) handleQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	limit := request.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}

	q := queue.NewEventQueue(config.GetQueuePath(s.vaultRoot))
	if err := q.Restore(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read queue snapshot: %v", err)), nil
	}

	events := q.List()
	if len(events) > limit {
		events = events[:limit]
	}

	entries := make([]QueueEntry, len(events))
	for i, ev := range events {
		entries[i] = QueueEntry{
			Path:      ev.Path,
			Op:        string(ev.Op),
			Priority:  ev.Priority.String(),
			Source:    string(ev.Source),
			Timestamp: time.UnixMilli(ev.Timestamp).Format(time.RFC3339),
		}
	}

	output, err := encodeOutput(entries, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode output: %v", err)), nil
	}

	return mcp.NewToolResultText(output), nil
}

// handleReindex handles the vaultindex_reindex tool call.
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	isDelete := request.GetBool("delete", false)

	q := queue.NewEventQueue(config.GetQueuePath(s.vaultRoot))
	if err := q.Restore(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read queue snapshot: %v", err)), nil
	}

	op := queue.OpModify
	priority := queue.PriorityHigh
	if isDelete {
		op = queue.OpDelete
	}

	q.Add(queue.FileEvent{
		Path:      path,
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		Priority:  priority,
		Source:    queue.SourceManual,
	})

	if err := q.Persist(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to persist queue: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Queued %s of %s (%d events pending)", op, path, q.Size())), nil
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
