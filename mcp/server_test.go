package mcp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeOutput_JSON(t *testing.T) {
	status := IndexStatus{
		TotalFiles:  3,
		TotalChunks: 12,
		IndexSize:   "1.5 KB",
		Provider:    "ollama",
		Strategy:    "idle",
	}

	out, err := encodeOutput(status, "json")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded IndexStatus
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TotalFiles != 3 || decoded.Strategy != "idle" {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestEncodeOutput_Toon(t *testing.T) {
	entries := []QueueEntry{
		{Path: "a.md", Op: "modify", Priority: "normal", Source: "watcher"},
		{Path: "b.md", Op: "delete", Priority: "high", Source: "manual"},
	}

	out, err := encodeOutput(entries, "toon")
	if err != nil {
		t.Fatalf("toon encode failed: %v", err)
	}
	if !strings.Contains(out, "a.md") || !strings.Contains(out, "b.md") {
		t.Errorf("expected paths in toon output, got: %s", out)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewServer(t *testing.T) {
	s, err := NewServer(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	if s.mcpServer == nil {
		t.Error("expected MCP server initialized")
	}
}
