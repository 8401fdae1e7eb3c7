package indexer

import (
	"strings"
	"testing"
)

func TestChunker_SplitsWithOverlap(t *testing.T) {
	c := NewChunker(4, 1)

	lines := make([]string, 10)
	for i := range lines {
		lines[i] = strings.Repeat("x", i+1)
	}
	chunks := c.Chunk("notes/a.md", strings.Join(lines, "\n"))

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 4 {
		t.Errorf("unexpected first window: %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
	// Consecutive windows share one line.
	if chunks[1].StartLine != 4 {
		t.Errorf("expected second window to start at line 4, got %d", chunks[1].StartLine)
	}
	if last := chunks[len(chunks)-1]; last.EndLine != 10 {
		t.Errorf("expected last window to end at line 10, got %d", last.EndLine)
	}
}

func TestChunker_EmptyContentProducesNoChunks(t *testing.T) {
	c := NewChunker(64, 8)

	if chunks := c.Chunk("a.md", ""); chunks != nil {
		t.Errorf("expected nil for empty content, got %d chunks", len(chunks))
	}
	if chunks := c.Chunk("a.md", "\n\n  \n"); chunks != nil {
		t.Errorf("expected nil for blank content, got %d chunks", len(chunks))
	}
}

func TestChunker_ContentHashIsPathIndependent(t *testing.T) {
	c := NewChunker(64, 8)

	a := c.Chunk("a.md", "same content")
	b := c.Chunk("b.md", "same content")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 chunk each, got %d and %d", len(a), len(b))
	}
	if a[0].ContentHash != b[0].ContentHash {
		t.Error("expected identical content hashes for identical content")
	}
	if a[0].ID == b[0].ID {
		t.Error("expected distinct chunk IDs")
	}
}

func TestChunker_ShortFileIsSingleChunk(t *testing.T) {
	c := NewChunker(64, 8)

	chunks := c.Chunk("a.md", "one\ntwo\nthree")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 3 {
		t.Errorf("unexpected window: %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
}
