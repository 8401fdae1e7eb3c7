package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testChunk(id, path, content string) Chunk {
	return Chunk{
		ID:          id,
		FilePath:    path,
		StartLine:   1,
		EndLine:     10,
		Content:     content,
		Vector:      []float32{0.1, 0.2, 0.3},
		ContentHash: "hash-" + content,
		UpdatedAt:   time.Now(),
	}
}

func TestGOBStore_SaveAndGetDocument(t *testing.T) {
	ctx := context.Background()
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := Document{
		Path:     "notes/a.md",
		Hash:     "abc123",
		ModTime:  time.Now(),
		ChunkIDs: []string{"c1", "c2"},
	}
	if err := s.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("save document failed: %v", err)
	}

	got, err := s.GetDocument(ctx, "notes/a.md")
	if err != nil {
		t.Fatalf("get document failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected document, got nil")
	}
	if got.Hash != "abc123" {
		t.Errorf("expected hash abc123, got %s", got.Hash)
	}

	missing, err := s.GetDocument(ctx, "notes/missing.md")
	if err != nil {
		t.Fatalf("get missing document failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing document")
	}
}

func TestGOBStore_DeleteByFileRemovesChunks(t *testing.T) {
	ctx := context.Background()
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	chunks := []Chunk{
		testChunk("c1", "notes/a.md", "first"),
		testChunk("c2", "notes/a.md", "second"),
	}
	if err := s.SaveChunks(ctx, chunks); err != nil {
		t.Fatalf("save chunks failed: %v", err)
	}
	if err := s.SaveDocument(ctx, Document{Path: "notes/a.md", Hash: "h", ChunkIDs: []string{"c1", "c2"}}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteByFile(ctx, "notes/a.md"); err != nil {
		t.Fatalf("delete by file failed: %v", err)
	}
	if err := s.DeleteDocument(ctx, "notes/a.md"); err != nil {
		t.Fatalf("delete document failed: %v", err)
	}

	if _, found, _ := s.LookupByContentHash(ctx, "hash-first"); found {
		t.Error("expected chunk vectors gone after delete")
	}

	paths, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no documents, got %v", paths)
	}
}

func TestGOBStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	indexPath := filepath.Join(t.TempDir(), "index.gob")

	s1 := NewGOBStore(indexPath)
	if err := s1.SaveChunks(ctx, []Chunk{testChunk("c1", "notes/a.md", "body")}); err != nil {
		t.Fatal(err)
	}
	if err := s1.SaveDocument(ctx, Document{Path: "notes/a.md", Hash: "h1", ChunkIDs: []string{"c1"}}); err != nil {
		t.Fatal(err)
	}
	if err := s1.Persist(ctx); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	s2 := NewGOBStore(indexPath)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	doc, err := s2.GetDocument(ctx, "notes/a.md")
	if err != nil || doc == nil {
		t.Fatalf("expected document after load, got doc=%v err=%v", doc, err)
	}

	// Content-hash index is rebuilt on load.
	vec, found, err := s2.LookupByContentHash(ctx, "hash-body")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected content hash lookup to hit after load")
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dim vector, got %d", len(vec))
	}
}

func TestGOBStore_LoadMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewGOBStore(filepath.Join(t.TempDir(), "nonexistent.gob"))

	if err := s.Load(ctx); err != nil {
		t.Fatalf("expected missing index to load empty, got: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalFiles != 0 || stats.TotalChunks != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestGOBStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	if err := s.SaveChunks(ctx, []Chunk{
		testChunk("c1", "a.md", "one"),
		testChunk("c2", "b.md", "two"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocument(ctx, Document{Path: "a.md", ChunkIDs: []string{"c1"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocument(ctx, Document{Path: "b.md", ChunkIDs: []string{"c2"}}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("expected 2 files, got %d", stats.TotalFiles)
	}
	if stats.TotalChunks != 2 {
		t.Errorf("expected 2 chunks, got %d", stats.TotalChunks)
	}
}
