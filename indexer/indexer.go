package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"vaultindex/embedder"
	"vaultindex/store"
)

// Indexer turns vault documents into stored embeddings. All paths are
// vault-relative; the indexer resolves them against the vault root when
// reading content.
type Indexer struct {
	vaultRoot string
	store     store.VectorStore
	embedder  embedder.Embedder
	chunker   *Chunker
}

// PathResult reports the outcome for one path in a batch operation.
type PathResult struct {
	Path    string
	Chunks  int
	Skipped bool // content already embedded, nothing to do
	Err     error
}

func NewIndexer(vaultRoot string, st store.VectorStore, emb embedder.Embedder, chunker *Chunker) *Indexer {
	return &Indexer{
		vaultRoot: vaultRoot,
		store:     st,
		embedder:  emb,
		chunker:   chunker,
	}
}

// Ready reports whether the embedding provider is reachable.
func (idx *Indexer) Ready(ctx context.Context) error {
	return idx.embedder.Ping(ctx)
}

// HasUpToDateEmbedding reports whether the stored document hash matches the
// current on-disk content. A missing file or missing document is not up to
// date. This is the restart-safety check: re-queued events for unchanged
// files resolve to a no-op here.
func (idx *Indexer) HasUpToDateEmbedding(ctx context.Context, relPath string) (bool, error) {
	content, err := os.ReadFile(filepath.Join(idx.vaultRoot, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	doc, err := idx.store.GetDocument(ctx, relPath)
	if err != nil {
		return false, fmt.Errorf("failed to get document %s: %w", relPath, err)
	}
	if doc == nil {
		return false, nil
	}

	return doc.Hash == HashContent(string(content)), nil
}

// EmbedPaths embeds the given paths one file at a time, so one failing file
// never blocks the rest of the batch. Files whose stored hash already
// matches are skipped.
func (idx *Indexer) EmbedPaths(ctx context.Context, relPaths []string) []PathResult {
	results := make([]PathResult, 0, len(relPaths))
	for _, relPath := range relPaths {
		result := PathResult{Path: relPath}
		result.Chunks, result.Skipped, result.Err = idx.embedOne(ctx, relPath)
		results = append(results, result)
	}
	return results
}

func (idx *Indexer) embedOne(ctx context.Context, relPath string) (int, bool, error) {
	content, err := os.ReadFile(filepath.Join(idx.vaultRoot, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			// File vanished between queueing and draining. Treat as removal.
			return 0, false, idx.removeOne(ctx, relPath)
		}
		return 0, false, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	fileHash := HashContent(string(content))

	doc, err := idx.store.GetDocument(ctx, relPath)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get document %s: %w", relPath, err)
	}
	if doc != nil && doc.Hash == fileHash {
		return 0, true, nil
	}

	chunkInfos := idx.chunker.Chunk(relPath, string(content))

	vectors, err := idx.embedChunks(ctx, chunkInfos)
	if err != nil {
		return 0, false, fmt.Errorf("failed to embed %s: %w", relPath, err)
	}

	if err := idx.store.DeleteByFile(ctx, relPath); err != nil {
		return 0, false, fmt.Errorf("failed to delete existing chunks for %s: %w", relPath, err)
	}

	now := time.Now()
	chunks := make([]store.Chunk, len(chunkInfos))
	chunkIDs := make([]string, len(chunkInfos))
	for i, info := range chunkInfos {
		chunks[i] = store.Chunk{
			ID:          info.ID,
			FilePath:    info.FilePath,
			StartLine:   info.StartLine,
			EndLine:     info.EndLine,
			Content:     info.Content,
			Vector:      vectors[i],
			ContentHash: info.ContentHash,
			UpdatedAt:   now,
		}
		chunkIDs[i] = info.ID
	}

	if err := idx.store.SaveChunks(ctx, chunks); err != nil {
		return 0, false, fmt.Errorf("failed to save chunks for %s: %w", relPath, err)
	}

	var modTime time.Time
	if info, err := os.Stat(filepath.Join(idx.vaultRoot, relPath)); err == nil {
		modTime = info.ModTime()
	}

	docMeta := store.Document{
		Path:      relPath,
		Hash:      fileHash,
		ModTime:   modTime,
		ChunkIDs:  chunkIDs,
		IndexedAt: now,
	}
	if err := idx.store.SaveDocument(ctx, docMeta); err != nil {
		return 0, false, fmt.Errorf("failed to save document for %s: %w", relPath, err)
	}

	return len(chunks), false, nil
}

// embedChunks resolves vectors for chunks, reusing cached embeddings by
// content hash when the store supports it.
func (idx *Indexer) embedChunks(ctx context.Context, chunkInfos []ChunkInfo) ([][]float32, error) {
	vectors := make([][]float32, len(chunkInfos))

	var uncachedIdx []int
	if cache, ok := idx.store.(store.EmbeddingCache); ok {
		for i, info := range chunkInfos {
			vec, found, err := cache.LookupByContentHash(ctx, info.ContentHash)
			if err != nil {
				log.Printf("Warning: cache lookup failed for %s: %v", info.FilePath, err)
			}
			if found {
				vectors[i] = vec
			} else {
				uncachedIdx = append(uncachedIdx, i)
			}
		}
	} else {
		for i := range chunkInfos {
			uncachedIdx = append(uncachedIdx, i)
		}
	}

	if len(uncachedIdx) == 0 {
		return vectors, nil
	}

	texts := make([]string, len(uncachedIdx))
	for j, i := range uncachedIdx {
		texts[j] = chunkInfos[i].Content
	}

	fresh, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	for j, i := range uncachedIdx {
		vectors[i] = fresh[j]
	}

	return vectors, nil
}

// RemovePaths drops the given paths from the index.
func (idx *Indexer) RemovePaths(ctx context.Context, relPaths []string) []PathResult {
	results := make([]PathResult, 0, len(relPaths))
	for _, relPath := range relPaths {
		results = append(results, PathResult{Path: relPath, Err: idx.removeOne(ctx, relPath)})
	}
	return results
}

func (idx *Indexer) removeOne(ctx context.Context, relPath string) error {
	if err := idx.store.DeleteByFile(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", relPath, err)
	}
	if err := idx.store.DeleteDocument(ctx, relPath); err != nil {
		return fmt.Errorf("failed to delete document for %s: %w", relPath, err)
	}
	return nil
}
