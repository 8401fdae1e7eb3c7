package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
	"time"

	"vaultindex/internal/fileutil"
)

// GOBStore is the local single-file backend. All state lives in memory and
// is flushed to a gob snapshot; a lock file guards cross-process access
// since the watch daemon and one-shot CLI commands may overlap.
type GOBStore struct {
	indexPath string
	lockPath  string
	chunks    map[string]Chunk    // id -> chunk
	documents map[string]Document // path -> document
	byContent map[string]string   // content hash -> chunk id
	mu        sync.RWMutex
}

type gobData struct {
	Chunks    map[string]Chunk
	Documents map[string]Document
}

func NewGOBStore(indexPath string) *GOBStore {
	return &GOBStore{
		indexPath: indexPath,
		lockPath:  indexPath + ".lock",
		chunks:    make(map[string]Chunk),
		documents: make(map[string]Document),
		byContent: make(map[string]string),
	}
}

func (s *GOBStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
		if chunk.ContentHash != "" {
			s.byContent[chunk.ContentHash] = chunk.ID
		}
	}

	return nil
}

func (s *GOBStore) DeleteByFile(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[filePath]
	if !ok {
		return nil
	}

	for _, chunkID := range doc.ChunkIDs {
		if chunk, ok := s.chunks[chunkID]; ok && chunk.ContentHash != "" {
			if s.byContent[chunk.ContentHash] == chunkID {
				delete(s.byContent, chunk.ContentHash)
			}
		}
		delete(s.chunks, chunkID)
	}

	return nil
}

func (s *GOBStore) GetDocument(ctx context.Context, filePath string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[filePath]
	if !ok {
		return nil, nil
	}

	return &doc, nil
}

func (s *GOBStore) SaveDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[doc.Path] = doc
	return nil
}

func (s *GOBStore) DeleteDocument(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, filePath)
	return nil
}

func (s *GOBStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.documents))
	for path := range s.documents {
		paths = append(paths, path)
	}

	return paths, nil
}

// LookupByContentHash implements EmbeddingCache.
func (s *GOBStore) LookupByContentHash(ctx context.Context, contentHash string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byContent[contentHash]
	if !ok {
		return nil, false, nil
	}
	chunk, ok := s.chunks[id]
	if !ok || len(chunk.Vector) == 0 {
		return nil, false, nil
	}
	return chunk.Vector, true, nil
}

func (s *GOBStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.loadUnlocked()
	}
	defer lockFile.Close()

	if err := flockShared(lockFile); err != nil {
		return s.loadUnlocked()
	}
	defer func() {
		_ = funlock(lockFile)
	}()

	return s.loadUnlocked()
}

func (s *GOBStore) loadUnlocked() error {
	file, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var data gobData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	s.chunks = data.Chunks
	s.documents = data.Documents

	if s.chunks == nil {
		s.chunks = make(map[string]Chunk)
	}
	if s.documents == nil {
		s.documents = make(map[string]Document)
	}

	s.byContent = make(map[string]string, len(s.chunks))
	for id, chunk := range s.chunks {
		if chunk.ContentHash != "" {
			s.byContent[chunk.ContentHash] = id
		}
	}

	return nil
}

func (s *GOBStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.persistUnlocked()
	}
	defer lockFile.Close()

	if err := flockExclusive(lockFile); err != nil {
		return s.persistUnlocked()
	}
	defer func() {
		_ = funlock(lockFile)
	}()

	return s.persistUnlocked()
}

func (s *GOBStore) persistUnlocked() error {
	if err := fileutil.EnsureParentDir(s.indexPath); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmpPath := s.indexPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	data := gobData{
		Chunks:    s.chunks,
		Documents: s.documents,
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := fileutil.ReplaceFileAtomically(tmpPath, s.indexPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func (s *GOBStore) Close() error {
	return s.Persist(context.Background())
}

func (s *GOBStore) GetStats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastUpdated time.Time
	for _, chunk := range s.chunks {
		if chunk.UpdatedAt.After(lastUpdated) {
			lastUpdated = chunk.UpdatedAt
		}
	}

	var size int64
	if info, err := os.Stat(s.indexPath); err == nil {
		size = info.Size()
	}

	return &IndexStats{
		TotalFiles:  len(s.documents),
		TotalChunks: len(s.chunks),
		IndexSize:   size,
		LastUpdated: lastUpdated,
	}, nil
}
