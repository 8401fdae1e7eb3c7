package store

import (
	"context"
	"time"
)

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"file_path"`
	StartLine   int       `json:"start_line"`
	EndLine     int       `json:"end_line"`
	Content     string    `json:"content"`
	Vector      []float32 `json:"vector"`
	ContentHash string    `json:"content_hash"` // SHA256 of chunk content, path-independent
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is an indexed file with its chunk membership. Hash is the SHA256
// of the whole file and is the idempotency key for the pipeline: a document
// whose stored hash matches the on-disk content needs no re-embedding.
type Document struct {
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	ModTime   time.Time `json:"mod_time"`
	ChunkIDs  []string  `json:"chunk_ids"`
	IndexedAt time.Time `json:"indexed_at"`
}

// IndexStats describes the current index contents.
type IndexStats struct {
	TotalFiles  int       `json:"total_files"`
	TotalChunks int       `json:"total_chunks"`
	IndexSize   int64     `json:"index_size"` // bytes, 0 for remote backends
	LastUpdated time.Time `json:"last_updated"`
}

// VectorStore is the persistence backend for embedded documents.
type VectorStore interface {
	// SaveChunks stores multiple chunks.
	SaveChunks(ctx context.Context, chunks []Chunk) error

	// DeleteByFile removes all chunks for a file path.
	DeleteByFile(ctx context.Context, filePath string) error

	// GetDocument retrieves document metadata by path; nil if absent.
	GetDocument(ctx context.Context, filePath string) (*Document, error)

	// SaveDocument stores document metadata.
	SaveDocument(ctx context.Context, doc Document) error

	// DeleteDocument removes document metadata.
	DeleteDocument(ctx context.Context, filePath string) error

	// ListDocuments returns all indexed document paths.
	ListDocuments(ctx context.Context) ([]string, error)

	// Load reads the store from persistent storage.
	Load(ctx context.Context) error

	// Persist writes the store to persistent storage.
	Persist(ctx context.Context) error

	// Close cleanly shuts down the store.
	Close() error

	// GetStats returns index statistics.
	GetStats(ctx context.Context) (*IndexStats, error)
}

// EmbeddingCache is an optional interface a VectorStore can implement to
// enable content-addressed embedding reuse. When present, the indexer looks
// up existing vectors by chunk content hash before calling the embedder, so
// identical content (moved files, restored snapshots) is never re-embedded.
type EmbeddingCache interface {
	// LookupByContentHash returns (vector, true, nil) when a chunk with the
	// given content hash already has an embedding.
	LookupByContentHash(ctx context.Context, contentHash string) ([]float32, bool, error)
}
