package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps chunks and documents in PostgreSQL with pgvector.
// Unlike GOBStore all writes go straight to the database, so Load and
// Persist are no-ops.
type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPostgresStore(ctx context.Context, dsn string, dimensions int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			start_line INT NOT NULL,
			end_line INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			content_hash TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS chunks_file_path_idx ON chunks (file_path)`,
		`CREATE INDEX IF NOT EXISTS chunks_content_hash_idx ON chunks (content_hash)`,
		`CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			mod_time TIMESTAMPTZ NOT NULL,
			chunk_ids TEXT[] NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	for _, chunk := range chunks {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO chunks (id, file_path, start_line, end_line, content, embedding, content_hash, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				file_path = EXCLUDED.file_path,
				start_line = EXCLUDED.start_line,
				end_line = EXCLUDED.end_line,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				content_hash = EXCLUDED.content_hash,
				updated_at = EXCLUDED.updated_at`,
			chunk.ID, chunk.FilePath, chunk.StartLine, chunk.EndLine,
			chunk.Content, pgvector.NewVector(chunk.Vector), chunk.ContentHash, chunk.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}

	return nil
}

func (s *PostgresStore) DeleteByFile(ctx context.Context, filePath string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE file_path = $1`, filePath); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", filePath, err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, filePath string) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT path, hash, mod_time, chunk_ids, indexed_at
		FROM documents WHERE path = $1`, filePath).
		Scan(&doc.Path, &doc.Hash, &doc.ModTime, &doc.ChunkIDs, &doc.IndexedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", filePath, err)
	}

	return &doc, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (path, hash, mod_time, chunk_ids, indexed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET
			hash = EXCLUDED.hash,
			mod_time = EXCLUDED.mod_time,
			chunk_ids = EXCLUDED.chunk_ids,
			indexed_at = EXCLUDED.indexed_at`,
		doc.Path, doc.Hash, doc.ModTime, doc.ChunkIDs, doc.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.Path, err)
	}

	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, filePath string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, filePath); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", filePath, err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan document path: %w", err)
		}
		paths = append(paths, path)
	}

	return paths, rows.Err()
}

// LookupByContentHash implements EmbeddingCache.
func (s *PostgresStore) LookupByContentHash(ctx context.Context, contentHash string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, `
		SELECT embedding FROM chunks WHERE content_hash = $1 LIMIT 1`, contentHash).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up content hash: %w", err)
	}

	return vec.Slice(), true, nil
}

func (s *PostgresStore) Load(ctx context.Context) error {
	return nil
}

func (s *PostgresStore) Persist(ctx context.Context) error {
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.TotalFiles); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	var lastUpdated *time.Time
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), MAX(updated_at) FROM chunks`).
		Scan(&stats.TotalChunks, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if lastUpdated != nil {
		stats.LastUpdated = *lastUpdated
	}

	return stats, nil
}
