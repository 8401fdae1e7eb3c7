package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// ChunkInfo is one slice of a document produced by the chunker, before
// embedding.
type ChunkInfo struct {
	ID          string
	FilePath    string
	StartLine   int
	EndLine     int
	Content     string
	ContentHash string
}

// Chunker splits documents into overlapping line windows.
type Chunker struct {
	size    int // lines per chunk
	overlap int // overlapping lines between consecutive chunks
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 64
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits content into line windows. Blank-only chunks are dropped.
func (c *Chunker) Chunk(filePath, content string) []ChunkInfo {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	step := c.size - c.overlap

	var chunks []ChunkInfo
	for start := 0; start < len(lines); start += step {
		end := start + c.size
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, ChunkInfo{
				ID:          uuid.New().String(),
				FilePath:    filePath,
				StartLine:   start + 1,
				EndLine:     end,
				Content:     text,
				ContentHash: HashContent(text),
			})
		}

		if end == len(lines) {
			break
		}
	}

	return chunks
}

// HashContent returns the hex SHA256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
