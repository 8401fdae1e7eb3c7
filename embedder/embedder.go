package embedder

import "context"

// Embedder turns text into vectors.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Ping checks whether the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}
