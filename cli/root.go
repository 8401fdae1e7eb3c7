// Package cli implements the vaultindex command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/embedder"
	"vaultindex/store"
)

var rootCmd = &cobra.Command{
	Use:   "vaultindex",
	Short: "Incremental embedding index for document vaults",
	Long: `vaultindex watches a directory of documents (a "vault"), detects real
content changes, and keeps a vector index of embeddings up to date.

Events flow through a durable queue, so work queued before a crash or
shutdown is picked up on the next start.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openStore builds the configured store backend and loads it.
func openStore(ctx context.Context, vaultRoot string, cfg *config.Config) (store.VectorStore, error) {
	var st store.VectorStore
	switch cfg.Store.Backend {
	case "", "gob":
		st = store.NewGOBStore(config.GetIndexPath(vaultRoot))
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN, cfg.Embedder.GetDimensions())
		if err != nil {
			return nil, err
		}
		st = pg
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	if err := st.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return st, nil
}

// openEmbedder builds the configured embedding provider.
func openEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	return embedder.NewFromConfig(cfg)
}
