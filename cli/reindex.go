package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/coordinator"
	"vaultindex/indexer"
	"vaultindex/monitor"
	"vaultindex/queue"
	"vaultindex/scheduler"
)

var (
	reindexAll bool
	reindexNow bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [path...]",
	Short: "Queue documents for re-embedding",
	Long: `Queue the given vault-relative paths for re-embedding, or the whole
vault with --all. By default events are only queued; the watch daemon picks
them up on its next drain. With --now the queue is processed immediately.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexAll, "all", false, "Queue every eligible document in the vault")
	reindexCmd.Flags().BoolVar(&reindexNow, "now", false, "Process the queue immediately instead of waiting for the daemon")

	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if !reindexAll && len(args) == 0 {
		return fmt.Errorf("specify paths to reindex or use --all")
	}

	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	matcher := indexer.NewIgnoreMatcher(vaultRoot, cfg.Index.Extensions, cfg.Index.Ignore)

	q := queue.NewEventQueue(config.GetQueuePath(vaultRoot))
	if err := q.Restore(); err != nil {
		return fmt.Errorf("failed to restore queue snapshot: %w", err)
	}

	paths := args
	if reindexAll {
		paths, err = collectEligiblePaths(vaultRoot, matcher)
		if err != nil {
			return err
		}
	}

	queued := 0
	now := time.Now().UnixMilli()
	for _, path := range paths {
		path = filepath.ToSlash(path)
		if !matcher.IsEligible(path) {
			log.Printf("Warning: skipping ineligible path: %s", path)
			continue
		}
		q.Add(queue.FileEvent{
			Path:      path,
			Op:        queue.OpModify,
			Timestamp: now,
			Priority:  queue.PriorityHigh,
			Source:    queue.SourceManual,
		})
		queued++
	}

	if err := q.Persist(); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	fmt.Printf("Queued %d documents (%d events pending)\n", queued, q.Size())

	if !reindexNow {
		return nil
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, vaultRoot, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := openEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	idx := indexer.NewIndexer(vaultRoot, st, emb, indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap))
	mon := monitor.NewMonitor(vaultRoot, matcher, idx,
		time.Duration(cfg.Watch.ThrottleSec)*time.Second*10,
		time.Duration(cfg.Watch.ThrottleSec)*time.Second,
		0)

	sched, err := scheduler.NewScheduler(cfg.Strategy)
	if err != nil {
		return err
	}

	coord := coordinator.New(vaultRoot, cfg, q, mon, sched, idx)
	if err := coord.WaitReady(ctx); err != nil {
		return err
	}

	if err := coord.ProcessStartupQueue(ctx, cfg.Strategy.StartupBatchSize); err != nil {
		return err
	}

	if err := st.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	fmt.Printf("Done, %d events still queued\n", q.Size())
	return nil
}

// collectEligiblePaths walks the vault and returns every indexable path.
func collectEligiblePaths(vaultRoot string, matcher *indexer.IgnoreMatcher) ([]string, error) {
	var paths []string
	err := filepath.Walk(vaultRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		relPath, err := filepath.Rel(vaultRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if matcher.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.IsEligible(relPath) {
			paths = append(paths, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vault: %w", err)
	}
	return paths, nil
}
