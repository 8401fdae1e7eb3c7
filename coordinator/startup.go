package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"vaultindex/queue"
)

// ProcessStartupQueue forces one pass over the queue restored from the last
// run, regardless of strategy. Work happens in sub-batches with the queue
// snapshot persisted after each one, so a crash mid-pass loses at most one
// sub-batch of progress. A failing sub-batch falls back to one-by-one
// processing so a single bad file cannot poison its whole batch.
func (c *Coordinator) ProcessStartupQueue(ctx context.Context, subBatchSize int) error {
	events := c.queue.List()
	if len(events) == 0 {
		return nil
	}

	log.Printf("Processing %d queued events from previous run", len(events))

	var deletes, upserts []string
	for _, ev := range events {
		switch {
		case !c.monitor.IsEligible(ev.Path):
			// Config may have changed since the snapshot was written.
			c.queue.Remove(ev.Path)
		case ev.IsDelete():
			deletes = append(deletes, ev.Path)
		default:
			if _, err := os.Stat(filepath.Join(c.vaultRoot, ev.Path)); os.IsNotExist(err) {
				// The file is gone; what remains is stale index data.
				deletes = append(deletes, ev.Path)
				c.queue.Add(queue.FileEvent{
					Path:     ev.Path,
					Op:       queue.OpDelete,
					Priority: queue.PriorityHigh,
					Source:   ev.Source,
				})
			} else {
				upserts = append(upserts, ev.Path)
			}
		}
	}

	for _, result := range c.indexer.RemovePaths(ctx, deletes) {
		if result.Err != nil {
			log.Printf("Warning: failed to remove %s from index: %v", result.Path, result.Err)
			continue
		}
		c.queue.Remove(result.Path)
	}
	if err := c.queue.Persist(); err != nil {
		log.Printf("Warning: failed to persist queue during startup pass: %v", err)
	}

	if subBatchSize <= 0 {
		subBatchSize = len(upserts)
	}

	for start := 0; start < len(upserts); start += subBatchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		end := start + subBatchSize
		if end > len(upserts) {
			end = len(upserts)
		}
		batch := upserts[start:end]

		if err := c.embedBatch(ctx, batch); err != nil {
			// Retry the batch one file at a time.
			for _, path := range batch {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.embedBatch(ctx, []string{path})
			}
		}

		if err := c.queue.Persist(); err != nil {
			log.Printf("Warning: failed to persist queue during startup pass: %v", err)
		}
	}

	log.Printf("Startup pass complete, %d events still queued", c.queue.Size())
	return nil
}

// embedBatch embeds paths and removes successes from the queue. Returns an
// error when any path failed.
func (c *Coordinator) embedBatch(ctx context.Context, paths []string) error {
	failed := 0
	for _, result := range c.indexer.EmbedPaths(ctx, paths) {
		if result.Err != nil {
			log.Printf("Warning: failed to embed %s: %v", result.Path, result.Err)
			failed++
			continue
		}
		c.queue.Remove(result.Path)
		if !result.Skipped {
			c.monitor.MarkEmbedded(result.Path)
			log.Printf("Embedded %s (%d chunks)", result.Path, result.Chunks)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to embed", failed, len(paths))
	}
	return nil
}
