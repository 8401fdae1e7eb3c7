// Package coordinator wires the watcher, event queue, change monitor,
// scheduler, and indexer into one pipeline. File events flow in through the
// watcher.Handler interface; embedded documents come out the other end
// whenever the active strategy allows.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"vaultindex/config"
	"vaultindex/indexer"
	"vaultindex/monitor"
	"vaultindex/queue"
	"vaultindex/scheduler"
	"vaultindex/workspace"
)

// Coordinator owns the pipeline state. It is safe for concurrent use; the
// watcher, scheduler trigger, and CLI all call into it.
type Coordinator struct {
	vaultRoot string
	queue     *queue.EventQueue
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	indexer   *indexer.Indexer
	activity  *workspace.ActivityTracker
	sessions  *workspace.SessionTracker

	debounce       time.Duration
	initRetries    int
	initRetryDelay time.Duration

	mu           sync.Mutex
	lastDrain    time.Time
	drainTimer   *time.Timer
	isProcessing bool
	pendingDrain bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(vaultRoot string, cfg *config.Config, q *queue.EventQueue, mon *monitor.Monitor, sched *scheduler.Scheduler, idx *indexer.Indexer) *Coordinator {
	c := &Coordinator{
		vaultRoot:      vaultRoot,
		queue:          q,
		monitor:        mon,
		scheduler:      sched,
		indexer:        idx,
		activity:       workspace.NewActivityTracker(),
		sessions:       workspace.NewSessionTracker(time.Duration(cfg.Strategy.IdleThresholdMs) * time.Millisecond),
		debounce:       time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		initRetries:    cfg.Watch.InitRetries,
		initRetryDelay: time.Duration(cfg.Watch.InitRetryDelayMs) * time.Millisecond,
	}
	c.scheduler.SetTrigger(c.onIdle)
	return c
}

// Start launches the scheduler and binds the coordinator's lifetime to ctx.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.scheduler.Start()
}

// Stop halts background work and persists the queue.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.scheduler.Stop()

	c.mu.Lock()
	if c.drainTimer != nil {
		c.drainTimer.Stop()
		c.drainTimer = nil
	}
	c.mu.Unlock()

	if err := c.queue.Persist(); err != nil {
		log.Printf("Warning: failed to persist queue on stop: %v", err)
	}
}

// WaitReady blocks until the embedding provider answers, retrying a bounded
// number of times.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < c.initRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.initRetryDelay):
			}
		}
		if lastErr = c.indexer.Ready(ctx); lastErr == nil {
			return nil
		}
		log.Printf("Embedder not ready (attempt %d/%d): %v", attempt+1, c.initRetries, lastErr)
	}
	return fmt.Errorf("embedder unavailable after %d attempts: %w", c.initRetries, lastErr)
}

// OnCreate implements watcher.Handler.
func (c *Coordinator) OnCreate(path string) {
	c.handleUpsert(path, queue.OpCreate)
}

// OnModify implements watcher.Handler.
func (c *Coordinator) OnModify(path string) {
	c.handleUpsert(path, queue.OpModify)
}

// OnDelete implements watcher.Handler.
func (c *Coordinator) OnDelete(path string) {
	if !c.monitor.IsEligible(path) {
		return
	}
	if c.monitor.InSystemOperation() {
		return
	}

	c.monitor.Forget(path)
	c.noteActivity(path)
	c.enqueue(queue.FileEvent{
		Path:      path,
		Op:        queue.OpDelete,
		Timestamp: time.Now().UnixMilli(),
		Priority:  queue.PriorityHigh,
		Source:    queue.SourceWatcher,
	})
}

// OnRename records a rename as a high-priority delete of the old path
// followed by a create of the new one. The create's timestamp is nudged
// forward so the delete always drains first.
func (c *Coordinator) OnRename(oldPath, newPath string) {
	now := time.Now().UnixMilli()
	if c.monitor.IsEligible(oldPath) && !c.monitor.InSystemOperation() {
		c.monitor.Forget(oldPath)
		c.enqueue(queue.FileEvent{
			Path:      oldPath,
			Op:        queue.OpDelete,
			Timestamp: now,
			Priority:  queue.PriorityHigh,
			Source:    queue.SourceWatcher,
		})
	}
	if c.monitor.IsEligible(newPath) && !c.monitor.InSystemOperation() {
		c.noteActivity(newPath)
		c.enqueue(queue.FileEvent{
			Path:      newPath,
			Op:        queue.OpCreate,
			Timestamp: now + 1,
			Priority:  queue.PriorityNormal,
			Source:    queue.SourceWatcher,
		})
	}
}

func (c *Coordinator) handleUpsert(path string, op queue.Op) {
	if !c.monitor.IsEligible(path) {
		return
	}

	if !c.monitor.CorpusReady() {
		// Creates observed during the settle window are echoes of the
		// initial scan, not user edits.
		c.monitor.NoteSuppressed()
		return
	}

	if c.monitor.InSystemOperation() {
		return
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if !c.monitor.ContentChanged(ctx, path) {
		return
	}

	c.noteActivity(path)

	if c.monitor.ShouldThrottle(path) {
		// Recently embedded; queue it so the change is not lost, but let
		// the cool-down expire before draining picks it up.
		c.enqueue(queue.FileEvent{
			Path:      path,
			Op:        op,
			Timestamp: time.Now().UnixMilli(),
			Priority:  queue.PriorityLow,
			Source:    queue.SourceWatcher,
		})
		return
	}

	c.enqueue(queue.FileEvent{
		Path:      path,
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		Priority:  queue.PriorityNormal,
		Source:    queue.SourceWatcher,
	})
}

// QueueFileEvent enqueues an event on behalf of a CLI or MCP caller,
// bypassing change detection.
func (c *Coordinator) QueueFileEvent(path string, op queue.Op, priority queue.Priority) error {
	if !c.monitor.IsEligible(path) {
		return fmt.Errorf("path not eligible for indexing: %s", path)
	}

	c.enqueue(queue.FileEvent{
		Path:      path,
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		Priority:  priority,
		Source:    queue.SourceManual,
	})
	return nil
}

func (c *Coordinator) noteActivity(path string) {
	c.scheduler.NoteActivity()
	c.activity.Record(path)
	c.sessions.Touch()
}

func (c *Coordinator) enqueue(ev queue.FileEvent) {
	c.queue.Add(ev)
	if err := c.queue.Persist(); err != nil {
		log.Printf("Warning: failed to persist queue: %v", err)
	}
	c.scheduleDrain()
}

// onIdle is the scheduler's idle trigger.
func (c *Coordinator) onIdle() {
	go c.drain()
}

// scheduleDrain runs a drain on the leading edge of the debounce window.
// The first event drains immediately; events landing inside the window wait
// for one trailing drain.
func (c *Coordinator) scheduleDrain() {
	c.mu.Lock()
	if time.Since(c.lastDrain) >= c.debounce {
		c.lastDrain = time.Now()
		c.mu.Unlock()
		go c.drain()
		return
	}

	if c.drainTimer == nil {
		remaining := c.debounce - time.Since(c.lastDrain)
		c.drainTimer = time.AfterFunc(remaining, func() {
			c.mu.Lock()
			c.drainTimer = nil
			c.lastDrain = time.Now()
			c.mu.Unlock()
			c.drain()
		})
	}
	c.mu.Unlock()
}

// drain processes the queue once. Deletes are always applied; upserts are
// embedded only when the strategy allows. Re-entrant calls collapse into a
// single follow-up drain.
func (c *Coordinator) drain() {
	c.mu.Lock()
	if c.isProcessing {
		c.pendingDrain = true
		c.mu.Unlock()
		return
	}
	c.isProcessing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isProcessing = false
		again := c.pendingDrain
		c.pendingDrain = false
		c.mu.Unlock()
		if again {
			go c.drain()
		}
	}()

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	events := c.queue.List()
	if len(events) == 0 {
		return
	}

	var deletes, upserts []string
	var throttleWait time.Duration
	for _, ev := range events {
		if ev.IsDelete() {
			deletes = append(deletes, ev.Path)
			continue
		}
		// Recently embedded paths stay queued until their cool-down ends.
		if wait := c.monitor.ThrottleRemaining(ev.Path); wait > 0 {
			if wait > throttleWait {
				throttleWait = wait
			}
			continue
		}
		upserts = append(upserts, ev.Path)
	}

	// Deletes drop stale vectors regardless of strategy.
	for _, result := range c.indexer.RemovePaths(ctx, deletes) {
		if result.Err != nil {
			log.Printf("Warning: failed to remove %s from index: %v", result.Path, result.Err)
			continue
		}
		c.queue.Remove(result.Path)
	}

	if len(upserts) > 0 && c.scheduler.ShouldProcess() {
		c.scheduler.ForceProcess(ctx, upserts, c.embedBatch)
	}

	if err := c.queue.Persist(); err != nil {
		log.Printf("Warning: failed to persist queue after drain: %v", err)
	}

	if throttleWait > 0 && c.scheduler.ShouldProcess() {
		c.scheduleRedrain(throttleWait)
	}
}

// scheduleRedrain arms one trailing drain for work held back by a cool-down.
func (c *Coordinator) scheduleRedrain(wait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drainTimer != nil {
		return
	}
	c.drainTimer = time.AfterFunc(wait, func() {
		c.mu.Lock()
		c.drainTimer = nil
		c.lastDrain = time.Now()
		c.mu.Unlock()
		c.drain()
	})
}

// DrainNow forces a synchronous drain, used by tests and one-shot commands.
func (c *Coordinator) DrainNow() {
	c.drain()
}

// SetStrategy swaps the scheduling strategy at runtime.
func (c *Coordinator) SetStrategy(strategy string) error {
	return c.scheduler.SetStrategy(strategy)
}

// Strategy returns the active strategy type.
func (c *Coordinator) Strategy() string {
	return c.scheduler.Strategy()
}
