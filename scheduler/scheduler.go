// Package scheduler decides when queued embedding work runs. The manual
// strategy never runs work on its own, startup runs one forced pass over the
// restored queue, and idle waits for vault activity to quiet down.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"vaultindex/config"
)

const pollInterval = 1 * time.Second

// Scheduler tracks vault activity and fires a trigger when the idle
// strategy decides the vault has gone quiet.
type Scheduler struct {
	mu           sync.Mutex
	strategy     string
	idleThresh   time.Duration
	procDelay    time.Duration
	batchSize    int
	lastActivity time.Time
	fired        bool // one trigger per active-to-idle transition
	trigger      func()
	poll         time.Duration

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(cfg config.StrategyConfig) (*Scheduler, error) {
	s := &Scheduler{
		idleThresh:   time.Duration(cfg.IdleThresholdMs) * time.Millisecond,
		procDelay:    time.Duration(cfg.ProcessingDelayMs) * time.Millisecond,
		batchSize:    cfg.BatchSize,
		lastActivity: time.Now(),
		poll:         pollInterval,
	}
	if err := s.SetStrategy(cfg.Type); err != nil {
		return nil, err
	}
	return s, nil
}

// SetTrigger registers the callback fired on each idle transition. Must be
// called before Start.
func (s *Scheduler) SetTrigger(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = fn
}

// SetStrategy swaps the active strategy at runtime. The idle watch loop only
// runs while the idle strategy is active, so a swap tears it down or brings
// it up as needed.
func (s *Scheduler) SetStrategy(strategy string) error {
	switch strategy {
	case config.StrategyManual, config.StrategyIdle, config.StrategyStartup:
	default:
		return fmt.Errorf("unknown strategy type: %s", strategy)
	}

	s.mu.Lock()
	if s.strategy == strategy {
		s.mu.Unlock()
		return nil
	}
	s.strategy = strategy
	// A fresh strategy starts from an active vault.
	s.lastActivity = time.Now()
	s.fired = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	s.mu.Lock()
	if s.started && s.strategy == config.StrategyIdle && s.stopCh == nil {
		s.startLoopLocked()
	}
	s.mu.Unlock()
	return nil
}

// Strategy returns the active strategy type.
func (s *Scheduler) Strategy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// NoteActivity records vault activity. Any activity re-arms the idle
// trigger.
func (s *Scheduler) NoteActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	s.fired = false
}

// IdleFor returns how long the vault has been quiet.
func (s *Scheduler) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// ShouldProcess reports whether queued upserts may be embedded right now.
// Manual and startup strategies only ever process through a forced pass.
func (s *Scheduler) ShouldProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy == config.StrategyIdle && time.Since(s.lastActivity) >= s.idleThresh
}

// Start marks the scheduler running and launches the idle watch loop when
// the idle strategy is active.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if s.strategy == config.StrategyIdle {
		s.startLoopLocked()
	}
}

// Stop halts the idle watch loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.started = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
}

func (s *Scheduler) startLoopLocked() {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.watchIdle(s.stopCh, s.doneCh)
}

func (s *Scheduler) loopRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

func (s *Scheduler) watchIdle(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			pending, mark := s.idlePending()
			if !pending {
				continue
			}

			// Give in-flight edits a moment to settle before firing.
			select {
			case <-stopCh:
				return
			case <-time.After(s.procDelay):
			}

			s.mu.Lock()
			stillIdle := s.strategy == config.StrategyIdle &&
				!s.fired &&
				s.lastActivity.Equal(mark)
			trigger := s.trigger
			if stillIdle {
				s.fired = true
			}
			s.mu.Unlock()

			if stillIdle && trigger != nil {
				trigger()
			}
		}
	}
}

func (s *Scheduler) idlePending() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.strategy == config.StrategyIdle &&
		!s.fired &&
		time.Since(s.lastActivity) >= s.idleThresh
	return pending, s.lastActivity
}

// ForceProcess runs process over paths in batches regardless of strategy,
// pausing between batches. A failing batch is logged and skipped; it never
// blocks the remaining batches. Returns how many batches succeeded and how
// many failed.
func (s *Scheduler) ForceProcess(ctx context.Context, paths []string, process func(ctx context.Context, batch []string) error) (succeeded, failed int) {
	s.mu.Lock()
	size := s.batchSize
	delay := s.procDelay
	s.mu.Unlock()
	if size <= 0 {
		size = len(paths)
	}

	for start := 0; start < len(paths); start += size {
		if ctx.Err() != nil {
			return succeeded, failed
		}

		end := start + size
		if end > len(paths) {
			end = len(paths)
		}

		if err := process(ctx, paths[start:end]); err != nil {
			log.Printf("Warning: batch of %d files failed: %v", end-start, err)
			failed++
		} else {
			succeeded++
		}

		if end < len(paths) && delay > 0 {
			select {
			case <-ctx.Done():
				return succeeded, failed
			case <-time.After(delay):
			}
		}
	}

	return succeeded, failed
}
