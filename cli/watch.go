package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vaultindex/config"
	"vaultindex/coordinator"
	"vaultindex/daemon"
	"vaultindex/indexer"
	"vaultindex/monitor"
	"vaultindex/queue"
	"vaultindex/scheduler"
	"vaultindex/watcher"
)

const (
	persistInterval = 30 * time.Second
	spawnTimeout    = 30 * time.Second
)

var (
	watchStrategy   string
	watchBackground bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and keep embeddings up to date",
	Long: `Start the indexing daemon. File changes are coalesced into a durable
event queue and embedded according to the configured strategy:

  idle     embed once the vault has been quiet for a while
  startup  embed the queued backlog at start, then only queue new work
  manual   queue changes but never embed automatically`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchStrategy, "strategy", "s", "", "Override the configured scheduling strategy for this run")
	watchCmd.Flags().BoolVarP(&watchBackground, "background", "b", false, "Run the daemon in the background")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if watchStrategy != "" {
		cfg.Strategy.Type = watchStrategy
	}
	if err := cfg.ValidateStrategy(); err != nil {
		return err
	}

	stateDir := config.GetConfigDir(vaultRoot)

	if pid, err := daemon.GetRunningPID(stateDir); err != nil {
		return fmt.Errorf("failed to check for running daemon: %w", err)
	} else if pid != 0 {
		return fmt.Errorf("a watch daemon is already running for this vault (PID %d)", pid)
	}

	if watchBackground && !daemon.IsBackground() {
		return spawnWatchDaemon(stateDir)
	}

	if err := daemon.WritePIDFile(stateDir); err != nil {
		return err
	}
	defer daemon.RemovePIDFile(stateDir)
	defer daemon.RemoveReadyFile(stateDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	matcher := indexer.NewIgnoreMatcher(vaultRoot, cfg.Index.Extensions, cfg.Index.Ignore)

	mon := monitor.NewMonitor(vaultRoot, matcher, idx,
		time.Duration(cfg.Watch.ThrottleSec)*time.Second*10,
		time.Duration(cfg.Watch.ThrottleSec)*time.Second,
		time.Duration(cfg.Watch.StartupSuppressMs)*time.Millisecond)

	sched, err := scheduler.NewScheduler(cfg.Strategy)
	if err != nil {
		return err
	}

	q := queue.NewEventQueue(config.GetQueuePath(vaultRoot))
	if err := q.Restore(); err != nil {
		return fmt.Errorf("failed to restore queue snapshot: %w", err)
	}
	if q.Size() > 0 {
		log.Printf("Restored %d queued events from previous run", q.Size())
	}

	coord := coordinator.New(vaultRoot, cfg, q, mon, sched, idx)

	log.Printf("Waiting for embedding provider (%s)...", cfg.Embedder.Provider)
	if err := coord.WaitReady(ctx); err != nil {
		return err
	}

	coord.Start(ctx)
	defer coord.Stop()

	if cfg.Strategy.Type == config.StrategyStartup {
		if err := coord.ProcessStartupQueue(ctx, cfg.Strategy.StartupBatchSize); err != nil {
			log.Printf("Warning: startup pass interrupted: %v", err)
		}
	}

	w, err := watcher.NewWatcher(vaultRoot, matcher, coord, time.Duration(cfg.Watch.SettleMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	mon.MarkCorpusReady()
	if err := daemon.WriteReadyFile(stateDir); err != nil {
		log.Printf("Warning: failed to write ready marker: %v", err)
	}
	log.Printf("Watching %s (strategy: %s)", vaultRoot, cfg.Strategy.Type)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(persistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := st.Persist(gctx); err != nil {
					log.Printf("Warning: failed to persist index: %v", err)
				}
			}
		}
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-daemon.StopChannel(stateDir):
			stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Println("Shutting down...")
	if err := st.Persist(context.Background()); err != nil {
		log.Printf("Warning: failed to persist index on shutdown: %v", err)
	}
	return nil
}

// spawnWatchDaemon re-executes this binary as a detached child and waits
// until it either reports ready or dies during startup.
func spawnWatchDaemon(stateDir string) error {
	childArgs := []string{"watch"}
	if watchStrategy != "" {
		childArgs = append(childArgs, "--strategy", watchStrategy)
	}

	pid, exitCh, err := daemon.SpawnBackground(stateDir, childArgs)
	if err != nil {
		return fmt.Errorf("failed to spawn background daemon: %w", err)
	}

	deadline := time.After(spawnTimeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-exitCh:
			return fmt.Errorf("daemon exited during startup, see %s", daemon.LogPath(stateDir))
		case <-deadline:
			fmt.Printf("Daemon started (PID %d), still initializing. Logs: %s\n", pid, daemon.LogPath(stateDir))
			return nil
		case <-ticker.C:
			if daemon.IsReady(stateDir) {
				fmt.Printf("Daemon running (PID %d). Logs: %s\n", pid, daemon.LogPath(stateDir))
				return nil
			}
		}
	}
}
