package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/daemon"
	"vaultindex/queue"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and queue status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format (text, json, or toon)")

	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	VaultRoot   string            `json:"vault_root"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	Backend     string            `json:"backend"`
	Strategy    string            `json:"strategy"`
	DaemonPID   int               `json:"daemon_pid"`
	TotalFiles  int               `json:"total_files"`
	TotalChunks int               `json:"total_chunks"`
	IndexSize   int64             `json:"index_size"`
	LastUpdated string            `json:"last_updated"`
	QueueSize   int               `json:"queue_size"`
	Queued      []queue.FileEvent `json:"queued,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, vaultRoot, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	q := queue.NewEventQueue(config.GetQueuePath(vaultRoot))
	if err := q.Restore(); err != nil {
		return fmt.Errorf("failed to read queue snapshot: %w", err)
	}

	daemonPID, err := daemon.GetRunningPID(config.GetConfigDir(vaultRoot))
	if err != nil {
		return fmt.Errorf("failed to check daemon state: %w", err)
	}

	lastUpdated := "never"
	if !stats.LastUpdated.IsZero() {
		lastUpdated = stats.LastUpdated.Format(time.RFC3339)
	}

	out := statusOutput{
		VaultRoot:   vaultRoot,
		Provider:    cfg.Embedder.Provider,
		Model:       cfg.Embedder.Model,
		Backend:     cfg.Store.Backend,
		Strategy:    cfg.Strategy.Type,
		DaemonPID:   daemonPID,
		TotalFiles:  stats.TotalFiles,
		TotalChunks: stats.TotalChunks,
		IndexSize:   stats.IndexSize,
		LastUpdated: lastUpdated,
		QueueSize:   q.Size(),
		Queued:      q.List(),
	}

	switch statusFormat {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "toon":
		encoded, err := gotoon.Encode(out)
		if err != nil {
			return err
		}
		fmt.Println(encoded)
	default:
		fmt.Printf("Vault:      %s\n", out.VaultRoot)
		fmt.Printf("Embedder:   %s (%s)\n", out.Provider, out.Model)
		fmt.Printf("Backend:    %s\n", out.Backend)
		fmt.Printf("Strategy:   %s\n", out.Strategy)
		if out.DaemonPID != 0 {
			fmt.Printf("Daemon:     running (PID %d)\n", out.DaemonPID)
		} else {
			fmt.Printf("Daemon:     not running\n")
		}
		fmt.Printf("Documents:  %d\n", out.TotalFiles)
		fmt.Printf("Chunks:     %d\n", out.TotalChunks)
		fmt.Printf("Updated:    %s\n", out.LastUpdated)
		fmt.Printf("Queued:     %d\n", out.QueueSize)
		for _, ev := range out.Queued {
			fmt.Printf("  %-7s %-8s %s\n", ev.Op, ev.Priority, ev.Path)
		}
	}

	return nil
}
