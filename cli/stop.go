package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/daemon"
)

const stopTimeout = 15 * time.Second

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background watch daemon",
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}
	stateDir := config.GetConfigDir(vaultRoot)

	pid, err := daemon.GetRunningPID(stateDir)
	if err != nil {
		return fmt.Errorf("failed to check for running daemon: %w", err)
	}
	if pid == 0 {
		fmt.Println("No watch daemon is running for this vault")
		return nil
	}

	if err := daemon.StopProcess(stateDir, pid); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.After(stopTimeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("daemon (PID %d) did not exit within %s", pid, stopTimeout)
		case <-ticker.C:
			if !daemon.IsProcessRunning(pid) {
				_ = daemon.RemovePIDFile(stateDir)
				_ = daemon.RemoveReadyFile(stateDir)
				fmt.Printf("Stopped watch daemon (PID %d)\n", pid)
				return nil
			}
		}
	}
}
