package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/config"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy [manual|idle|startup]",
	Short: "Show or change the scheduling strategy",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStrategy,
}

func init() {
	rootCmd.AddCommand(strategyCmd)
}

func runStrategy(cmd *cobra.Command, args []string) error {
	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(args) == 0 {
		fmt.Println(cfg.Strategy.Type)
		return nil
	}

	cfg.Strategy.Type = args[0]
	if err := cfg.ValidateStrategy(); err != nil {
		return err
	}

	if err := cfg.Save(vaultRoot); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Strategy set to %s (restart the watch daemon to apply)\n", cfg.Strategy.Type)
	return nil
}
