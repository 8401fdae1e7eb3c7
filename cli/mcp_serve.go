package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/mcp"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start the MCP server on stdio",
	Long: `Start a Model Context Protocol server exposing the vault index to AI
agents. Tools:

  vaultindex_status   index and queue statistics
  vaultindex_queue    pending file events in drain order
  vaultindex_reindex  queue a document for re-embedding`,
	RunE: runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	vaultRoot, err := config.FindVaultRoot()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(vaultRoot)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	return server.Serve()
}
