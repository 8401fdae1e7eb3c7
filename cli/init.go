package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vaultindex/config"
)

var (
	initProvider       string
	initModel          string
	initBackend        string
	initStrategy       string
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vaultindex in the current directory",
	Long: `Initialize vaultindex by creating a .vaultindex directory with
configuration.

This command will:
- Create .vaultindex/config.yaml with default settings
- Prompt for embedding provider (Ollama or OpenAI)
- Prompt for storage backend (GOB file or PostgreSQL)
- Add .vaultindex/ to .gitignore if present`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initProvider, "provider", "p", "", "Embedding provider (ollama or openai)")
	initCmd.Flags().StringVarP(&initModel, "model", "m", "", "Embedding model")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend (gob or postgres)")
	initCmd.Flags().StringVarP(&initStrategy, "strategy", "s", "", "Scheduling strategy (manual, idle, or startup)")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if config.Exists(cwd) {
		fmt.Println("vaultindex is already initialized in this directory.")
		fmt.Printf("Configuration: %s\n", config.GetConfigPath(cwd))
		return nil
	}

	cfg := config.DefaultConfig()

	if !initNonInteractive {
		reader := bufio.NewReader(os.Stdin)

		if initProvider == "" {
			fmt.Println("\nSelect embedding provider:")
			fmt.Println("  1) ollama (local, privacy-first, requires Ollama running)")
			fmt.Println("  2) openai (cloud, requires API key)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			switch input {
			case "2", "openai":
				cfg.Embedder.Provider = "openai"
				cfg.Embedder.Model = "text-embedding-3-small"
				cfg.Embedder.Endpoint = "https://api.openai.com/v1"
				cfg.Embedder.Dimensions = nil
			default:
				cfg.Embedder.Provider = "ollama"
				fmt.Print("Ollama endpoint [http://localhost:11434]: ")
				endpoint, _ := reader.ReadString('\n')
				endpoint = strings.TrimSpace(endpoint)
				if endpoint != "" {
					cfg.Embedder.Endpoint = endpoint
				}
			}
		} else {
			applyProviderFlag(cfg)
		}

		if initBackend == "" {
			fmt.Println("\nSelect storage backend:")
			fmt.Println("  1) gob (local file, recommended for most vaults)")
			fmt.Println("  2) postgres (pgvector, for large or shared indexes)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			if input == "2" || input == "postgres" {
				cfg.Store.Backend = "postgres"
				fmt.Print("PostgreSQL DSN: ")
				dsn, _ := reader.ReadString('\n')
				cfg.Store.Postgres.DSN = strings.TrimSpace(dsn)
			} else {
				cfg.Store.Backend = "gob"
			}
		} else {
			cfg.Store.Backend = initBackend
		}

		if initStrategy == "" {
			fmt.Println("\nSelect scheduling strategy:")
			fmt.Println("  1) idle (embed when the vault goes quiet, recommended)")
			fmt.Println("  2) startup (embed the backlog once at start, then queue only)")
			fmt.Println("  3) manual (never embed automatically)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			switch strings.TrimSpace(input) {
			case "2", "startup":
				cfg.Strategy.Type = config.StrategyStartup
			case "3", "manual":
				cfg.Strategy.Type = config.StrategyManual
			default:
				cfg.Strategy.Type = config.StrategyIdle
			}
		} else {
			cfg.Strategy.Type = initStrategy
		}
	} else {
		applyProviderFlag(cfg)
		if initBackend != "" {
			cfg.Store.Backend = initBackend
		}
		if initStrategy != "" {
			cfg.Strategy.Type = initStrategy
		}
	}

	if err := cfg.ValidateStrategy(); err != nil {
		return err
	}

	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("\nCreated configuration at %s\n", config.GetConfigPath(cwd))

	if _, err := os.Stat(cwd + "/.gitignore"); err == nil {
		config.EnsureGitignoreEntry(cwd, ".vaultindex/")
		fmt.Println("Added .vaultindex/ to .gitignore")
	}

	fmt.Println("\nvaultindex initialized successfully!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Start the indexing daemon: vaultindex watch")
	fmt.Println("  2. Check progress: vaultindex status")

	switch cfg.Embedder.Provider {
	case "ollama":
		fmt.Println("\nMake sure Ollama is running with the nomic-embed-text model:")
		fmt.Println("  ollama pull nomic-embed-text")
	case "openai":
		fmt.Println("\nMake sure OPENAI_API_KEY is set in your environment.")
	}

	return nil
}

func applyProviderFlag(cfg *config.Config) {
	if initProvider == "" {
		return
	}
	cfg.Embedder.Provider = initProvider
	switch initProvider {
	case "openai":
		cfg.Embedder.Model = "text-embedding-3-small"
		cfg.Embedder.Endpoint = "https://api.openai.com/v1"
		cfg.Embedder.Dimensions = nil
	}
	if initModel != "" {
		cfg.Embedder.Model = initModel
	}
}
