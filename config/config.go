package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigDir       = ".vaultindex"
	ConfigFileName  = "config.yaml"
	IndexFileName   = "index.gob"
	QueueFileName   = "queue.json"
	StrategyManual  = "manual"
	StrategyIdle    = "idle"
	StrategyStartup = "startup"
)

type Config struct {
	Version  int            `yaml:"version"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Watch    WatchConfig    `yaml:"watch"`
	Strategy StrategyConfig `yaml:"strategy"`
	Index    IndexConfig    `yaml:"index"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // ollama | openai | mock
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions *int   `yaml:"dimensions,omitempty"`
}

// GetDimensions returns the configured dimensions or a provider default.
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	default:
		return 768
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // gob | postgres
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`    // lines per chunk
	Overlap int `yaml:"overlap"` // overlapping lines between chunks
}

type WatchConfig struct {
	DebounceMs        int `yaml:"debounce_ms"`         // drain debounce window
	SettleMs          int `yaml:"settle_ms"`           // per-path quiet window before a raw event is delivered
	StartupSuppressMs int `yaml:"startup_suppress_ms"` // corpus readiness delay; creates in it are initial-scan echoes
	ThrottleSec       int `yaml:"throttle_sec"`        // re-embed cool-down per path
	InitRetries       int `yaml:"init_retries"`        // attempts waiting for the embedder
	InitRetryDelayMs  int `yaml:"init_retry_delay_ms"`
}

type StrategyConfig struct {
	Type              string `yaml:"type"` // manual | idle | startup
	IdleThresholdMs   int    `yaml:"idle_threshold_ms"`
	BatchSize         int    `yaml:"batch_size"`
	ProcessingDelayMs int    `yaml:"processing_delay_ms"`
	StartupBatchSize  int    `yaml:"startup_batch_size"` // sub-batch size for the startup pass
}

type IndexConfig struct {
	Extensions []string `yaml:"extensions"`
	Ignore     []string `yaml:"ignore"`
}

func DefaultConfig() *Config {
	defaultDim := 768
	return &Config{
		Version: 1,
		Embedder: EmbedderConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Endpoint:   "http://localhost:11434",
			Dimensions: &defaultDim,
		},
		Store: StoreConfig{
			Backend: "gob",
		},
		Chunking: ChunkingConfig{
			Size:    64,
			Overlap: 8,
		},
		Watch: WatchConfig{
			DebounceMs:        1000,
			SettleMs:          3000,
			StartupSuppressMs: 5000,
			ThrottleSec:       30,
			InitRetries:       5,
			InitRetryDelayMs:  2000,
		},
		Strategy: StrategyConfig{
			Type:              StrategyIdle,
			IdleThresholdMs:   30000,
			BatchSize:         10,
			ProcessingDelayMs: 2000,
			StartupBatchSize:  10,
		},
		Index: IndexConfig{
			Extensions: []string{".md", ".markdown", ".txt", ".org", ".rst"},
			Ignore: []string{
				".git",
				".vaultindex",
				".obsidian",
				".trash",
				"templates",
				"node_modules",
			},
		},
	}
}

func GetConfigDir(vaultRoot string) string {
	return filepath.Join(vaultRoot, ConfigDir)
}

func GetConfigPath(vaultRoot string) string {
	return filepath.Join(GetConfigDir(vaultRoot), ConfigFileName)
}

func GetIndexPath(vaultRoot string) string {
	return filepath.Join(GetConfigDir(vaultRoot), IndexFileName)
}

func GetQueuePath(vaultRoot string) string {
	return filepath.Join(GetConfigDir(vaultRoot), QueueFileName)
}

func Load(vaultRoot string) (*Config, error) {
	configPath := GetConfigPath(vaultRoot)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration values so older config files
// keep working when new fields are added.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Embedder.Endpoint == "" {
		switch c.Embedder.Provider {
		case "ollama":
			c.Embedder.Endpoint = "http://localhost:11434"
		case "openai":
			c.Embedder.Endpoint = "https://api.openai.com/v1"
		default:
			c.Embedder.Endpoint = defaults.Embedder.Endpoint
		}
	}
	if c.Embedder.Dimensions == nil && c.Embedder.Provider == "ollama" {
		dim := 768
		c.Embedder.Dimensions = &dim
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = defaults.Chunking.Size
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = defaults.Chunking.Overlap
	}

	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if c.Watch.SettleMs == 0 {
		c.Watch.SettleMs = defaults.Watch.SettleMs
	}
	if c.Watch.StartupSuppressMs == 0 {
		c.Watch.StartupSuppressMs = defaults.Watch.StartupSuppressMs
	}
	if c.Watch.ThrottleSec == 0 {
		c.Watch.ThrottleSec = defaults.Watch.ThrottleSec
	}
	if c.Watch.InitRetries == 0 {
		c.Watch.InitRetries = defaults.Watch.InitRetries
	}
	if c.Watch.InitRetryDelayMs == 0 {
		c.Watch.InitRetryDelayMs = defaults.Watch.InitRetryDelayMs
	}

	if c.Strategy.Type == "" {
		c.Strategy.Type = defaults.Strategy.Type
	}
	if c.Strategy.IdleThresholdMs == 0 {
		c.Strategy.IdleThresholdMs = defaults.Strategy.IdleThresholdMs
	}
	if c.Strategy.BatchSize == 0 {
		c.Strategy.BatchSize = defaults.Strategy.BatchSize
	}
	if c.Strategy.ProcessingDelayMs == 0 {
		c.Strategy.ProcessingDelayMs = defaults.Strategy.ProcessingDelayMs
	}
	if c.Strategy.StartupBatchSize == 0 {
		c.Strategy.StartupBatchSize = defaults.Strategy.StartupBatchSize
	}

	if len(c.Index.Extensions) == 0 {
		c.Index.Extensions = defaults.Index.Extensions
	}
	if len(c.Index.Ignore) == 0 {
		c.Index.Ignore = defaults.Index.Ignore
	}
}

// ValidateStrategy rejects unknown strategy types before they reach the
// scheduler.
func (c *Config) ValidateStrategy() error {
	switch c.Strategy.Type {
	case StrategyManual, StrategyIdle, StrategyStartup:
		return nil
	default:
		return fmt.Errorf("unknown strategy type: %s", c.Strategy.Type)
	}
}

func (c *Config) Save(vaultRoot string) error {
	configDir := GetConfigDir(vaultRoot)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := GetConfigPath(vaultRoot)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists(vaultRoot string) bool {
	_, err := os.Stat(GetConfigPath(vaultRoot))
	return err == nil
}

// FindVaultRoot walks up from the working directory until a .vaultindex
// directory is found.
func FindVaultRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	cwd, err = filepath.EvalSymlinks(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	dir := cwd
	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no vaultindex vault found (run 'vaultindex init' first)")
}

// EnsureGitignoreEntry adds entry to the vault's .gitignore if not present.
func EnsureGitignoreEntry(dir, entry string) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			if strings.TrimSpace(line) == entry || strings.TrimSpace(line) == strings.TrimSuffix(entry, "/") {
				return
			}
		}
	}
	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	if len(content) > 0 && content[len(content)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return
		}
	}
	_, _ = f.WriteString(entry + "\n")
}
