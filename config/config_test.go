package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SaveAndLoad(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Embedder.Provider = "openai"
	cfg.Embedder.Model = "text-embedding-3-small"
	cfg.Strategy.Type = StrategyManual

	if err := cfg.Save(root); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Embedder.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", loaded.Embedder.Provider)
	}
	if loaded.Strategy.Type != StrategyManual {
		t.Errorf("expected manual strategy, got %s", loaded.Strategy.Type)
	}
}

func TestConfig_ApplyDefaultsFillsMissingFields(t *testing.T) {
	root := t.TempDir()
	configDir := GetConfigDir(root)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Minimal config file from an older version.
	minimal := []byte("version: 1\nembedder:\n  provider: ollama\n  model: nomic-embed-text\n")
	if err := os.WriteFile(GetConfigPath(root), minimal, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Watch.DebounceMs != 1000 {
		t.Errorf("expected default debounce 1000, got %d", cfg.Watch.DebounceMs)
	}
	if cfg.Strategy.Type != StrategyIdle {
		t.Errorf("expected default idle strategy, got %s", cfg.Strategy.Type)
	}
	if cfg.Strategy.BatchSize != 10 {
		t.Errorf("expected default batch size 10, got %d", cfg.Strategy.BatchSize)
	}
	if len(cfg.Index.Extensions) == 0 {
		t.Error("expected default extensions applied")
	}
	if cfg.Embedder.Endpoint != "http://localhost:11434" {
		t.Errorf("expected ollama endpoint default, got %s", cfg.Embedder.Endpoint)
	}
}

func TestConfig_ValidateStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		wantErr  bool
	}{
		{StrategyManual, false},
		{StrategyIdle, false},
		{StrategyStartup, false},
		{"eager", true},
		{"", true},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Strategy.Type = tt.strategy
		err := cfg.ValidateStrategy()
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateStrategy(%q): got err=%v, wantErr=%v", tt.strategy, err, tt.wantErr)
		}
	}
}

func TestConfig_Paths(t *testing.T) {
	root := "/vault"
	if got := GetQueuePath(root); got != filepath.Join("/vault", ".vaultindex", "queue.json") {
		t.Errorf("unexpected queue path: %s", got)
	}
	if got := GetIndexPath(root); got != filepath.Join("/vault", ".vaultindex", "index.gob") {
		t.Errorf("unexpected index path: %s", got)
	}
}

func TestConfig_Exists(t *testing.T) {
	root := t.TempDir()
	if Exists(root) {
		t.Error("expected Exists false before save")
	}
	if err := DefaultConfig().Save(root); err != nil {
		t.Fatal(err)
	}
	if !Exists(root) {
		t.Error("expected Exists true after save")
	}
}
