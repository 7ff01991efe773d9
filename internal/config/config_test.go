package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()
	if len(cfg.DefaultStates) != 1 || cfg.DefaultStates[0] != "open" {
		t.Errorf("DefaultStates = %v, want [open]", cfg.DefaultStates)
	}
	if cfg.Output.DefaultFormat != "text" {
		t.Errorf("Output.DefaultFormat = %q, want text", cfg.Output.DefaultFormat)
	}
	if cfg.Sync.StaleThreshold != "5m" {
		t.Errorf("Sync.StaleThreshold = %q, want 5m", cfg.Sync.StaleThreshold)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)
		if len(cfg.DefaultStates) != 1 || cfg.DefaultStates[0] != "open" {
			t.Errorf("DefaultStates = %v, want [open]", cfg.DefaultStates)
		}
		if cfg.Output.DefaultFormat != "text" {
			t.Errorf("Output.DefaultFormat = %q, want text", cfg.Output.DefaultFormat)
		}
	})

	t.Run("preserves non-zero values", func(t *testing.T) {
		cfg := &Config{
			DefaultStates: []string{"closed"},
			Output:        OutputConfig{DefaultFormat: "jsonl"},
		}
		applyDefaults(cfg)
		if cfg.DefaultStates[0] != "closed" {
			t.Errorf("DefaultStates = %v, want [closed]", cfg.DefaultStates)
		}
		if cfg.Output.DefaultFormat != "jsonl" {
			t.Errorf("Output.DefaultFormat = %q, want jsonl", cfg.Output.DefaultFormat)
		}
	})
}

func TestStaleThresholdDuration(t *testing.T) {
	cfg := &Config{Sync: SyncConfig{StaleThreshold: "90s"}}
	got, err := cfg.StaleThresholdDuration()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := 90 * time.Second; got != want {
		t.Errorf("StaleThresholdDuration() = %v, want %v", got, want)
	}
}

func TestBotPatterns(t *testing.T) {
	t.Run("uses configured patterns", func(t *testing.T) {
		cfg := &Config{Filters: FiltersConfig{BotPatterns: []string{"^x"}}}
		got := cfg.BotPatterns()
		if len(got) != 1 || got[0] != "^x" {
			t.Errorf("BotPatterns() = %v, want [^x]", got)
		}
	})

	t.Run("falls back to defaults", func(t *testing.T) {
		cfg := &Config{}
		got := cfg.BotPatterns()
		if len(got) != len(DefaultBotPatterns) {
			t.Errorf("BotPatterns() = %v, want %v", got, DefaultBotPatterns)
		}
	})
}

func TestResolveToken(t *testing.T) {
	t.Run("config token wins", func(t *testing.T) {
		cfg := &Config{GitHubToken: "cfg-token"}
		t.Setenv("GH_TOKEN", "env-token")
		got, err := cfg.ResolveToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "cfg-token" {
			t.Errorf("ResolveToken() = %q, want cfg-token", got)
		}
	})

	t.Run("GH_TOKEN beats GITHUB_TOKEN", func(t *testing.T) {
		cfg := &Config{}
		t.Setenv("GH_TOKEN", "gh-token")
		t.Setenv("GITHUB_TOKEN", "github-token")
		got, err := cfg.ResolveToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "gh-token" {
			t.Errorf("ResolveToken() = %q, want gh-token", got)
		}
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{
		GitHubToken:   "tok",
		Repos:         []string{"alice/widget-factory"},
		DefaultStates: []string{"open", "closed"},
		Sync:          SyncConfig{AutoSync: true, StaleThreshold: "10m"},
		Filters:       FiltersConfig{ExcludeBots: true, BotPatterns: []string{"-bot$"}},
		Output:        OutputConfig{DefaultFormat: "jsonl"},
		User:          UserConfig{GitHubUsername: "alice"},
		Feedback:      FeedbackConfig{CommitImpliesRead: true},
	}

	if err := saveTo(configPath, cfg); err != nil {
		t.Fatalf("saveTo failed: %v", err)
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if loaded.GitHubToken != cfg.GitHubToken {
		t.Errorf("GitHubToken = %q, want %q", loaded.GitHubToken, cfg.GitHubToken)
	}
	if len(loaded.Repos) != 1 || loaded.Repos[0] != "alice/widget-factory" {
		t.Errorf("Repos = %v, want [alice/widget-factory]", loaded.Repos)
	}
	if loaded.Sync.StaleThreshold != "10m" {
		t.Errorf("Sync.StaleThreshold = %q, want 10m", loaded.Sync.StaleThreshold)
	}
	if !loaded.Filters.ExcludeBots {
		t.Error("Filters.ExcludeBots = false, want true")
	}
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.DefaultFormat != "text" {
		t.Errorf("Output.DefaultFormat = %q, want text", cfg.Output.DefaultFormat)
	}
}
