// Package config loads and saves Firewatch's on-disk TOML configuration
// (spec §6) and resolves the GitHub bearer token by precedence. It keeps
// the teacher's platform-directory and atomic-write conventions
// (internal/config in shhac/prtea), generalized from a flat JSON file to
// the spec's nested TOML sections.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// SyncConfig holds sync-tuning fields.
type SyncConfig struct {
	AutoSync       bool   `toml:"auto_sync"`
	StaleThreshold string `toml:"stale_threshold"`
}

// FiltersConfig holds the default query-filter fields.
type FiltersConfig struct {
	ExcludeBots    bool     `toml:"exclude_bots"`
	ExcludeAuthors []string `toml:"exclude_authors"`
	BotPatterns    []string `toml:"bot_patterns"`
}

// OutputConfig holds surface rendering defaults.
type OutputConfig struct {
	DefaultFormat string `toml:"default_format"`
}

// UserConfig identifies the operator for "mine"/"reviews" perspective
// filters.
type UserConfig struct {
	GitHubUsername string `toml:"github_username"`
}

// FeedbackConfig tunes Feedback Pipeline heuristics.
type FeedbackConfig struct {
	CommitImpliesRead bool `toml:"commit_implies_read"`
}

// Config is the full on-disk shape, one-to-one with spec §6.
type Config struct {
	GitHubToken     string   `toml:"github_token"`
	Repos           []string `toml:"repos"`
	DefaultStates   []string `toml:"default_states"`
	DefaultSince    string   `toml:"default_since"`
	GraphiteEnabled bool     `toml:"graphite_enabled"`

	Sync     SyncConfig     `toml:"sync"`
	Filters  FiltersConfig  `toml:"filters"`
	Output   OutputConfig   `toml:"output"`
	User     UserConfig     `toml:"user"`
	Feedback FeedbackConfig `toml:"feedback"`
}

// DefaultStaleThreshold is used when sync.stale_threshold is unset.
const DefaultStaleThreshold = 5 * time.Minute

// DefaultBotPatterns is applied when filters.bot_patterns is empty.
var DefaultBotPatterns = []string{`\[bot\]$`, `-bot$`, `^dependabot`, `^renovate`}

// DefaultConfigDir returns the platform-appropriate config directory,
// following the teacher's DefaultConfigDir exactly (renamed from prtea to
// firewatch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "firewatch")
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".config", "firewatch")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "firewatch")
		}
		return filepath.Join(home, ".config", "firewatch")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "firewatch")
		}
		return filepath.Join(home, ".config", "firewatch")
	}
}

// DefaultDataDir returns the directory holding the sqlite database file.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "firewatch")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "firewatch")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "firewatch")
		}
		return filepath.Join(home, ".local", "share", "firewatch")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "firewatch")
		}
		return filepath.Join(home, ".local", "share", "firewatch")
	}
}

// DBPath returns the default sqlite database path.
func DBPath() string {
	return filepath.Join(DefaultDataDir(), "firewatch.db")
}

// Load reads config.toml, returning defaults for missing fields. A missing
// file is not an error: Load returns the built-in defaults.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(DefaultConfigDir(), "config.toml"))
}

// LoadFrom reads a TOML config file at an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, &ferrors.ConfigError{Msg: "failed to read config", Err: err}
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, &ferrors.ConfigError{Msg: "failed to parse config", Err: err}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to disk atomically (temp file + rename), following the
// teacher's Save convention.
func Save(cfg *Config) error {
	dir := DefaultConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ferrors.ConfigError{Msg: "failed to create config directory", Err: err}
	}
	return saveTo(filepath.Join(dir, "config.toml"), cfg)
}

// saveTo writes cfg to an explicit path atomically (temp file + rename).
func saveTo(path string, cfg *Config) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return &ferrors.ConfigError{Msg: "failed to marshal config", Err: err}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(sb.String()), 0o600); err != nil {
		return &ferrors.ConfigError{Msg: "failed to write config", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &ferrors.ConfigError{Msg: "failed to rename config", Err: err}
	}
	return nil
}

// StaleThresholdDuration parses sync.stale_threshold (§6 duration format)
// or falls back to DefaultStaleThreshold.
func (c *Config) StaleThresholdDuration() (time.Duration, error) {
	if c.Sync.StaleThreshold == "" {
		return DefaultStaleThreshold, nil
	}
	return ParseDuration(c.Sync.StaleThreshold)
}

// BotPatterns returns the configured bot patterns, or DefaultBotPatterns if
// none are configured.
func (c *Config) BotPatterns() []string {
	if len(c.Filters.BotPatterns) > 0 {
		return c.Filters.BotPatterns
	}
	return DefaultBotPatterns
}

// ResolveToken implements the detection precedence from spec §6:
// config.github_token > GH_TOKEN env > GITHUB_TOKEN env > gh CLI token.
func (c *Config) ResolveToken() (string, error) {
	if c.GitHubToken != "" {
		return c.GitHubToken, nil
	}
	if t := os.Getenv("GH_TOKEN"); t != "" {
		return t, nil
	}
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t, nil
	}
	if t, err := ghCLIToken(); err == nil && t != "" {
		return t, nil
	}
	return "", &ferrors.AuthError{Msg: "no GitHub token found in config, GH_TOKEN, GITHUB_TOKEN, or gh CLI"}
}

// ghCLIToken shells out to `gh auth token`, the stored credential from a
// gh CLI login.
func ghCLIToken() (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", fmt.Errorf("gh CLI not found: %w", err)
	}
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func defaults() *Config {
	cfg := &Config{
		DefaultStates: []string{"open"},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.DefaultStates) == 0 {
		cfg.DefaultStates = []string{"open"}
	}
	if cfg.Output.DefaultFormat == "" {
		cfg.Output.DefaultFormat = "text"
	}
	if cfg.Sync.StaleThreshold == "" {
		cfg.Sync.StaleThreshold = "5m"
	}
}
