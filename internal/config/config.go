// Package config provides configuration management for refsync.
// It supports YAML configuration files, environment variables, and sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/refsync/refsync/internal/util"
)

// Config represents the complete refsync configuration.
type Config struct {
	// Replicas configures the local and remote library roots
	Replicas ReplicasConfig `yaml:"replicas"`

	// Sync configures default synchronization behavior
	Sync SyncConfig `yaml:"sync"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output"`

	// Logging configures log verbosity and format
	Logging LoggingConfig `yaml:"logging"`
}

// ReplicasConfig holds the replica roots.
type ReplicasConfig struct {
	// Local is the local library root. Paths may use ~ for the home directory.
	Local string `yaml:"local"`
	// Remote is the remote library root: any mounted path, including
	// network volumes.
	Remote string `yaml:"remote"`
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	// Auto resolves every conflict by keeping both versions, without prompting
	Auto bool `yaml:"auto"`
	// Tui opens the interactive conflict browser instead of the line prompt
	Tui bool `yaml:"tui"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color"`
	// Progress controls the progress bar (auto, always, never)
	Progress string `yaml:"progress"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum level to emit (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format selects the handler (text, json)
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Replicas: ReplicasConfig{
			Local: "~/references",
		},
		Sync: SyncConfig{
			Auto: false,
			Tui:  false,
		},
		Output: OutputConfig{
			Color:    "auto",
			Progress: "auto",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.RefsyncConfigPath(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults with environment overrides
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	// Parse YAML over defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern REFSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("REFSYNC_LOCAL"); v != "" {
		c.Replicas.Local = v
	}
	if v := os.Getenv("REFSYNC_REMOTE"); v != "" {
		c.Replicas.Remote = v
	}
	if v := os.Getenv("REFSYNC_AUTO"); v != "" {
		c.Sync.Auto = parseBool(v)
	}
	if v := os.Getenv("REFSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("REFSYNC_OUTPUT_PROGRESS"); v != "" {
		c.Output.Progress = v
	}
	if v := os.Getenv("REFSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REFSYNC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the configuration for values refsync cannot work with.
func (c *Config) Validate() error {
	if c.Replicas.Local == "" {
		return errors.New("replicas.local is required")
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("output.color %q is not one of auto, always, never", c.Output.Color)
	}
	switch c.Output.Progress {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("output.progress %q is not one of auto, always, never", c.Output.Progress)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	return nil
}

// LocalRoot returns the expanded local replica root.
func (c *Config) LocalRoot() string {
	return util.ExpandPath(c.Replicas.Local)
}

// RemoteRoot returns the expanded remote replica root.
func (c *Config) RemoteRoot() string {
	return util.ExpandPath(c.Replicas.Remote)
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
