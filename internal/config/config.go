// Package config handles parley config parsing and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/parley-irc/parley/internal/types"
)

// CurrentVersion is the only config schema version understood.
const CurrentVersion = 1

// DefaultInterval is how often `parley watch` runs a check cycle.
const DefaultInterval = 6 * time.Hour

// ErrNotFound is returned by Find when no config exists in any standard location.
var ErrNotFound = errors.New("no parley config found in standard locations")

// Config represents the parsed configuration file.
type Config struct {
	Version int           `yaml:"version" toml:"version" json:"version"`
	Updater UpdaterConfig `yaml:"updater" toml:"updater" json:"updater"`
	Paths   PathsConfig   `yaml:"paths" toml:"paths" json:"paths"`
	Log     LogConfig     `yaml:"log" toml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics" json:"metrics"`
}

// UpdaterConfig controls which updates are looked for and where.
type UpdaterConfig struct {
	Channel  types.Channel `yaml:"channel" toml:"channel" json:"channel"`
	Interval string        `yaml:"interval" toml:"interval" json:"interval"` // Go duration, e.g. "6h"
	// Components maps a component name to whether it may be checked.
	// Components not listed are checked.
	Components   map[string]bool `yaml:"components,omitempty" toml:"components,omitempty" json:"components,omitempty"`
	NightlyURL   string          `yaml:"nightly_url,omitempty" toml:"nightly_url,omitempty" json:"nightly_url,omitempty"`
	ServiceURL   string          `yaml:"service_url,omitempty" toml:"service_url,omitempty" json:"service_url,omitempty"`
	ReleaseOwner string          `yaml:"release_owner,omitempty" toml:"release_owner,omitempty" json:"release_owner,omitempty"`
	ReleaseRepo  string          `yaml:"release_repo,omitempty" toml:"release_repo,omitempty" json:"release_repo,omitempty"`
	GitHubToken  string          `yaml:"github_token,omitempty" toml:"github_token,omitempty" json:"github_token,omitempty"`
}

// IntervalDuration returns the parsed check interval, or DefaultInterval
// when unset or unparseable.
func (u UpdaterConfig) IntervalDuration() time.Duration {
	if u.Interval == "" {
		return DefaultInterval
	}
	d, err := time.ParseDuration(u.Interval)
	if err != nil || d <= 0 {
		return DefaultInterval
	}
	return d
}

// PathsConfig holds the directories the updater reads and writes.
type PathsConfig struct {
	PluginsDir  string `yaml:"plugins_dir" toml:"plugins_dir" json:"plugins_dir"`
	StateDir    string `yaml:"state_dir" toml:"state_dir" json:"state_dir"`
	DownloadDir string `yaml:"download_dir" toml:"download_dir" json:"download_dir"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	JSON  bool   `yaml:"json" toml:"json" json:"json"`
}

// MetricsConfig controls the Prometheus endpoint served by `parley watch`.
// An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty" toml:"listen,omitempty" json:"listen,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Updater: UpdaterConfig{
			Channel:      types.ChannelStable,
			Interval:     DefaultInterval.String(),
			ReleaseOwner: "parley-irc",
			ReleaseRepo:  "parley",
		},
		Paths: defaultPaths(),
		Log:   LogConfig{Level: "info"},
	}
}

func defaultPaths() PathsConfig {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			dataHome = ".parley"
		} else {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	stateDir := filepath.Join(dataHome, "parley")
	return PathsConfig{
		PluginsDir:  filepath.Join(stateDir, "plugins"),
		StateDir:    stateDir,
		DownloadDir: filepath.Join(stateDir, "downloads"),
	}
}

// fileNames are the config file variants looked for in each search directory.
var fileNames = []string{
	"config.yaml",
	"config.yml",
	"config.toml",
	"config.json",
	"config",
}

// Find searches for a config file in the standard locations.
// Returns the path to the first file found, or ErrNotFound if none exists.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	searchPaths := []string{
		filepath.Join(xdgConfig, "parley"),
		filepath.Join(home, ".parley"),
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

// Load reads and parses a config file from the given path. Values absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	return Parse(content, format)
}

// Parse decodes content on top of the defaults, expands ~ in paths and
// validates the result.
func Parse(content []byte, format Format) (*Config, error) {
	cfg := Default()
	if err := parse(content, format, cfg); err != nil {
		return nil, err
	}

	cfg.Paths.PluginsDir = expandHomePath(cfg.Paths.PluginsDir)
	cfg.Paths.StateDir = expandHomePath(cfg.Paths.StateDir)
	cfg.Paths.DownloadDir = expandHomePath(cfg.Paths.DownloadDir)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandHomePath expands a leading ~ to the user's home directory.
func expandHomePath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultPath is where `parley init` writes a new config.
func DefaultPath() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "parley", "config.yaml")
}

// Resolve finds and loads the config. When no explicit path is given and
// nothing is found, the defaults are returned with an empty path.
func Resolve(explicitPath string) (*Config, string, error) {
	path, err := Find(explicitPath)
	if errors.Is(err, ErrNotFound) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// loadDotEnv loads dir/.env into the environment if present. Variables
// already set are not overridden.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
