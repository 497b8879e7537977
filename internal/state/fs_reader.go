package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parley-irc/parley/internal/log"
)

const (
	// RegistryFile lists installed plugins inside the plugins directory.
	RegistryFile = "installed_plugins.json"
	// SettingsFile holds per-plugin enabled flags inside the plugins directory.
	SettingsFile = "settings.json"

	registryVersion = 1
)

// ErrUnknownPlugin is returned when recording an install for a plugin the
// registry does not list.
var ErrUnknownPlugin = errors.New("plugin not in registry")

// fsInstalledPlugins represents the structure of installed_plugins.json.
type fsInstalledPlugins struct {
	Version int                          `json:"version"`
	Plugins map[string][]fsPluginInstall `json:"plugins"`
}

// fsPluginInstall is one install record. The first record is the current one.
type fsPluginInstall struct {
	FriendlyName string    `json:"friendlyName,omitempty"`
	InstallPath  string    `json:"installPath"`
	Version      string    `json:"version"`
	InstalledAt  time.Time `json:"installedAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// fsSettings represents the relevant parts of settings.json.
type fsSettings struct {
	EnabledPlugins map[string]bool `json:"enabledPlugins"`
}

// FilesystemReader reads and updates the plugin registry in PluginsDir.
type FilesystemReader struct {
	PluginsDir string

	// now is overridden in tests.
	now func() time.Time
	mu  sync.Mutex
}

// NewFilesystemReader returns a registry rooted at dir.
func NewFilesystemReader(dir string) *FilesystemReader {
	return &FilesystemReader{PluginsDir: dir}
}

// Read implements Reader using filesystem access. Missing or malformed
// files yield an empty registry.
func (r *FilesystemReader) Read() (*State, error) {
	if r.PluginsDir == "" {
		return nil, errors.New("plugins directory is not set")
	}

	state := &State{
		Plugins: make(map[string]PluginState),
	}
	logger := log.WithComponent("state")

	plugins, err := r.readRegistry()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read plugin registry")
	}
	for name, installs := range plugins.Plugins {
		if len(installs) == 0 {
			continue
		}
		install := installs[0]
		state.Plugins[name] = PluginState{
			Name:         name,
			FriendlyName: install.FriendlyName,
			Version:      install.Version,
			InstallPath:  install.InstallPath,
			Enabled:      true, // settings.json may disable it
			InstalledAt:  install.InstalledAt,
			LastUpdated:  install.LastUpdated,
		}
	}

	if err := r.readSettings(state); err != nil {
		logger.Warn().Err(err).Msg("Could not read plugin settings")
	}

	return state, nil
}

// RecordInstall implements Recorder. It stamps the current install record of
// name with version and rewrites the registry atomically.
func (r *FilesystemReader) RecordInstall(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins, err := r.readRegistry()
	if err != nil {
		return err
	}
	installs := plugins.Plugins[name]
	if len(installs) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	installs[0].Version = version
	installs[0].LastUpdated = r.clock()
	plugins.Plugins[name] = installs

	return r.writeRegistry(plugins)
}

// Register adds a plugin to the registry, replacing any existing record.
func (r *FilesystemReader) Register(p PluginState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins, err := r.readRegistry()
	if err != nil {
		return err
	}
	now := r.clock()
	plugins.Plugins[p.Name] = []fsPluginInstall{{
		FriendlyName: p.FriendlyName,
		InstallPath:  p.InstallPath,
		Version:      p.Version,
		InstalledAt:  now,
		LastUpdated:  now,
	}}
	return r.writeRegistry(plugins)
}

func (r *FilesystemReader) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

func (r *FilesystemReader) readRegistry() (fsInstalledPlugins, error) {
	plugins := fsInstalledPlugins{
		Version: registryVersion,
		Plugins: make(map[string][]fsPluginInstall),
	}

	data, err := os.ReadFile(filepath.Join(r.PluginsDir, RegistryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return plugins, nil // No registry yet is okay
		}
		return plugins, err
	}

	if err := json.Unmarshal(data, &plugins); err != nil {
		return fsInstalledPlugins{Version: registryVersion, Plugins: make(map[string][]fsPluginInstall)},
			fmt.Errorf("failed to parse %s: %w", RegistryFile, err)
	}
	if plugins.Plugins == nil {
		plugins.Plugins = make(map[string][]fsPluginInstall)
	}
	return plugins, nil
}

func (r *FilesystemReader) writeRegistry(plugins fsInstalledPlugins) error {
	if err := os.MkdirAll(r.PluginsDir, 0755); err != nil {
		return fmt.Errorf("failed to create plugins directory: %w", err)
	}

	data, err := json.MarshalIndent(plugins, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	path := filepath.Join(r.PluginsDir, RegistryFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

func (r *FilesystemReader) readSettings(state *State) error {
	data, err := os.ReadFile(filepath.Join(r.PluginsDir, SettingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No settings file is okay
		}
		return err
	}

	var settings fsSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}

	for name, enabled := range settings.EnabledPlugins {
		if plugin, ok := state.Plugins[name]; ok {
			plugin.Enabled = enabled
			state.Plugins[name] = plugin
		}
	}

	return nil
}
