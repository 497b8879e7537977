package update

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parley-irc/parley/internal/state"
	"github.com/parley-irc/parley/internal/types"
)

// ClientComponent is the running parley binary.
type ClientComponent struct {
	version  Version
	replacer Replacer
}

// NewClientComponent describes the client at version, installing through replacer.
func NewClientComponent(version string, replacer Replacer) *ClientComponent {
	return &ClientComponent{
		version:  NewVersion(NormalizeVersion(version)),
		replacer: replacer,
	}
}

// Name implements Component.
func (c *ClientComponent) Name() string { return "client" }

// FriendlyName implements Component.
func (c *ClientComponent) FriendlyName() string { return "Parley client" }

// Version implements Component.
func (c *ClientComponent) Version() Version { return c.version }

// Kind implements Component.
func (c *ClientComponent) Kind() types.ComponentKind { return types.ComponentClient }

// RequiresRestart implements Component.
func (c *ClientComponent) RequiresRestart() bool { return true }

// Install implements Component by replacing the executable.
func (c *ClientComponent) Install(path string) error {
	if c.replacer == nil {
		return fmt.Errorf("client install: no replacer configured")
	}
	return c.replacer.Replace(path)
}

// Backuper saves a plugin's current file before an install overwrites it.
type Backuper interface {
	Backup(p state.PluginState) error
}

// PluginComponent is a plugin listed in the on-disk registry.
type PluginComponent struct {
	plugin   state.PluginState
	version  Version
	recorder state.Recorder
	backups  Backuper
}

// PluginOption configures a PluginComponent.
type PluginOption func(*PluginComponent)

// WithBackups makes Install save the existing plugin file through b first.
func WithBackups(b Backuper) PluginOption {
	return func(c *PluginComponent) { c.backups = b }
}

// NewPluginComponent wraps a registry entry. recorder may be nil.
func NewPluginComponent(p state.PluginState, recorder state.Recorder, opts ...PluginOption) *PluginComponent {
	c := &PluginComponent{
		plugin:   p,
		version:  NewVersion(p.Version),
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PluginComponents returns a component for every enabled plugin in s, sorted by name.
func PluginComponents(s *state.State, recorder state.Recorder, opts ...PluginOption) []Component {
	if s == nil {
		return nil
	}
	var out []Component
	for _, name := range sortedKeys(s.Plugins) {
		p := s.Plugins[name]
		if !p.Enabled {
			continue
		}
		out = append(out, NewPluginComponent(p, recorder, opts...))
	}
	return out
}

// Name implements Component.
func (c *PluginComponent) Name() string { return c.plugin.Name }

// FriendlyName implements Component.
func (c *PluginComponent) FriendlyName() string {
	if c.plugin.FriendlyName != "" {
		return c.plugin.FriendlyName
	}
	return c.plugin.Name
}

// Version implements Component.
func (c *PluginComponent) Version() Version { return c.version }

// Kind implements Component.
func (c *PluginComponent) Kind() types.ComponentKind { return types.ComponentPlugin }

// RequiresRestart implements Component. Plugins are reloaded in place.
func (c *PluginComponent) RequiresRestart() bool { return false }

// Install implements Component by copying the payload over the plugin's
// install path.
func (c *PluginComponent) Install(path string) error {
	if c.plugin.InstallPath == "" {
		return fmt.Errorf("plugin %s has no install path", c.plugin.Name)
	}
	if c.backups != nil {
		if err := c.backups.Backup(c.plugin); err != nil {
			return fmt.Errorf("failed to back up plugin %s: %w", c.plugin.Name, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(c.plugin.InstallPath), 0755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	staged := c.plugin.InstallPath + ".new"
	if err := copyFile(path, staged, 0644); err != nil {
		return fmt.Errorf("failed to stage plugin %s: %w", c.plugin.Name, err)
	}
	if err := os.Rename(staged, c.plugin.InstallPath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to install plugin %s: %w", c.plugin.Name, err)
	}
	return nil
}

// RecordVersion implements VersionRecorder.
func (c *PluginComponent) RecordVersion(v Version) error {
	if c.recorder == nil {
		return nil
	}
	return c.recorder.RecordInstall(c.plugin.Name, v.String())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
