// Package state reads and updates the on-disk registry of installed plugins.
package state

import "time"

// State is the set of installed plugins.
type State struct {
	Plugins map[string]PluginState
}

// PluginState describes one installed plugin.
type PluginState struct {
	Name         string
	FriendlyName string
	Version      string
	InstallPath  string
	Enabled      bool
	InstalledAt  time.Time
	LastUpdated  time.Time
}

// Reader defines the interface for reading current state.
type Reader interface {
	Read() (*State, error)
}

// Recorder persists the version a plugin was updated to.
type Recorder interface {
	RecordInstall(name, version string) error
}
