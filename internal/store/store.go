// Package store persists update check results and install history in an
// embedded bbolt database so that the CLI can report them between runs.
package store

import (
	"time"

	"github.com/parley-irc/parley/internal/types"
)

// CheckRecord is the consolidated verdict for one component.
type CheckRecord struct {
	Component       string              `json:"component"`
	Kind            types.ComponentKind `json:"kind"`
	CurrentVersion  string              `json:"current_version"`
	Available       bool                `json:"available"`
	Version         string              `json:"version,omitempty"`
	FriendlyVersion string              `json:"friendly_version,omitempty"`
	URL             string              `json:"url,omitempty"`
	Source          string              `json:"source,omitempty"`
	CheckedAt       time.Time           `json:"checked_at"`
}

// InstallRecord is one finished install attempt.
type InstallRecord struct {
	ID          string              `json:"id"`
	Component   string              `json:"component"`
	Kind        types.ComponentKind `json:"kind"`
	FromVersion string              `json:"from_version"`
	ToVersion   string              `json:"to_version"`
	Status      types.Status        `json:"status"`
	Error       string              `json:"error,omitempty"`
	At          time.Time           `json:"at"`
}

// Store defines the persistence used by the update manager and the CLI.
type Store interface {
	// SaveCheckResults replaces the stored results of the previous cycle.
	SaveCheckResults(records []CheckRecord) error
	LoadCheckResults() ([]CheckRecord, error)

	// RecordInstall appends to the install history, assigning an ID and
	// timestamp when missing.
	RecordInstall(record *InstallRecord) error
	// ListInstalls returns the newest records first. limit <= 0 returns all.
	ListInstalls(limit int) ([]*InstallRecord, error)

	Close() error
}
