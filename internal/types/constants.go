// Package types provides type-safe constants for the parley updater.
//
// This package centralizes the enumerated types shared by the config loader,
// the update subsystem and the CLI, replacing magic strings with typed
// constants that carry their own validation.
//
// SYNC REQUIREMENT: Channel values must stay in sync with the
// updater.channel validation in internal/config/validate.go.
package types

import (
	"fmt"
	"strings"
)

// Channel is the release channel the updater follows.
type Channel string

const (
	// ChannelNone disables every channel-scoped checker.
	ChannelNone Channel = "none"
	// ChannelStable follows final releases.
	ChannelStable Channel = "stable"
	// ChannelUnstable follows release candidates and betas as well.
	ChannelUnstable Channel = "unstable"
	// ChannelNightly follows nightly builds.
	ChannelNightly Channel = "nightly"
)

// AllChannels returns all valid channels.
func AllChannels() []Channel {
	return []Channel{ChannelNone, ChannelStable, ChannelUnstable, ChannelNightly}
}

// Validate checks if the Channel is a valid value.
func (c Channel) Validate() error {
	switch c {
	case ChannelNone, ChannelStable, ChannelUnstable, ChannelNightly:
		return nil
	case "":
		return fmt.Errorf("channel is required")
	default:
		return fmt.Errorf("invalid channel '%s' (must be none, stable, unstable, or nightly)", c)
	}
}

// String returns the string representation of the Channel.
func (c Channel) String() string {
	return string(c)
}

// Upper returns the channel name as the update service expects it.
func (c Channel) Upper() string {
	return strings.ToUpper(string(c))
}

// IsNightly returns true if the channel is nightly.
func (c Channel) IsNightly() bool {
	return c == ChannelNightly
}

// IsRelease returns true for the channels served by the release update service.
func (c Channel) IsRelease() bool {
	return c == ChannelStable || c == ChannelUnstable
}

// ParseChannel parses a string into a Channel, ignoring case.
// Returns an error if the string is not a valid channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return ChannelNone, err
	}
	return c, nil
}

// Status is the lifecycle state of a component as seen by the update manager.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusChecking             Status = "checking"
	StatusCheckingNotPermitted Status = "checking_not_permitted"
	StatusUpdatePending        Status = "update_pending"
	StatusRetrieving           Status = "retrieving"
	StatusInstallPending       Status = "install_pending"
	StatusInstalling           Status = "installing"
	StatusUpdated              Status = "updated"
	StatusRestartPending       Status = "restart_pending"
)

// AllStatuses returns all valid statuses.
func AllStatuses() []Status {
	return []Status{
		StatusIdle, StatusChecking, StatusCheckingNotPermitted, StatusUpdatePending,
		StatusRetrieving, StatusInstallPending, StatusInstalling, StatusUpdated,
		StatusRestartPending,
	}
}

// Validate checks if the Status is a valid value.
func (s Status) Validate() error {
	for _, known := range AllStatuses() {
		if s == known {
			return nil
		}
	}
	if s == "" {
		return fmt.Errorf("status is required")
	}
	return fmt.Errorf("invalid status '%s'", s)
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further work is scheduled for the component.
func (s Status) IsTerminal() bool {
	return s == StatusIdle || s == StatusUpdated || s == StatusRestartPending ||
		s == StatusCheckingNotPermitted
}

// ComponentKind tags the concrete kind of an updatable component.
// Installation strategies dispatch on it instead of on Go types.
type ComponentKind string

const (
	// ComponentAny matches every component kind in a strategy declaration.
	ComponentAny ComponentKind = "*"
	// ComponentClient is the parley executable itself.
	ComponentClient ComponentKind = "client"
	// ComponentPlugin is a plugin from the plugin registry.
	ComponentPlugin ComponentKind = "plugin"
)

// Validate checks if the ComponentKind is a valid value.
func (k ComponentKind) Validate() error {
	switch k {
	case ComponentAny, ComponentClient, ComponentPlugin:
		return nil
	case "":
		return fmt.Errorf("component kind is required")
	default:
		return fmt.Errorf("invalid component kind '%s' (must be client, plugin, or *)", k)
	}
}

// String returns the string representation of the ComponentKind.
func (k ComponentKind) String() string {
	return string(k)
}

// Matches reports whether a strategy declared for k accepts a component of kind other.
func (k ComponentKind) Matches(other ComponentKind) bool {
	return k == ComponentAny || k == other
}

// ResultKind tags the concrete kind of a retrieval result.
type ResultKind string

const (
	// ResultSingleFile is a retrieval that produced one file on disk.
	ResultSingleFile ResultKind = "single_file"
	// ResultArchive is a retrieval that produced a .tar.gz or .zip archive.
	ResultArchive ResultKind = "archive"
	// ResultFailed is a retrieval that produced nothing.
	ResultFailed ResultKind = "failed"
)

// Validate checks if the ResultKind is a valid value.
func (k ResultKind) Validate() error {
	switch k {
	case ResultSingleFile, ResultArchive, ResultFailed:
		return nil
	case "":
		return fmt.Errorf("result kind is required")
	default:
		return fmt.Errorf("invalid result kind '%s' (must be single_file, archive or failed)", k)
	}
}

// String returns the string representation of the ResultKind.
func (k ResultKind) String() string {
	return string(k)
}
