package update

import (
	"context"
	"errors"

	"github.com/parley-irc/parley/internal/types"
)

var (
	// ErrNoUpdate is returned when retrieval is requested for a component
	// whose last check found nothing newer.
	ErrNoUpdate = errors.New("no update available")
	// ErrUnknownComponent is returned for components the manager does not track.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrNoRetrievalStrategy is returned when no retrieval strategy accepts a check result.
	ErrNoRetrievalStrategy = errors.New("no retrieval strategy can handle update")
	// ErrNoInstallationStrategy is returned when no installation strategy accepts a retrieval result.
	ErrNoInstallationStrategy = errors.New("no installation strategy can handle update")
	// ErrCannotHandle is returned by a strategy asked to process something its CanHandle rejects.
	ErrCannotHandle = errors.New("strategy cannot handle result")
	// ErrRetrievalFailed is reported when a retrieval produced no artifact.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrInstallFailed is reported when an installation strategy gave up.
	ErrInstallFailed = errors.New("install failed")
	// ErrInProgress is returned when a component is already being retrieved or installed.
	ErrInProgress = errors.New("update already in progress")
)

// Component is a named, independently versioned unit that can be updated.
// The update subsystem only borrows components; their lifecycle belongs to
// whoever registered them.
type Component interface {
	Name() string
	FriendlyName() string
	Version() Version
	Kind() types.ComponentKind
	// RequiresRestart reports whether a completed install only takes effect
	// after the client restarts.
	RequiresRestart() bool
	// Install applies the payload at path to the component.
	Install(path string) error
}

// VersionRecorder is implemented by components that persist the version
// they were updated to once an install completes.
type VersionRecorder interface {
	RecordVersion(v Version) error
}

// Checker queries one update source.
//
// Checkers never fail: transport and parse errors are logged and produce an
// empty result set so that other sources can still answer.
type Checker interface {
	Name() string
	CheckForUpdates(ctx context.Context, components []Component) CheckResults
}

// Consolidator merges the results of several checkers into one verdict per component.
type Consolidator interface {
	Consolidate(results []CheckResults) CheckResults
}

// RetrievalStrategy turns a positive check result into an artifact on disk.
type RetrievalStrategy interface {
	CanHandle(result CheckResult) bool
	// Retrieve blocks until the artifact is retrieved or retrieval fails.
	// Failures are reported through listeners and a FailedRetrieval result.
	Retrieve(ctx context.Context, result CheckResult) RetrievalResult
	AddListener(l RetrievalListener)
	RemoveListener(l RetrievalListener)
}

// InstallationStrategy applies a retrieved artifact to its component.
type InstallationStrategy interface {
	CanHandle(result RetrievalResult) bool
	// Install starts installing result and returns immediately. The outcome
	// is delivered to listeners only. ErrCannotHandle is returned when
	// CanHandle would have rejected result.
	Install(ctx context.Context, result RetrievalResult) error
	AddListener(l InstallationListener)
	RemoveListener(l InstallationListener)
}

// InstallationListener receives install notifications. Implementations must
// be comparable (typically pointers) so they can be removed again.
type InstallationListener interface {
	InstallProgressChanged(c Component, percent float64)
	InstallFailed(c Component)
	InstallCompleted(c Component)
}

// RetrievalListener receives retrieval notifications.
type RetrievalListener interface {
	RetrievalProgressChanged(c Component, percent float64)
	RetrievalFailed(c Component)
	RetrievalCompleted(c Component)
}

// StatusListener is notified whenever the manager moves a component to a new status.
type StatusListener interface {
	UpdateStatusChanged(c Component, status types.Status, progress float64)
}

// ComponentPolicy decides which components may be checked for updates.
type ComponentPolicy interface {
	CanCheck(c Component) bool
}

// Downloader fetches a URL to a local file.
type Downloader interface {
	Download(ctx context.Context, url, dst string, progress func(percent float64)) error
}

// Replacer safely replaces a binary with rollback support
type Replacer interface {
	Replace(newBinary string) error
	Rollback() error
}
