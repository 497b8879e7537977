package update

import (
	"context"
	"errors"
	"sync"

	"github.com/parley-irc/parley/internal/types"
)

type fakeComponent struct {
	name    string
	version Version
	kind    types.ComponentKind
	restart bool
	failure error
	panics  bool

	mu        sync.Mutex
	installed []string
	recorded  []Version
}

func newPlugin(name, version string) *fakeComponent {
	return &fakeComponent{name: name, version: NewVersion(version), kind: types.ComponentPlugin}
}

func newClient(version string) *fakeComponent {
	return &fakeComponent{name: "client", version: NewVersion(version), kind: types.ComponentClient, restart: true}
}

func (c *fakeComponent) Name() string              { return c.name }
func (c *fakeComponent) FriendlyName() string      { return "Fake " + c.name }
func (c *fakeComponent) Version() Version          { return c.version }
func (c *fakeComponent) Kind() types.ComponentKind { return c.kind }
func (c *fakeComponent) RequiresRestart() bool     { return c.restart }

func (c *fakeComponent) Install(path string) error {
	if c.panics {
		panic("installer exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed = append(c.installed, path)
	return c.failure
}

func (c *fakeComponent) RecordVersion(v Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded = append(c.recorded, v)
	return nil
}

func (c *fakeComponent) installs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.installed...)
}

var errInstall = errors.New("disk full")

// recordingListener captures every notification it receives.
type recordingListener struct {
	mu        sync.Mutex
	progress  []float64
	failed    []string
	completed []string
	done      chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{done: make(chan struct{}, 16)}
}

func (l *recordingListener) InstallProgressChanged(_ Component, percent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, percent)
}

func (l *recordingListener) InstallFailed(c Component) {
	l.mu.Lock()
	l.failed = append(l.failed, c.Name())
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *recordingListener) InstallCompleted(c Component) {
	l.mu.Lock()
	l.completed = append(l.completed, c.Name())
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *recordingListener) snapshot() (progress []float64, failed, completed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.progress...),
		append([]string(nil), l.failed...),
		append([]string(nil), l.completed...)
}

// staticChecker returns canned results.
type staticChecker struct {
	name    string
	results func(components []Component) CheckResults
}

func (c *staticChecker) Name() string { return c.name }

func (c *staticChecker) CheckForUpdates(_ context.Context, components []Component) CheckResults {
	return c.results(components)
}
