package update

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-irc/parley/internal/store"
	"github.com/parley-irc/parley/internal/types"
)

type statusRecorder struct {
	mu      sync.Mutex
	history map[string][]types.Status
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{history: make(map[string][]types.Status)}
}

func (r *statusRecorder) UpdateStatusChanged(c Component, status types.Status, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[c.Name()]
	// collapse progress updates
	if len(h) > 0 && h[len(h)-1] == status {
		return
	}
	r.history[c.Name()] = append(h, status)
}

func (r *statusRecorder) statuses(name string) []types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Status(nil), r.history[name]...)
}

// updateServer serves a nightly manifest offering plugin-foo 1.1 and the
// payload it points at.
func updateServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nightly":
			_, _ = io.WriteString(w, `{"plugin-foo": {"version": "1.1", "url": "`+srv.URL+`/files/plugin-foo.jar"}}`)
		case "/files/plugin-foo.jar":
			_, _ = io.WriteString(w, "plugin-foo 1.1 payload")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type e2eFixture struct {
	manager   *Manager
	plugin    *fakeComponent
	listener  *recordingListener
	statuses  *statusRecorder
	store     *store.BoltStore
	nightly   *NightlyChecker
	stable    *ServiceChecker
	downloads string
}

func newE2EFixture(t *testing.T) *e2eFixture {
	t.Helper()
	srv := updateServer(t)

	nightly := NewNightlyChecker(srv.URL + "/nightly")
	nightly.SetChannel("nightly")
	stable := NewServiceChecker(srv.URL + "/service")
	stable.SetChannel("nightly")

	db, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &e2eFixture{
		plugin:    newPlugin("plugin-foo", "1.0"),
		listener:  newRecordingListener(),
		statuses:  newStatusRecorder(),
		store:     db,
		nightly:   nightly,
		stable:    stable,
		downloads: filepath.Join(t.TempDir(), "downloads"),
	}

	legacy := NewLegacyStrategy()
	legacy.AddListener(f.listener)

	f.manager = NewManager(WithStore(db))
	f.manager.AddComponent(f.plugin)
	f.manager.AddChecker(nightly)
	f.manager.AddChecker(stable)
	f.manager.AddRetrievalStrategy(NewDownloadStrategy(f.downloads, nil))
	f.manager.AddInstallationStrategy(legacy)
	f.manager.AddStatusListener(f.statuses)
	return f
}

func TestEndToEndNightlyPluginUpdate(t *testing.T) {
	f := newE2EFixture(t)
	ctx := context.Background()
	components := []Component{f.plugin}

	nightlyResults := f.nightly.CheckForUpdates(ctx, components)
	require.Contains(t, nightlyResults, "plugin-foo")
	assert.True(t, nightlyResults["plugin-foo"].Available)
	assert.Empty(t, f.stable.CheckForUpdates(ctx, components))

	results := f.manager.CheckForUpdates(ctx)
	require.Contains(t, results, "plugin-foo")
	assert.True(t, results["plugin-foo"].Available)
	assert.Equal(t, "1.1", results["plugin-foo"].Version.String())
	assert.Equal(t, types.StatusUpdatePending, f.manager.Status("plugin-foo").Status)

	stored, err := f.store.LoadCheckResults()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Available)
	assert.Equal(t, "1.0", stored[0].CurrentVersion)

	require.NoError(t, f.manager.Install(ctx, f.plugin))
	f.manager.Wait()

	_, failed, completed := f.listener.snapshot()
	assert.Equal(t, []string{"plugin-foo"}, completed)
	assert.Empty(t, failed)

	installs := f.plugin.installs()
	require.Len(t, installs, 1)
	assert.Equal(t, filepath.Join(f.downloads, "plugin-foo-1.1.jar"), installs[0])
	data, err := os.ReadFile(installs[0])
	require.NoError(t, err)
	assert.Equal(t, "plugin-foo 1.1 payload", string(data))

	assert.Equal(t, []Version{NewVersion("1.1")}, f.plugin.recorded)
	assert.Equal(t, ComponentStatus{Status: types.StatusUpdated, Progress: 100}, f.manager.Status("plugin-foo"))
	assert.Equal(t, []types.Status{
		types.StatusIdle,
		types.StatusChecking,
		types.StatusUpdatePending,
		types.StatusRetrieving,
		types.StatusInstalling,
		types.StatusUpdated,
	}, append([]types.Status{types.StatusIdle}, f.statuses.statuses("plugin-foo")...))

	history, err := f.store.ListInstalls(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.StatusUpdated, history[0].Status)
	assert.Equal(t, "1.0", history[0].FromVersion)
	assert.Equal(t, "1.1", history[0].ToVersion)

	err = f.manager.Install(ctx, f.plugin)
	assert.ErrorIs(t, err, ErrNoUpdate)
}

func TestEndToEndInstallFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakeComponent)
	}{
		{"install error", func(c *fakeComponent) { c.failure = errInstall }},
		{"install panic", func(c *fakeComponent) { c.panics = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newE2EFixture(t)
			tt.setup(f.plugin)
			ctx := context.Background()

			f.manager.CheckForUpdates(ctx)
			require.NoError(t, f.manager.Install(ctx, f.plugin))
			f.manager.Wait()

			_, failed, completed := f.listener.snapshot()
			assert.Equal(t, []string{"plugin-foo"}, failed)
			assert.Empty(t, completed)
			assert.Empty(t, f.plugin.recorded)
			status := f.manager.Status("plugin-foo")
			assert.Equal(t, types.StatusIdle, status.Status)
			assert.ErrorIs(t, status.Err, ErrInstallFailed)

			history, err := f.store.ListInstalls(0)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, types.StatusIdle, history[0].Status)
			assert.NotEmpty(t, history[0].Error)

			// the retrieved file is kept, so a retry skips retrieval
			assert.True(t, f.manager.CheckResults()["plugin-foo"].Available)
		})
	}
}

func TestManagerRespectsPolicy(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	checker := &staticChecker{name: "static", results: func(components []Component) CheckResults {
		mu.Lock()
		defer mu.Unlock()
		out := make(CheckResults)
		for _, c := range components {
			seen = append(seen, c.Name())
			out.Put(NoUpdate(c, "static"))
		}
		return out
	}}

	m := NewManager(WithPolicy(ConfigPolicy{"plugin-foo": false}))
	m.AddComponent(newPlugin("plugin-foo", "1.0"))
	m.AddComponent(newPlugin("plugin-bar", "1.0"))
	m.AddChecker(checker)

	results := m.CheckForUpdates(context.Background())

	assert.Equal(t, []string{"plugin-bar"}, seen)
	assert.NotContains(t, results, "plugin-foo")
	assert.Equal(t, types.StatusCheckingNotPermitted, m.Status("plugin-foo").Status)
	assert.Equal(t, types.StatusIdle, m.Status("plugin-bar").Status)
}

func TestManagerRunsCheckersConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	barrier := func(name string, available bool) *staticChecker {
		return &staticChecker{name: name, results: func(components []Component) CheckResults {
			arrived.Done()
			select {
			case <-allArrived:
			case <-time.After(5 * time.Second):
				t.Error("checkers did not run concurrently")
			}
			out := make(CheckResults)
			for _, c := range components {
				if available {
					out.Put(UpdateAvailable(c, name, NewVersion("9.0"), "", "https://example.com/"+c.Name()))
				} else {
					out.Put(NoUpdate(c, name))
				}
			}
			return out
		}}
	}

	m := NewManager()
	m.AddComponent(newPlugin("plugin-foo", "1.0"))
	m.AddChecker(barrier("negative", false))
	m.AddChecker(barrier("positive", true))

	results := m.CheckForUpdates(context.Background())
	require.Contains(t, results, "plugin-foo")
	assert.True(t, results["plugin-foo"].Available)
	assert.Equal(t, "positive", results["plugin-foo"].Source)
}

func TestManagerErrors(t *testing.T) {
	ctx := context.Background()
	offer := &staticChecker{name: "offer", results: func(components []Component) CheckResults {
		out := make(CheckResults)
		for _, c := range components {
			out.Put(UpdateAvailable(c, "offer", NewVersion("2.0"), "", "https://example.com/"+c.Name()))
		}
		return out
	}}

	t.Run("unknown component", func(t *testing.T) {
		m := NewManager()
		assert.ErrorIs(t, m.Install(ctx, newPlugin("ghost", "1.0")), ErrUnknownComponent)
		assert.ErrorIs(t, m.Retrieve(ctx, newPlugin("ghost", "1.0"), false), ErrUnknownComponent)
		_, err := m.Component("ghost")
		assert.ErrorIs(t, err, ErrUnknownComponent)
	})

	t.Run("no update", func(t *testing.T) {
		m := NewManager()
		foo := newPlugin("plugin-foo", "1.0")
		m.AddComponent(foo)
		m.CheckForUpdates(ctx)
		assert.ErrorIs(t, m.Install(ctx, foo), ErrNoUpdate)
	})

	t.Run("no retrieval strategy", func(t *testing.T) {
		m := NewManager()
		foo := newPlugin("plugin-foo", "1.0")
		m.AddComponent(foo)
		m.AddChecker(offer)
		m.CheckForUpdates(ctx)

		assert.ErrorIs(t, m.Install(ctx, foo), ErrNoRetrievalStrategy)
		assert.Equal(t, types.StatusIdle, m.Status("plugin-foo").Status)
		assert.ErrorIs(t, m.Status("plugin-foo").Err, ErrNoRetrievalStrategy)
	})

	t.Run("no installation strategy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "payload")
		}))
		defer srv.Close()

		foo := newPlugin("plugin-foo", "1.0")
		m := NewManager()
		m.AddComponent(foo)
		m.AddChecker(&staticChecker{name: "offer", results: func(components []Component) CheckResults {
			out := make(CheckResults)
			for _, c := range components {
				out.Put(UpdateAvailable(c, "offer", NewVersion("2.0"), "", srv.URL+"/foo.jar"))
			}
			return out
		}})
		m.AddRetrievalStrategy(NewDownloadStrategy(t.TempDir(), nil))
		m.AddInstallationStrategy(NewTypedStrategy("client-only", types.ComponentClient, types.ResultSingleFile, installSingleFile))
		m.CheckForUpdates(ctx)

		require.NoError(t, m.Retrieve(ctx, foo, false))
		m.Wait()
		assert.Equal(t, types.StatusInstallPending, m.Status("plugin-foo").Status)

		err := m.Install(ctx, foo)
		assert.ErrorIs(t, err, ErrNoInstallationStrategy)
		assert.Equal(t, types.StatusIdle, m.Status("plugin-foo").Status)
		assert.ErrorIs(t, m.Status("plugin-foo").Err, ErrNoInstallationStrategy)
		assert.Empty(t, foo.installs())
	})

	t.Run("no installation strategy after retrieving", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "payload")
		}))
		defer srv.Close()

		foo := newPlugin("plugin-foo", "1.0")
		m := NewManager()
		m.AddComponent(foo)
		m.AddChecker(&staticChecker{name: "offer", results: func(components []Component) CheckResults {
			out := make(CheckResults)
			for _, c := range components {
				out.Put(UpdateAvailable(c, "offer", NewVersion("2.0"), "", srv.URL+"/foo.jar"))
			}
			return out
		}})
		m.AddRetrievalStrategy(NewDownloadStrategy(t.TempDir(), nil))
		m.AddInstallationStrategy(NewTypedStrategy("client-only", types.ComponentClient, types.ResultSingleFile, installSingleFile))
		m.CheckForUpdates(ctx)

		// nothing retrieved yet, so Install retrieves first and returns early
		require.NoError(t, m.Install(ctx, foo))
		m.Wait()

		status := m.Status("plugin-foo")
		assert.Equal(t, types.StatusIdle, status.Status)
		assert.ErrorIs(t, status.Err, ErrNoInstallationStrategy)
		assert.NotErrorIs(t, status.Err, ErrRetrievalFailed)
		assert.Empty(t, foo.installs())
	})

	t.Run("failed retrieval", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		foo := newPlugin("plugin-foo", "1.0")
		m := NewManager()
		m.AddComponent(foo)
		m.AddChecker(&staticChecker{name: "offer", results: func(components []Component) CheckResults {
			out := make(CheckResults)
			for _, c := range components {
				out.Put(UpdateAvailable(c, "offer", NewVersion("2.0"), "", srv.URL+"/foo.jar"))
			}
			return out
		}})
		m.AddRetrievalStrategy(NewDownloadStrategy(t.TempDir(), nil))
		m.AddInstallationStrategy(NewLegacyStrategy())
		m.CheckForUpdates(ctx)

		require.NoError(t, m.Install(ctx, foo))
		m.Wait()
		status := m.Status("plugin-foo")
		assert.Equal(t, types.StatusIdle, status.Status)
		assert.ErrorIs(t, status.Err, ErrRetrievalFailed)
		assert.Contains(t, status.Err.Error(), "404")
		assert.Empty(t, foo.installs())
	})
}

func TestManagerRestartPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "binary")
	}))
	defer srv.Close()

	client := newClient("1.0")
	m := NewManager()
	m.AddComponent(client)
	m.AddChecker(&staticChecker{name: "offer", results: func(components []Component) CheckResults {
		out := make(CheckResults)
		for _, c := range components {
			out.Put(UpdateAvailable(c, "offer", NewVersion("1.1"), "", srv.URL+"/parley"))
		}
		return out
	}})
	m.AddRetrievalStrategy(NewDownloadStrategy(t.TempDir(), nil))
	m.AddInstallationStrategy(NewLegacyStrategy())

	m.CheckForUpdates(context.Background())
	require.NoError(t, m.Install(context.Background(), client))
	m.Wait()

	assert.Equal(t, types.StatusRestartPending, m.Status("client").Status)
	assert.Len(t, client.installs(), 1)
}

func TestManagerComponents(t *testing.T) {
	m := NewManager()
	foo := newPlugin("plugin-foo", "1.0")
	m.AddComponent(foo)
	m.AddComponent(newPlugin("plugin-bar", "1.0"))
	m.AddComponent(newPlugin("plugin-foo", "2.0"))

	components := m.Components()
	require.Len(t, components, 2)
	assert.Equal(t, "2.0", components[0].Version().String())

	m.RemoveComponent("plugin-foo")
	components = m.Components()
	require.Len(t, components, 1)
	assert.Equal(t, "plugin-bar", components[0].Name())

	_, err := m.Component("plugin-foo")
	assert.True(t, errors.Is(err, ErrUnknownComponent))
}

func TestStatusListenerRemoval(t *testing.T) {
	m := NewManager()
	rec := newStatusRecorder()
	m.AddStatusListener(rec)
	m.AddComponent(newPlugin("plugin-foo", "1.0"))
	m.CheckForUpdates(context.Background())
	before := len(rec.statuses("plugin-foo"))
	require.NotZero(t, before)

	m.RemoveStatusListener(rec)
	m.CheckForUpdates(context.Background())
	assert.Len(t, rec.statuses("plugin-foo"), before)
}

func TestCheckRecordsListsComponentsWithoutResults(t *testing.T) {
	foo := newPlugin("plugin-foo", "1.0")
	bar := newPlugin("plugin-bar", "2.0")
	results := make(CheckResults)
	results.Put(UpdateAvailable(foo, "nightly", NewVersion("1.1"), "", "https://example.com/foo.jar"))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	records := CheckRecords([]Component{foo, bar}, results, at)

	require.Len(t, records, 2)
	assert.True(t, records[0].Available)
	assert.Equal(t, "1.1", records[0].Version)
	assert.Equal(t, "nightly", records[0].Source)
	assert.Equal(t, store.CheckRecord{
		Component:      "plugin-bar",
		Kind:           types.ComponentPlugin,
		CurrentVersion: "2.0",
		CheckedAt:      at,
	}, records[1])
}
