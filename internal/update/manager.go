package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/metrics"
	"github.com/parley-irc/parley/internal/store"
	"github.com/parley-irc/parley/internal/types"
)

// Manager runs check cycles over the registered components and drives
// retrieval and installation of the updates they find.
type Manager struct {
	mu           sync.RWMutex
	components   []Component
	checkers     []Checker
	retrievers   []RetrievalStrategy
	installers   []InstallationStrategy
	consolidator Consolidator
	policy       ComponentPolicy
	store        store.Store

	checkResults CheckResults
	retrievals   map[string]RetrievalResult
	statuses     map[string]ComponentStatus
	inFlight     map[string]bool
	installing   map[string]bool

	listeners listenerList[StatusListener]
	proxy     *strategyListener
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// ComponentStatus is the last status reported for a component.
type ComponentStatus struct {
	Status   types.Status
	Progress float64
	// Err is why the last retrieval or install gave up.
	Err error
}

// Option configures a Manager.
type Option func(*Manager)

// WithConsolidator replaces the NaiveConsolidator.
func WithConsolidator(c Consolidator) Option {
	return func(m *Manager) { m.consolidator = c }
}

// WithPolicy restricts which components are checked.
func WithPolicy(p ComponentPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithStore persists check results and install history.
func WithStore(s store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// NewManager creates a manager with no components, checkers or strategies.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		consolidator: NaiveConsolidator{},
		policy:       ConfigPolicy(nil),
		checkResults: make(CheckResults),
		retrievals:   make(map[string]RetrievalResult),
		statuses:     make(map[string]ComponentStatus),
		inFlight:     make(map[string]bool),
		installing:   make(map[string]bool),
		log:          log.WithComponent("manager"),
	}
	m.proxy = &strategyListener{m: m}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddComponent registers c. A component with the same name is replaced.
func (m *Manager) AddComponent(c Component) {
	m.mu.Lock()
	for i, existing := range m.components {
		if existing.Name() == c.Name() {
			m.components[i] = c
			m.mu.Unlock()
			return
		}
	}
	m.components = append(m.components, c)
	m.statuses[c.Name()] = ComponentStatus{Status: types.StatusIdle}
	m.mu.Unlock()
}

// RemoveComponent unregisters the component called name.
func (m *Manager) RemoveComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.components {
		if existing.Name() == name {
			m.components = append(m.components[:i:i], m.components[i+1:]...)
			break
		}
	}
	delete(m.checkResults, name)
	delete(m.retrievals, name)
	delete(m.statuses, name)
}

// Components returns a snapshot of the registered components in registration order.
func (m *Manager) Components() []Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Component(nil), m.components...)
}

// Component returns the registered component called name.
func (m *Manager) Component(name string) (Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.componentLocked(name)
}

func (m *Manager) componentLocked(name string) (Component, error) {
	for _, c := range m.components {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
}

// AddChecker registers a checker for subsequent cycles.
func (m *Manager) AddChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// AddRetrievalStrategy registers s after the strategies already present.
func (m *Manager) AddRetrievalStrategy(s RetrievalStrategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievers = append(m.retrievers, s)
	s.AddListener(m.proxy)
}

// AddInstallationStrategy registers s after the strategies already present.
// Strategies are tried in registration order.
func (m *Manager) AddInstallationStrategy(s InstallationStrategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installers = append(m.installers, s)
	s.AddListener(m.proxy)
}

// AddStatusListener subscribes l to status changes.
func (m *Manager) AddStatusListener(l StatusListener) {
	m.listeners.add(l)
}

// RemoveStatusListener unsubscribes l.
func (m *Manager) RemoveStatusListener(l StatusListener) {
	m.listeners.remove(l)
}

// Status returns the last status of the component called name.
func (m *Manager) Status(name string) ComponentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.statuses[name]; ok {
		return s
	}
	return ComponentStatus{Status: types.StatusIdle}
}

// CheckResults returns a copy of the results of the last cycle.
func (m *Manager) CheckResults() CheckResults {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(CheckResults, len(m.checkResults))
	for k, v := range m.checkResults {
		out[k] = v
	}
	return out
}

// Wait blocks until every retrieval and install started by the manager has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// CheckForUpdates runs every checker concurrently over the permitted
// components, waits for all of them and consolidates their results.
func (m *Manager) CheckForUpdates(ctx context.Context) CheckResults {
	cycle := metrics.NewTimer()

	m.mu.RLock()
	components := append([]Component(nil), m.components...)
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	var enabled []Component
	for _, c := range components {
		if m.policy.CanCheck(c) {
			enabled = append(enabled, c)
			m.setStatusUnlessBusy(c, types.StatusChecking)
		} else {
			m.setStatusUnlessBusy(c, types.StatusCheckingNotPermitted)
		}
	}

	m.log.Info().Int("components", len(enabled)).Int("checkers", len(checkers)).Msg("Checking for updates")

	results := make([]CheckResults, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			timer := metrics.NewTimer()
			results[i] = checker.CheckForUpdates(ctx, enabled)
			timer.ObserveDuration(metrics.CheckDuration.WithLabelValues(checker.Name()))
			outcome := metrics.OutcomeOK
			if len(results[i]) == 0 {
				outcome = metrics.OutcomeSkipped
			}
			metrics.ChecksTotal.WithLabelValues(checker.Name(), outcome).Inc()
		}(i, checker)
	}
	wg.Wait()

	consolidated := m.consolidator.Consolidate(results)

	m.mu.Lock()
	m.checkResults = make(CheckResults, len(consolidated))
	for name, r := range consolidated {
		m.checkResults[name] = r
		// a retrieval for an older verdict is stale
		if prev, ok := m.retrievals[name]; ok && !m.inFlight[name] &&
			!prev.CheckResult().Version.Equal(r.Version) {
			delete(m.retrievals, name)
		}
	}
	m.mu.Unlock()

	available := 0
	for _, c := range enabled {
		if r, ok := consolidated[c.Name()]; ok && r.Available {
			available++
			m.log.Info().Str("component", c.Name()).Str("version", r.FriendlyVersion).
				Str("source", r.Source).Msg("Update available")
			m.setStatusUnlessBusy(c, types.StatusUpdatePending)
		} else {
			m.setStatusUnlessBusy(c, types.StatusIdle)
		}
	}
	metrics.UpdatesAvailable.Set(float64(available))
	cycle.ObserveDuration(metrics.CycleDuration)

	m.saveCheckResults(enabled, consolidated)
	return m.CheckResults()
}

// Retrieve starts retrieving the update found for c by the last cycle. With
// install set, a successful retrieval is installed straight away.
func (m *Manager) Retrieve(ctx context.Context, c Component, install bool) error {
	m.mu.Lock()
	if _, err := m.componentLocked(c.Name()); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.inFlight[c.Name()] {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", c.Name(), ErrInProgress)
	}
	check, ok := m.checkResults[c.Name()]
	if !ok || !check.Available {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", c.Name(), ErrNoUpdate)
	}
	var retriever RetrievalStrategy
	for _, s := range m.retrievers {
		if s.CanHandle(check) {
			retriever = s
			break
		}
	}
	if retriever == nil {
		m.mu.Unlock()
		err := fmt.Errorf("%s: %w", c.Name(), ErrNoRetrievalStrategy)
		m.fail(c, err)
		return err
	}
	m.inFlight[c.Name()] = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.retrieve(ctx, c, check, retriever, install)
	}()
	return nil
}

func (m *Manager) retrieve(ctx context.Context, c Component, check CheckResult, retriever RetrievalStrategy, install bool) {
	m.setStatus(c, types.StatusRetrieving, 0)

	result := retriever.Retrieve(ctx, check)

	m.mu.Lock()
	m.retrievals[c.Name()] = result
	m.mu.Unlock()

	if !result.Successful() {
		metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		err := fmt.Errorf("%s: %w", c.Name(), ErrRetrievalFailed)
		if failed, ok := result.(*FailedRetrieval); ok && failed.Err != nil {
			err = fmt.Errorf("%s: %w: %v", c.Name(), ErrRetrievalFailed, failed.Err)
		}
		m.log.Warn().Err(err).Str("component", c.Name()).Msg("Retrieval failed")
		m.release(c.Name())
		m.fail(c, err)
		return
	}
	metrics.RetrievalsTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	if !install {
		m.release(c.Name())
		m.setStatus(c, types.StatusInstallPending, 0)
		return
	}

	// startInstall keeps the error on c's status
	if err := m.startInstall(ctx, c, result); err != nil {
		m.log.Error().Err(err).Str("component", c.Name()).Msg("Unable to install update")
	}
}

// Install installs the update found for c, retrieving it first when nothing
// has been retrieved yet. The install itself runs asynchronously; its outcome
// is reported through status listeners.
func (m *Manager) Install(ctx context.Context, c Component) error {
	m.mu.Lock()
	if _, err := m.componentLocked(c.Name()); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.inFlight[c.Name()] {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", c.Name(), ErrInProgress)
	}
	check, ok := m.checkResults[c.Name()]
	if !ok || !check.Available {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", c.Name(), ErrNoUpdate)
	}
	result, ok := m.retrievals[c.Name()]
	if !ok || !result.Successful() {
		m.mu.Unlock()
		return m.Retrieve(ctx, c, true)
	}
	m.inFlight[c.Name()] = true
	m.mu.Unlock()

	return m.startInstall(ctx, c, result)
}

// startInstall hands result to the first strategy that accepts it. The
// caller must have marked c in flight.
func (m *Manager) startInstall(ctx context.Context, c Component, result RetrievalResult) error {
	m.mu.RLock()
	installers := append([]InstallationStrategy(nil), m.installers...)
	m.mu.RUnlock()

	strategy, err := SelectStrategy(installers, result)
	if err != nil {
		err = fmt.Errorf("%s: %w", c.Name(), err)
		metrics.InstallsTotal.WithLabelValues(c.Kind().String(), metrics.OutcomeSkipped).Inc()
		m.release(c.Name())
		m.fail(c, err)
		return err
	}

	m.setStatus(c, types.StatusInstalling, 0)

	m.mu.Lock()
	m.installing[c.Name()] = true
	m.mu.Unlock()
	m.wg.Add(1)

	if err := strategy.Install(ctx, result); err != nil {
		err = fmt.Errorf("%s: %w", c.Name(), err)
		m.finishInstall(c.Name())
		m.release(c.Name())
		m.fail(c, err)
		return err
	}
	return nil
}

// finishInstall balances the wait group for an install the manager started.
func (m *Manager) finishInstall(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.installing[name] {
		return false
	}
	delete(m.installing, name)
	m.wg.Done()
	return true
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, name)
}

func (m *Manager) setStatus(c Component, status types.Status, progress float64) {
	m.mu.Lock()
	m.statuses[c.Name()] = ComponentStatus{Status: status, Progress: progress}
	m.mu.Unlock()

	m.log.Debug().Str("component", c.Name()).Str("status", status.String()).
		Float64("progress", progress).Msg("Status changed")
	m.listeners.each(func(l StatusListener) { l.UpdateStatusChanged(c, status, progress) })
}

// fail returns c to idle, keeping err as the reason.
func (m *Manager) fail(c Component, err error) {
	m.mu.Lock()
	m.statuses[c.Name()] = ComponentStatus{Status: types.StatusIdle, Err: err}
	m.mu.Unlock()

	m.log.Debug().Err(err).Str("component", c.Name()).Str("status", types.StatusIdle.String()).Msg("Status changed")
	m.listeners.each(func(l StatusListener) { l.UpdateStatusChanged(c, types.StatusIdle, 0) })
}

func (m *Manager) setStatusUnlessBusy(c Component, status types.Status) {
	m.mu.RLock()
	busy := m.inFlight[c.Name()]
	m.mu.RUnlock()
	if !busy {
		m.setStatus(c, status, 0)
	}
}

func (m *Manager) installCompleted(c Component) {
	m.mu.Lock()
	var target Version
	if r, ok := m.retrievals[c.Name()]; ok {
		target = r.CheckResult().Version
	}
	delete(m.retrievals, c.Name())
	delete(m.checkResults, c.Name())
	m.mu.Unlock()

	if rec, ok := c.(VersionRecorder); ok && target.IsValid() {
		if err := rec.RecordVersion(target); err != nil {
			m.log.Warn().Err(err).Str("component", c.Name()).Msg("Unable to record installed version")
		}
	}

	status := types.StatusUpdated
	if c.RequiresRestart() {
		status = types.StatusRestartPending
	}
	metrics.InstallsTotal.WithLabelValues(c.Kind().String(), metrics.OutcomeOK).Inc()
	m.recordInstall(c, target, status, "")

	m.release(c.Name())
	m.setStatus(c, status, 100)
}

func (m *Manager) installFailed(c Component) {
	m.mu.RLock()
	var target Version
	if r, ok := m.retrievals[c.Name()]; ok {
		target = r.CheckResult().Version
	}
	m.mu.RUnlock()

	metrics.InstallsTotal.WithLabelValues(c.Kind().String(), metrics.OutcomeFailed).Inc()
	m.recordInstall(c, target, types.StatusIdle, "install failed")

	m.release(c.Name())
	m.fail(c, fmt.Errorf("%s: %w", c.Name(), ErrInstallFailed))
}

func (m *Manager) recordInstall(c Component, target Version, status types.Status, errMsg string) {
	if m.store == nil {
		return
	}
	err := m.store.RecordInstall(&store.InstallRecord{
		Component:   c.Name(),
		Kind:        c.Kind(),
		FromVersion: c.Version().String(),
		ToVersion:   target.String(),
		Status:      status,
		Error:       errMsg,
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("Unable to record install history")
	}
}

func (m *Manager) saveCheckResults(components []Component, results CheckResults) {
	if m.store == nil {
		return
	}
	records := CheckRecords(components, results, time.Now().UTC())
	if err := m.store.SaveCheckResults(records); err != nil {
		m.log.Warn().Err(err).Msg("Unable to save check results")
	}
}

// CheckRecords flattens results into storable records, in component order.
// A component no source reported on is recorded as up to date.
func CheckRecords(components []Component, results CheckResults, at time.Time) []store.CheckRecord {
	records := make([]store.CheckRecord, 0, len(components))
	for _, c := range components {
		record := store.CheckRecord{
			Component:      c.Name(),
			Kind:           c.Kind(),
			CurrentVersion: c.Version().String(),
			CheckedAt:      at,
		}
		if r, ok := results[c.Name()]; ok {
			record.Available = r.Available
			record.Version = r.Version.String()
			record.FriendlyVersion = r.FriendlyVersion
			record.URL = r.URL
			record.Source = r.Source
		}
		records = append(records, record)
	}
	return records
}

// strategyListener forwards strategy notifications to the manager. It is
// registered on every strategy the manager owns.
type strategyListener struct {
	m *Manager
}

func (l *strategyListener) RetrievalProgressChanged(c Component, percent float64) {
	l.m.setStatus(c, types.StatusRetrieving, percent)
}

// Retrieval outcomes are handled where Retrieve returns.
func (l *strategyListener) RetrievalFailed(Component)    {}
func (l *strategyListener) RetrievalCompleted(Component) {}

func (l *strategyListener) InstallProgressChanged(c Component, percent float64) {
	l.m.setStatus(c, types.StatusInstalling, percent)
}

func (l *strategyListener) InstallFailed(c Component) {
	defer l.m.finishInstall(c.Name())
	l.m.installFailed(c)
}

func (l *strategyListener) InstallCompleted(c Component) {
	defer l.m.finishInstall(c.Name())
	l.m.installCompleted(c)
}
