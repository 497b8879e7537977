package update

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/types"
)

// InstallFunc applies result. Returning an error reports the install as failed.
type InstallFunc func(ctx context.Context, result RetrievalResult, progress func(percent float64)) error

// TypedStrategy is an installation strategy bound to one component kind and
// one retrieval result kind. CanHandle compares the two tags and nothing else.
type TypedStrategy struct {
	name      string
	component types.ComponentKind
	result    types.ResultKind
	install   InstallFunc
	listeners listenerList[InstallationListener]
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewTypedStrategy creates a strategy accepting results of kind result whose
// component is of kind component (types.ComponentAny accepts every component).
func NewTypedStrategy(name string, component types.ComponentKind, result types.ResultKind, install InstallFunc) *TypedStrategy {
	return &TypedStrategy{
		name:      name,
		component: component,
		result:    result,
		install:   install,
		log:       log.WithComponent("installer").With().Str("strategy", name).Logger(),
	}
}

// NewLegacyStrategy returns the strategy that hands a single downloaded file
// to the component's own Install method.
func NewLegacyStrategy() *TypedStrategy {
	return NewTypedStrategy("legacy", types.ComponentAny, types.ResultSingleFile, installSingleFile)
}

// Name returns the strategy name.
func (s *TypedStrategy) Name() string {
	return s.name
}

// String describes the strategy for logs.
func (s *TypedStrategy) String() string {
	return fmt.Sprintf("%s(%s, %s)", s.name, s.component, s.result)
}

// CanHandle implements InstallationStrategy.
func (s *TypedStrategy) CanHandle(r RetrievalResult) bool {
	if r == nil {
		return false
	}
	c := r.CheckResult().Component
	if c == nil {
		return false
	}
	return r.Kind() == s.result && s.component.Matches(c.Kind())
}

// Install implements InstallationStrategy.
func (s *TypedStrategy) Install(ctx context.Context, r RetrievalResult) error {
	if !s.CanHandle(r) {
		kind := types.ResultKind("<nil>")
		if r != nil {
			kind = r.Kind()
		}
		return fmt.Errorf("%s: %w (result kind %s)", s.name, ErrCannotHandle, kind)
	}

	c := r.CheckResult().Component
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, c, r)
	}()
	return nil
}

// Wait blocks until every install started by the strategy has finished.
func (s *TypedStrategy) Wait() {
	s.wg.Wait()
}

// AddListener implements InstallationStrategy.
func (s *TypedStrategy) AddListener(l InstallationListener) {
	s.listeners.add(l)
}

// RemoveListener implements InstallationStrategy.
func (s *TypedStrategy) RemoveListener(l InstallationListener) {
	s.listeners.remove(l)
}

func (s *TypedStrategy) run(ctx context.Context, c Component, r RetrievalResult) {
	s.log.Info().Str("component", c.Name()).Msg("Installing update")

	progress := func(percent float64) {
		s.listeners.each(func(l InstallationListener) { l.InstallProgressChanged(c, percent) })
	}

	if err := s.safeInstall(ctx, r, progress); err != nil {
		s.log.Error().Err(err).Str("component", c.Name()).Msg("Install failed")
		s.listeners.each(func(l InstallationListener) { l.InstallFailed(c) })
		return
	}

	s.log.Info().Str("component", c.Name()).Msg("Install completed")
	s.listeners.each(func(l InstallationListener) { l.InstallCompleted(c) })
}

func (s *TypedStrategy) safeInstall(ctx context.Context, r RetrievalResult, progress func(float64)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("install panicked: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.install(ctx, r, progress)
}

func installSingleFile(_ context.Context, r RetrievalResult, progress func(float64)) error {
	file, ok := r.(*SingleFileResult)
	if !ok {
		return fmt.Errorf("%w: %T is tagged %s", ErrCannotHandle, r, r.Kind())
	}
	progress(0)
	if err := file.Check.Component.Install(file.Path); err != nil {
		return fmt.Errorf("install %s from %s: %w", file.Check.Component.Name(), file.Path, err)
	}
	progress(100)
	return nil
}

// SelectStrategy returns the first strategy, in order, that can handle r.
func SelectStrategy(strategies []InstallationStrategy, r RetrievalResult) (InstallationStrategy, error) {
	for _, s := range strategies {
		if s.CanHandle(r) {
			return s, nil
		}
	}
	return nil, ErrNoInstallationStrategy
}
