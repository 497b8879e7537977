package update

import "sync"

// listenerList is a concurrency-safe set of listeners. Notifications go to a
// snapshot of the listeners registered when the event fires.
type listenerList[L comparable] struct {
	mu        sync.RWMutex
	listeners []L
}

func (l *listenerList[L]) add(listener L) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.listeners {
		if existing == listener {
			return
		}
	}
	l.listeners = append(l.listeners, listener)
}

func (l *listenerList[L]) remove(listener L) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.listeners {
		if existing == listener {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return
		}
	}
}

func (l *listenerList[L]) snapshot() []L {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]L, len(l.listeners))
	copy(out, l.listeners)
	return out
}

func (l *listenerList[L]) each(fn func(L)) {
	for _, listener := range l.snapshot() {
		fn(listener)
	}
}

func (l *listenerList[L]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

// InstallationListenerFuncs adapts plain functions to InstallationListener.
// Register it by pointer; nil fields are skipped.
type InstallationListenerFuncs struct {
	OnProgress  func(c Component, percent float64)
	OnFailed    func(c Component)
	OnCompleted func(c Component)
}

// InstallProgressChanged implements InstallationListener.
func (f *InstallationListenerFuncs) InstallProgressChanged(c Component, percent float64) {
	if f.OnProgress != nil {
		f.OnProgress(c, percent)
	}
}

// InstallFailed implements InstallationListener.
func (f *InstallationListenerFuncs) InstallFailed(c Component) {
	if f.OnFailed != nil {
		f.OnFailed(c)
	}
}

// InstallCompleted implements InstallationListener.
func (f *InstallationListenerFuncs) InstallCompleted(c Component) {
	if f.OnCompleted != nil {
		f.OnCompleted(c)
	}
}
