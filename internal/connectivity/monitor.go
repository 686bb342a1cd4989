// Package connectivity tracks the device's online/offline state from
// an injected platform reachability signal.
package connectivity

import (
	"sync"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// Monitor holds a boolean online state seeded from the source's
// current signal and updated on each transition event. Listeners are
// notified synchronously, with no debouncing. The state is advisory:
// a network call can still fail while IsOnline reports true.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	listeners []func(online bool)
}

// NewMonitor seeds the state from src and subscribes to its
// transitions.
func NewMonitor(src types.ConnectivitySource) *Monitor {
	m := &Monitor{online: src.Online()}
	src.Subscribe(m.setOnline)
	return m
}

// IsOnline returns the current state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a listener invoked on every transition with the
// new state. Listeners run synchronously in registration order.
func (m *Monitor) OnChange(listener func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// setOnline applies a transition and fans it out. Repeated events with
// an unchanged state are ignored so listeners only see edges.
func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l(online)
	}
}
