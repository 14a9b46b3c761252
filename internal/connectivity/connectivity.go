// Package connectivity reports whether the device can reach the
// backend. The sync core consumes the Monitor interface; the shell
// picks Manual (flag-driven) or Prober (HTTP reachability checks).
package connectivity

import (
	"context"
	"sync"
)

// Monitor emits online/offline state and supports an instantaneous poll.
type Monitor interface {
	// Poll returns the current online state. Callers treat a poll
	// error as online (fail-open): refusing all writes on a monitor
	// glitch is worse than attempting one unnecessary write.
	Poll(ctx context.Context) (bool, error)

	// Subscribe registers fn to be called on every online/offline
	// transition. The returned cancel removes the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}

// Manual is a Monitor whose state is set explicitly. The shell uses it
// when the --offline flag forces a state; tests use it to script
// transitions.
type Manual struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewManual creates a Manual monitor with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online, subs: make(map[int]func(bool))}
}

// Poll implements Monitor.
func (m *Manual) Poll(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, nil
}

// SetOnline updates the state and notifies subscribers on transition.
// Setting the current state again is a no-op.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so they may poll or re-subscribe.
	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe implements Monitor.
func (m *Manual) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
