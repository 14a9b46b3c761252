package testutil

import "sync"

// FixedIDs returns predetermined temp ids in order.
//
// This enables deterministic reconciliation assertions and golden
// snapshot comparison: tests provide a known sequence and verify exact
// state output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
//
// Example:
//
//	ids := testutil.NewFixedIDs("temp-1-a", "temp-2-b")
//	ids.TempID() // "temp-1-a"
//	ids.TempID() // "temp-2-b"
//	ids.TempID() // panic: all ids exhausted
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// TempID returns the next predetermined id.
//
// Panics if all ids have been consumed. This is a fail-fast approach
// to catch test misconfiguration (the test created more entries than
// expected).
func (g *FixedIDs) TempID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
