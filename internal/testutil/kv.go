package testutil

import (
	"context"
	"sync"

	"github.com/fuelsync/fuelsync/internal/kv"
)

// FlakyKV wraps a kv.Store with injectable failures, used to verify
// that storage errors around the queue are swallowed, not propagated.
type FlakyKV struct {
	Inner kv.Store

	mu         sync.Mutex
	failGet    error
	failSet    error
	failRemove error
}

// NewFlakyKV wraps inner with no failures armed.
func NewFlakyKV(inner kv.Store) *FlakyKV {
	return &FlakyKV{Inner: inner}
}

// FailGets arms (or with nil, disarms) Get failures.
func (f *FlakyKV) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = err
}

// FailSets arms (or with nil, disarms) Set failures.
func (f *FlakyKV) FailSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet = err
}

// FailRemoves arms (or with nil, disarms) Remove failures.
func (f *FlakyKV) FailRemoves(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRemove = err
}

// Get implements kv.Store.
func (f *FlakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	err := f.failGet
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Inner.Get(ctx, key)
}

// Set implements kv.Store.
func (f *FlakyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	err := f.failSet
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Inner.Set(ctx, key, value)
}

// Remove implements kv.Store.
func (f *FlakyKV) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	err := f.failRemove
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Inner.Remove(ctx, key)
}
