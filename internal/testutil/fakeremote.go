package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fuelsync/fuelsync/internal/remote"
)

// Call records one write issued against the FakeRemote.
type Call struct {
	Op    string
	Table string
	Rows  []remote.Row
	Patch remote.Row
	Where remote.Row
}

// FakeRemote is a scriptable in-memory remote table store. Server ids
// are sequential decimal strings. Failures and panics can be injected
// per operation kind, and every write is recorded so tests can assert
// exactly which calls reached the backend.
type FakeRemote struct {
	mu     sync.Mutex
	tables map[string][]remote.Row
	nextID int64
	calls  []Call

	failInsert  error
	failUpdate  error
	failDelete  error
	failSelect  error
	panicInsert bool

	// dropColumns are removed from rows returned by Insert, e.g. to
	// simulate a backend that does not echo correlation refs.
	dropColumns map[string]bool
}

// NewFakeRemote creates an empty fake backend.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		tables:      make(map[string][]remote.Row),
		dropColumns: make(map[string]bool),
	}
}

// FailInserts makes subsequent Insert calls return err. Pass nil to
// restore success.
func (f *FakeRemote) FailInserts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failInsert = err
}

// FailUpdates makes subsequent Update calls return err.
func (f *FakeRemote) FailUpdates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdate = err
}

// FailDeletes makes subsequent Delete calls return err.
func (f *FakeRemote) FailDeletes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = err
}

// FailSelects makes subsequent Select calls return err.
func (f *FakeRemote) FailSelects(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSelect = err
}

// PanicOnInsert makes subsequent Insert calls panic, to exercise the
// defensive recover at remote-call boundaries.
func (f *FakeRemote) PanicOnInsert(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicInsert = enabled
}

// DropColumn strips a column from rows echoed by Insert.
func (f *FakeRemote) DropColumn(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropColumns[name] = true
}

// Calls returns a copy of all recorded write calls in order.
func (f *FakeRemote) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// WriteCount returns how many writes (inserts, updates, deletes)
// reached the backend.
func (f *FakeRemote) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Rows returns a copy of the rows currently stored in table.
func (f *FakeRemote) Rows(table string) []remote.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.Row, 0, len(f.tables[table]))
	for _, row := range f.tables[table] {
		out = append(out, cloneRow(row))
	}
	return out
}

// Insert implements remote.Store.
func (f *FakeRemote) Insert(_ context.Context, table string, rows []remote.Row) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicInsert {
		panic("fake remote: insert panic injected")
	}
	f.calls = append(f.calls, Call{Op: "insert", Table: table, Rows: cloneRows(rows)})
	if f.failInsert != nil {
		return nil, f.failInsert
	}

	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		f.nextID++
		stored := cloneRow(row)
		stored["id"] = strconv.FormatInt(f.nextID, 10)
		f.tables[table] = append(f.tables[table], stored)

		echoed := cloneRow(stored)
		for col := range f.dropColumns {
			delete(echoed, col)
		}
		out = append(out, echoed)
	}
	return out, nil
}

// Update implements remote.Store.
func (f *FakeRemote) Update(_ context.Context, table string, patch, where remote.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "update", Table: table, Patch: cloneRow(patch), Where: cloneRow(where)})
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for _, row := range f.tables[table] {
		if matches(row, where) {
			for k, v := range patch {
				row[k] = v
			}
		}
	}
	return nil
}

// Delete implements remote.Store.
func (f *FakeRemote) Delete(_ context.Context, table string, where remote.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "delete", Table: table, Where: cloneRow(where)})
	if f.failDelete != nil {
		return f.failDelete
	}
	kept := f.tables[table][:0]
	for _, row := range f.tables[table] {
		if !matches(row, where) {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	return nil
}

// Select implements remote.Store.
func (f *FakeRemote) Select(_ context.Context, table string, filter remote.Row) ([]remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSelect != nil {
		return nil, f.failSelect
	}
	var out []remote.Row
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			out = append(out, cloneRow(row))
		}
	}
	return out, nil
}

func matches(row, filter remote.Row) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cloneRow(row remote.Row) remote.Row {
	if row == nil {
		return nil
	}
	out := make(remote.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func cloneRows(rows []remote.Row) []remote.Row {
	out := make([]remote.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneRow(row))
	}
	return out
}
