// Package logbook implements the optimistic logging engine: every
// write-action lands in local day-aggregate state before any network
// activity, then either reconciles against the server-assigned id,
// rolls back on an online rejection, or stands as a queued local-only
// record while offline.
//
// The engine owns a bounded cache of day snapshots keyed by canonical
// YYYY-MM-DD day keys. Hosts observe changes through Subscribe rather
// than any implicit re-render machinery.
package logbook

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

// Remote tables the engine writes against.
const (
	TableFood     = "food_logs"
	TableExercise = "exercise_logs"
)

// MaxCachedDays bounds the day-snapshot cache. Date navigation is
// bounded in practice and old days are cheap to refetch, so eviction
// is by date recency, not access recency.
const MaxCachedDays = 14

// Clock supplies wall time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IDGenerator produces client-side temporary ids, unique within a
// session, of the shape temp-<epoch-ms>-<base36 random>.
type IDGenerator interface {
	TempID() string
}

// SessionIDs is the production IDGenerator.
type SessionIDs struct {
	clock Clock
}

// NewSessionIDs creates a generator stamping ids from the given clock.
func NewSessionIDs(clock Clock) *SessionIDs {
	if clock == nil {
		clock = systemClock{}
	}
	return &SessionIDs{clock: clock}
}

// TempID implements IDGenerator.
func (g *SessionIDs) TempID() string {
	return fmt.Sprintf("%s%d-%s",
		model.TempIDPrefix,
		g.clock.Now().UnixMilli(),
		strconv.FormatUint(rand.Uint64()&0xffffffffff, 36))
}

// ActivityRecorder is the streak/XP consumer contract. The engine
// reports that an activity happened after every successful or queued
// mutation; it never touches streak state directly. The call is
// unconditional and synchronous relative to the optimistic mutation,
// never skipped because of offline state.
type ActivityRecorder interface {
	RecordActivity()
}

// NopRecorder discards activity reports.
type NopRecorder struct{}

// RecordActivity implements ActivityRecorder.
func (NopRecorder) RecordActivity() {}

// Engine applies logging actions optimistically and keeps local state
// eventually consistent with the remote store.
//
// Thread-safety: all exported methods are safe for concurrent use. The
// cache mutates only under the engine lock, so reconciling an id is an
// in-place slot update with no transient absence of the entry.
type Engine struct {
	queue    *syncqueue.Queue
	remote   remote.Store
	monitor  connectivity.Monitor
	recorder ActivityRecorder

	clock   Clock
	ids     IDGenerator
	maxDays int

	mu   sync.Mutex
	days map[string]*model.DaySnapshot

	subMu   sync.Mutex
	subs    map[int]func(dateKey string)
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides the temp-id source. Tests use a fixed
// sequence for deterministic reconciliation assertions.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithMaxCachedDays overrides the day cache bound.
func WithMaxCachedDays(n int) Option {
	return func(e *Engine) { e.maxDays = n }
}

// New creates an Engine. All collaborators are injected; there is no
// ambient global state.
func New(
	queue *syncqueue.Queue,
	backend remote.Store,
	monitor connectivity.Monitor,
	recorder ActivityRecorder,
	opts ...Option,
) *Engine {
	e := &Engine{
		queue:    queue,
		remote:   backend,
		monitor:  monitor,
		recorder: recorder,
		clock:    systemClock{},
		maxDays:  MaxCachedDays,
		days:     make(map[string]*model.DaySnapshot),
		subs:     make(map[int]func(string)),
	}
	if e.recorder == nil {
		e.recorder = NopRecorder{}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = NewSessionIDs(e.clock)
	}
	return e
}

// Day returns a copy of the snapshot for dateKey, or an empty snapshot
// if the day is not cached. Callers wanting fresh remote state use
// LoadDay.
func (e *Engine) Day(dateKey string) *model.DaySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if day, ok := e.days[dateKey]; ok {
		return day.Clone()
	}
	return model.NewDaySnapshot(dateKey)
}

// CachedDays returns the cached day keys in chronological order.
func (e *Engine) CachedDays() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.days))
	for k := range e.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn to be called with the day key after every
// state transition touching that day. Replaces the source pattern's
// implicit re-render subscription. The returned cancel removes the
// subscription.
func (e *Engine) Subscribe(fn func(dateKey string)) (cancel func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// notify fans a day-changed event out to subscribers, outside any
// engine lock so callbacks may read state.
func (e *Engine) notify(dateKey string) {
	e.subMu.Lock()
	fns := make([]func(string), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(dateKey)
	}
}

// dayLocked returns the cached snapshot for dateKey, creating it if
// absent. Caller holds e.mu.
func (e *Engine) dayLocked(dateKey string) *model.DaySnapshot {
	day, ok := e.days[dateKey]
	if !ok {
		day = model.NewDaySnapshot(dateKey)
		e.days[dateKey] = day
	}
	return day
}

// evictLocked drops the oldest cached days until the bound holds.
// Day keys sort chronologically, so lexicographic order is eviction
// order. The key just touched is never evicted. Caller holds e.mu.
func (e *Engine) evictLocked(keep string) {
	if len(e.days) <= e.maxDays {
		return
	}
	keys := make([]string, 0, len(e.days))
	for k := range e.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.days) <= e.maxDays {
			return
		}
		if k == keep {
			continue
		}
		delete(e.days, k)
		slog.Debug("logbook: evicted cached day", "date", k)
	}
}

// checkOnline polls the monitor, failing open like the queue does.
func (e *Engine) checkOnline(ctx context.Context) bool {
	online, err := e.monitor.Poll(ctx)
	if err != nil {
		slog.Debug("logbook: connectivity poll failed, assuming online", "error", err)
		return true
	}
	return online
}

// insert is the guarded remote insert boundary. A panicking backend is
// converted to an error so a failed write can never crash the logging
// flow.
func (e *Engine) insert(ctx context.Context, table string, rows []remote.Row) (out []remote.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("remote insert on %q panicked: %v", table, r)
		}
	}()
	return e.remote.Insert(ctx, table, rows)
}

// delete is the guarded remote delete boundary.
func (e *Engine) delete(ctx context.Context, table string, where remote.Row) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote delete on %q panicked: %v", table, r)
		}
	}()
	return e.remote.Delete(ctx, table, where)
}

// sel is the guarded remote select boundary.
func (e *Engine) sel(ctx context.Context, table string, filter remote.Row) (out []remote.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("remote select on %q panicked: %v", table, r)
		}
	}()
	return e.remote.Select(ctx, table, filter)
}

// resolveDateKey defaults an empty date key to today.
func (e *Engine) resolveDateKey(dateKey string) string {
	if dateKey == "" {
		return model.DayKey(e.clock.Now())
	}
	return dateKey
}
