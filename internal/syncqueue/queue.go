// Package syncqueue implements the durable FIFO queue that buffers
// remote writes attempted while offline and replays them when
// connectivity returns.
//
// The queue guarantees:
//   - writes attempted offline are neither lost nor infinitely retried
//   - flush passes never run concurrently; concurrent triggers await
//     the in-flight pass and share its result
//   - operations replay in strict enqueue order, since later writes
//     may depend on earlier ones for the same logical record
//
// The persisted queue is the one shared mutable resource of the sync
// core; all access goes through Queue methods.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/kv"
	"github.com/fuelsync/fuelsync/internal/remote"
)

// StorageKey is the well-known kv key the queue persists under, as a
// JSON array of operations. Loss of the key reads as an empty queue.
const StorageKey = "sync_queue.v1"

const (
	// MaxRetries caps flush attempts per operation. A persistently
	// failing operation must not block the queue forever.
	MaxRetries = 5

	// MaxAge caps operation lifetime. Replaying a day-old mutation
	// against possibly-changed state risks silent corruption, so
	// stale operations are dropped, not retried.
	MaxAge = 24 * time.Hour

	baseBackoff = time.Second
	maxBackoff  = 60 * time.Second
	maxJitter   = time.Second
)

// Clock supplies wall time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Queue is the durable offline operation queue.
//
// Thread-safety: all exported methods are safe for concurrent use.
// Exactly one flush pass executes at a time; callers that trigger a
// flush while one is in flight block until it finishes and receive
// the same Result.
type Queue struct {
	kv      kv.Store
	remote  remote.Store
	monitor connectivity.Monitor

	clock   Clock
	sleep   func(time.Duration)
	jitter  func() time.Duration
	session func() bool

	mu       sync.Mutex
	inflight *flushCall

	// storeMu serializes every read-modify-write of the persisted
	// queue. Enqueue appends and the end-of-pass merge both reload
	// under this lock, so an operation enqueued while a pass is in
	// flight is never clobbered by the pass persisting its outcome.
	storeMu sync.Mutex
}

// flushCall is the shared handle concurrent flush triggers await.
type flushCall struct {
	done   chan struct{}
	result Result
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the wall clock. Used by tests to script
// staleness.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithSleeper overrides the backoff sleep. Tests inject a recorder so
// flushes run instantly.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(q *Queue) { q.sleep = sleep }
}

// WithJitter overrides the backoff jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(q *Queue) { q.jitter = jitter }
}

// WithSession sets the predicate guarding automatic flushes. Without a
// signed-in user there is nothing safe to replay.
func WithSession(active func() bool) Option {
	return func(q *Queue) { q.session = active }
}

// New creates a Queue over the given storage, backend, and monitor.
func New(store kv.Store, backend remote.Store, monitor connectivity.Monitor, opts ...Option) *Queue {
	q := &Queue{
		kv:      store,
		remote:  backend,
		monitor: monitor,
		clock:   SystemClock{},
		sleep:   time.Sleep,
		jitter:  func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
		session: func() bool { return true },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends an operation to persistent storage. It never fails
// observably: a storage error is logged and swallowed, because the
// caller's optimistic state already reflects the change and blocking
// the user on queue durability would be worse than best-effort.
func (q *Queue) Enqueue(ctx context.Context, in Input) {
	op := Operation{
		ID:       uuid.NewString(),
		Table:    in.Table,
		Kind:     in.Kind,
		Payload:  in.Payload,
		Where:    in.Where,
		TempID:   in.TempID,
		QueuedAt: q.clock.Now(),
	}

	q.storeMu.Lock()
	defer q.storeMu.Unlock()

	ops, err := q.load(ctx)
	if err != nil {
		slog.Error("sync queue: load before enqueue failed", "error", err)
		ops = nil
	}
	ops = append(ops, op)
	if err := q.save(ctx, ops); err != nil {
		slog.Error("sync queue: persist enqueue failed",
			"op", op.ID, "table", op.Table, "kind", op.Kind, "error", err)
		return
	}
	slog.Debug("sync queue: operation enqueued",
		"op", op.ID, "table", op.Table, "kind", op.Kind, "pending", len(ops))
}

// Flush replays pending operations in enqueue order and returns the
// pass summary. Safe to call concurrently from multiple triggers
// (reconnect, app foreground, manual retry): if a pass is already in
// flight, Flush blocks until it completes and returns its result
// rather than starting a second pass.
//
// Operations enqueued while a pass is in flight are not picked up by
// that pass; the next trigger replays them.
func (q *Queue) Flush(ctx context.Context) Result {
	q.mu.Lock()
	if call := q.inflight; call != nil {
		q.mu.Unlock()
		<-call.done
		return call.result
	}
	call := &flushCall{done: make(chan struct{})}
	q.inflight = call
	q.mu.Unlock()

	res := q.flushOnce(ctx)

	q.mu.Lock()
	q.inflight = nil
	q.mu.Unlock()
	call.result = res
	close(call.done)
	return res
}

// flushOnce runs a single pass over the queue snapshot. The pass runs
// to completion once started; there is no cancellation of in-flight
// replay. Operations enqueued after the snapshot is taken are outside
// the pass and must survive its final persist untouched.
func (q *Queue) flushOnce(ctx context.Context) Result {
	var res Result

	q.storeMu.Lock()
	ops, err := q.load(ctx)
	q.storeMu.Unlock()
	if err != nil {
		// Abort this pass; the next trigger retries.
		slog.Error("sync queue: load for flush failed", "error", err)
		return res
	}
	if len(ops) == 0 {
		return res
	}

	slog.Info("sync queue: flushing", "pending", len(ops))
	now := q.clock.Now()

	// Per-operation outcomes of this pass, keyed by operation id:
	// present in removed means flushed or dropped, present in retried
	// means it survives with an incremented retry count.
	removed := make(map[string]bool, len(ops))
	retried := make(map[string]Operation)

	for _, op := range ops {
		if now.Sub(op.QueuedAt) > MaxAge {
			res.Dropped++
			removed[op.ID] = true
			slog.Warn("sync queue: dropping stale operation",
				"op", op.ID, "table", op.Table, "queued_at", op.QueuedAt)
			continue
		}
		if op.RetryCount >= MaxRetries {
			res.Dropped++
			removed[op.ID] = true
			slog.Warn("sync queue: dropping operation past retry cap",
				"op", op.ID, "table", op.Table, "retries", op.RetryCount)
			continue
		}
		if op.RetryCount > 0 {
			q.sleep(backoffDelay(op.RetryCount, q.jitter()))
		}

		if err := q.apply(ctx, op); err != nil {
			op.RetryCount++
			if op.RetryCount >= MaxRetries {
				// Final failure: drop now rather than park the
				// operation for one more pass it can never survive.
				res.Dropped++
				removed[op.ID] = true
				slog.Warn("sync queue: dropping operation after final retry",
					"op", op.ID, "table", op.Table, "error", err)
				continue
			}
			res.Failed++
			retried[op.ID] = op
			slog.Warn("sync queue: operation failed, will retry",
				"op", op.ID, "table", op.Table, "retries", op.RetryCount, "error", err)
			continue
		}
		res.Flushed++
		removed[op.ID] = true
	}

	// Persist the outcomes as one merge against current storage, not an
	// overwrite of the snapshot remainder: anything enqueued while the
	// pass ran is still in storage and must be kept for the next pass.
	q.storeMu.Lock()
	if err := q.mergeOutcomes(ctx, removed, retried); err != nil {
		slog.Error("sync queue: persist after flush failed", "error", err)
	}
	q.storeMu.Unlock()

	slog.Info("sync queue: flush complete",
		"flushed", res.Flushed, "failed", res.Failed, "dropped", res.Dropped)
	return res
}

// mergeOutcomes rewrites the persisted queue with one pass's outcomes.
// Stored operations the pass never saw keep their position; survivors
// are replaced by their retry-incremented versions. Caller holds
// storeMu.
func (q *Queue) mergeOutcomes(ctx context.Context, removed map[string]bool, retried map[string]Operation) error {
	stored, err := q.load(ctx)
	if err != nil {
		return err
	}
	merged := make([]Operation, 0, len(stored))
	for _, op := range stored {
		if removed[op.ID] {
			continue
		}
		if updated, ok := retried[op.ID]; ok {
			op = updated
		}
		merged = append(merged, op)
	}
	return q.save(ctx, merged)
}

// apply replays one operation against the remote store. Panics from
// the backend are converted to errors so a single bad write can never
// take down a flush pass.
func (q *Queue) apply(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote %s on %q panicked: %v", op.Kind, op.Table, r)
		}
	}()

	switch op.Kind {
	case KindInsert:
		_, err = q.remote.Insert(ctx, op.Table, []remote.Row{op.Payload})
	case KindUpdate:
		err = q.remote.Update(ctx, op.Table, op.Payload, op.Where)
	case KindDelete:
		err = q.remote.Delete(ctx, op.Table, op.Where)
	default:
		err = fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	return err
}

// CheckOnline polls the connectivity monitor. Fail-open: a monitor
// error reads as online, since refusing all writes on a monitor glitch
// is worse than attempting one unnecessary write.
func (q *Queue) CheckOnline(ctx context.Context) bool {
	online, err := q.monitor.Poll(ctx)
	if err != nil {
		slog.Debug("sync queue: connectivity poll failed, assuming online", "error", err)
		return true
	}
	return online
}

// Len returns the number of pending operations. Storage errors read
// as zero.
func (q *Queue) Len(ctx context.Context) int {
	q.storeMu.Lock()
	defer q.storeMu.Unlock()
	ops, err := q.load(ctx)
	if err != nil {
		slog.Error("sync queue: load for length failed", "error", err)
		return 0
	}
	return len(ops)
}

// Pending returns a copy of the queued operations in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]Operation, error) {
	q.storeMu.Lock()
	defer q.storeMu.Unlock()
	return q.load(ctx)
}

// Clear removes all pending operations. Called on sign-out so pending
// writes never leak across users.
func (q *Queue) Clear(ctx context.Context) error {
	q.storeMu.Lock()
	defer q.storeMu.Unlock()
	if err := q.kv.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	return nil
}

// StartAutoFlush subscribes to the connectivity monitor and flushes
// whenever the device transitions to online while operations are
// pending and a user session exists. Returns the unsubscribe func.
func (q *Queue) StartAutoFlush(ctx context.Context) (cancel func()) {
	return q.monitor.Subscribe(func(online bool) {
		if !online || !q.session() {
			return
		}
		if q.Len(ctx) == 0 {
			return
		}
		go q.Flush(ctx)
	})
}

// backoffDelay computes the exponential backoff before re-attempting a
// previously failed operation: min(1s * 2^retries + jitter, 60s).
func backoffDelay(retries int, jitter time.Duration) time.Duration {
	d := baseBackoff << uint(retries)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	d += jitter
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// load reads the persisted queue. A missing key is an empty queue.
func (q *Queue) load(ctx context.Context) ([]Operation, error) {
	raw, ok, err := q.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ops []Operation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return ops, nil
}

// save persists the queue as a whole batch.
func (q *Queue) save(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		if err := q.kv.Remove(ctx, StorageKey); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}
