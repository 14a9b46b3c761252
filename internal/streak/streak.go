// Package streak derives streak continuity, XP, and levels from the
// stream of recorded activity events. It owns the set of active
// calendar dates; the logging engine only ever reports "an activity
// happened" and never mutates streak state directly.
package streak

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

// TableActivity is the remote collection of active calendar dates.
const TableActivity = "activity_days"

// XPPerActivityDay is awarded once per active calendar date.
const XPPerActivityDay = 10

// xpPerLevel is the flat XP cost of each level.
const xpPerLevel = 100

// Clock supplies wall time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder is the contract the logging engine consumes. RecordActivity
// marks today active; it must never block a mutation, never fail
// observably, and never be skipped because of offline state.
type Recorder interface {
	RecordActivity()
}

// Tracker implements Recorder and derives streak/XP summaries from the
// remote set of active dates.
type Tracker struct {
	remote  remote.Store
	queue   *syncqueue.Queue
	monitor connectivity.Monitor
	clock   Clock

	mu   sync.Mutex
	days map[string]bool // dates marked active this session
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// New creates a Tracker persisting activity days through the given
// backend, deferring to the sync queue while offline.
func New(backend remote.Store, queue *syncqueue.Queue, monitor connectivity.Monitor, opts ...Option) *Tracker {
	t := &Tracker{
		remote:  backend,
		queue:   queue,
		monitor: monitor,
		clock:   systemClock{},
		days:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordActivity implements Recorder: it marks today's local calendar
// date active. The local mark is synchronous; the remote write is
// best-effort (direct when online, queued when offline) and repeated
// marks for the same date are coalesced.
func (t *Tracker) RecordActivity() {
	today := model.DayKey(t.clock.Now())

	t.mu.Lock()
	if t.days[today] {
		t.mu.Unlock()
		return
	}
	t.days[today] = true
	t.mu.Unlock()

	ctx := context.Background()
	row := remote.Row{"date_key": today}

	online, err := t.monitor.Poll(ctx)
	if err != nil {
		online = true // fail-open, same policy as the queue
	}
	if !online {
		t.queue.Enqueue(ctx, syncqueue.Input{
			Table:   TableActivity,
			Kind:    syncqueue.KindInsert,
			Payload: row,
		})
		return
	}
	if _, err := t.remote.Insert(ctx, TableActivity, []remote.Row{row}); err != nil {
		// Streak persistence is best-effort; the local mark stands
		// and the date can be re-recorded on a later action.
		slog.Warn("streak: persist activity day failed", "date", today, "error", err)
		t.mu.Lock()
		delete(t.days, today)
		t.mu.Unlock()
	}
}

// ActiveDates returns the union of remotely persisted and
// session-local active dates, deduplicated, in chronological order.
func (t *Tracker) ActiveDates(ctx context.Context) ([]string, error) {
	rows, err := t.remote.Select(ctx, TableActivity, nil)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		if key, _ := row["date_key"].(string); model.ValidDayKey(key) {
			set[key] = true
		}
	}
	t.mu.Lock()
	for key := range t.days {
		set[key] = true
	}
	t.mu.Unlock()

	dates := make([]string, 0, len(set))
	for key := range set {
		dates = append(dates, key)
	}
	sort.Strings(dates)
	return dates, nil
}

// Summary is the derived gamification state.
type Summary struct {
	// Current is the consecutive-day run ending today or yesterday.
	// A run ending yesterday still counts: the user has until
	// midnight to extend it.
	Current int

	// Longest is the longest consecutive-day run on record.
	Longest int

	XP    int
	Level int
}

// Summarize computes the streak/XP summary from the active-date set.
func (t *Tracker) Summarize(ctx context.Context) (Summary, error) {
	dates, err := t.ActiveDates(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(dates, model.DayKey(t.clock.Now())), nil
}

// summarize is the pure calculation over sorted unique day keys.
func summarize(dates []string, today string) Summary {
	s := Summary{
		XP: len(dates) * XPPerActivityDay,
	}
	s.Level = 1 + s.XP/xpPerLevel

	if len(dates) == 0 {
		return s
	}

	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if consecutive(dates[i-1], dates[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	s.Longest = longest

	// The current streak is the trailing run, and only if it reaches
	// today or yesterday; an older run is already broken.
	last := dates[len(dates)-1]
	if last == today || consecutive(last, today) {
		trailing := 1
		for i := len(dates) - 1; i > 0; i-- {
			if !consecutive(dates[i-1], dates[i]) {
				break
			}
			trailing++
		}
		s.Current = trailing
	}
	return s
}

// consecutive reports whether b is the calendar day after a.
func consecutive(a, b string) bool {
	ta, errA := time.Parse(model.DayKeyLayout, a)
	tb, errB := time.Parse(model.DayKeyLayout, b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.AddDate(0, 0, 1).Equal(tb)
}
