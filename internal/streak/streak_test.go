package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/kv"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
	"github.com/fuelsync/fuelsync/internal/testutil"
)

func newTracker(t *testing.T, online bool) (*Tracker, *testutil.FakeRemote, *syncqueue.Queue, *testutil.Clock) {
	t.Helper()
	backend := testutil.NewFakeRemote()
	monitor := connectivity.NewManual(online)
	clock := testutil.NewClock(time.Date(2026, 8, 26, 20, 0, 0, 0, time.UTC))
	queue := syncqueue.New(kv.NewMemory(), backend, monitor,
		syncqueue.WithClock(clock),
		syncqueue.WithSleeper(func(time.Duration) {}),
	)
	return New(backend, queue, monitor, WithClock(clock)), backend, queue, clock
}

func TestRecordActivity_PersistsOncePerDay(t *testing.T) {
	tracker, backend, _, clock := newTracker(t, true)

	tracker.RecordActivity()
	tracker.RecordActivity()
	tracker.RecordActivity()

	rows := backend.Rows(TableActivity)
	require.Len(t, rows, 1, "repeated marks for the same date coalesce")
	assert.Equal(t, "2026-08-26", rows[0]["date_key"])

	clock.Advance(24 * time.Hour)
	tracker.RecordActivity()

	assert.Len(t, backend.Rows(TableActivity), 2)
}

func TestRecordActivity_OfflineQueues(t *testing.T) {
	tracker, backend, queue, _ := newTracker(t, false)
	ctx := context.Background()

	tracker.RecordActivity()

	assert.Zero(t, backend.WriteCount())
	ops, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, TableActivity, ops[0].Table)
	assert.Equal(t, "2026-08-26", ops[0].Payload["date_key"])

	// The queued date still counts toward the summary.
	s, err := tracker.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)
}

func TestRecordActivity_InsertFailureAllowsRetry(t *testing.T) {
	tracker, backend, _, _ := newTracker(t, true)

	backend.FailInserts(errors.New("rejected"))
	tracker.RecordActivity()
	assert.Empty(t, backend.Rows(TableActivity))

	backend.FailInserts(nil)
	tracker.RecordActivity()
	assert.Len(t, backend.Rows(TableActivity), 1, "a failed mark is re-recordable")
}

func TestActiveDates_UnionAndOrder(t *testing.T) {
	tracker, backend, _, _ := newTracker(t, true)
	ctx := context.Background()

	_, err := backend.Insert(ctx, TableActivity, []remote.Row{
		{"date_key": "2026-08-24"},
		{"date_key": "2026-08-20"},
		{"date_key": "not-a-date"},
	})
	require.NoError(t, err)

	tracker.RecordActivity() // adds 2026-08-26 locally and remotely

	dates, err := tracker.ActiveDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-20", "2026-08-24", "2026-08-26"}, dates)
}

func TestSummarize(t *testing.T) {
	today := "2026-08-26"
	tests := []struct {
		name  string
		dates []string
		want  Summary
	}{
		{
			name:  "no activity",
			dates: nil,
			want:  Summary{Level: 1},
		},
		{
			name:  "single day today",
			dates: []string{"2026-08-26"},
			want:  Summary{Current: 1, Longest: 1, XP: 10, Level: 1},
		},
		{
			name:  "run ending yesterday still current",
			dates: []string{"2026-08-23", "2026-08-24", "2026-08-25"},
			want:  Summary{Current: 3, Longest: 3, XP: 30, Level: 1},
		},
		{
			name:  "run ending two days ago is broken",
			dates: []string{"2026-08-22", "2026-08-23", "2026-08-24"},
			want:  Summary{Current: 0, Longest: 3, XP: 30, Level: 1},
		},
		{
			name:  "gap splits runs, longest kept",
			dates: []string{"2026-08-18", "2026-08-19", "2026-08-20", "2026-08-25", "2026-08-26"},
			want:  Summary{Current: 2, Longest: 3, XP: 50, Level: 1},
		},
		{
			name: "ten days crosses a level",
			dates: []string{
				"2026-08-17", "2026-08-18", "2026-08-19", "2026-08-20", "2026-08-21",
				"2026-08-22", "2026-08-23", "2026-08-24", "2026-08-25", "2026-08-26",
			},
			want: Summary{Current: 10, Longest: 10, XP: 100, Level: 2},
		},
		{
			name:  "month boundary is consecutive",
			dates: []string{"2026-07-31", "2026-08-01"},
			want:  Summary{Current: 0, Longest: 2, XP: 20, Level: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(tt.dates, today))
		})
	}
}

func TestSummarize_EndToEnd(t *testing.T) {
	tracker, backend, _, _ := newTracker(t, true)
	ctx := context.Background()

	_, err := backend.Insert(ctx, TableActivity, []remote.Row{
		{"date_key": "2026-08-24"},
		{"date_key": "2026-08-25"},
	})
	require.NoError(t, err)

	tracker.RecordActivity()

	s, err := tracker.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Current: 3, Longest: 3, XP: 30, Level: 1}, s)
}

func TestSummarize_SelectFailure(t *testing.T) {
	tracker, backend, _, _ := newTracker(t, true)

	backend.FailSelects(errors.New("unreachable"))
	_, err := tracker.Summarize(context.Background())
	require.Error(t, err)
}

func TestConsecutive(t *testing.T) {
	assert.True(t, consecutive("2026-08-25", "2026-08-26"))
	assert.True(t, consecutive("2026-02-28", "2026-03-01"))
	assert.True(t, consecutive("2026-12-31", "2027-01-01"))
	assert.False(t, consecutive("2026-08-24", "2026-08-26"))
	assert.False(t, consecutive("2026-08-26", "2026-08-25"))
	assert.False(t, consecutive("garbage", "2026-08-26"))
}
