package logbook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/kv"
	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
	"github.com/fuelsync/fuelsync/internal/testutil"
)

// recorderSpy counts activity reports.
type recorderSpy struct {
	mu sync.Mutex
	n  int
}

func (r *recorderSpy) RecordActivity() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

func (r *recorderSpy) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// stubBackend overrides Insert with a test-supplied response while
// delegating everything else to success.
type stubBackend struct {
	insert func(table string, rows []remote.Row) ([]remote.Row, error)
}

func (s *stubBackend) Insert(_ context.Context, table string, rows []remote.Row) ([]remote.Row, error) {
	return s.insert(table, rows)
}

func (s *stubBackend) Update(context.Context, string, remote.Row, remote.Row) error { return nil }
func (s *stubBackend) Delete(context.Context, string, remote.Row) error             { return nil }
func (s *stubBackend) Select(context.Context, string, remote.Row) ([]remote.Row, error) {
	return nil, nil
}

type fixture struct {
	engine   *Engine
	backend  *testutil.FakeRemote
	monitor  *connectivity.Manual
	queue    *syncqueue.Queue
	clock    *testutil.Clock
	recorder *recorderSpy
}

func newFixture(t *testing.T, online bool, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		backend:  testutil.NewFakeRemote(),
		monitor:  connectivity.NewManual(online),
		clock:    testutil.NewClock(time.Date(2026, 8, 26, 8, 30, 0, 0, time.UTC)),
		recorder: &recorderSpy{},
	}
	f.queue = syncqueue.New(kv.NewMemory(), f.backend, f.monitor,
		syncqueue.WithClock(f.clock),
		syncqueue.WithSleeper(func(time.Duration) {}),
		syncqueue.WithJitter(func() time.Duration { return 0 }),
	)
	opts = append([]Option{WithClock(f.clock)}, opts...)
	f.engine = New(f.queue, f.backend, f.monitor, f.recorder, opts...)
	return f
}

func breakfastInput(name string, calories int) FoodInput {
	return FoodInput{
		Name:     name,
		Calories: calories,
		ProteinG: 10,
		CarbsG:   20,
		FatG:     5,
		Meal:     model.MealBreakfast,
		DateKey:  "2026-08-26",
	}
}

func TestAddFood_ValidationRejectsBeforeAnyStateChange(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		in   FoodInput
	}{
		{"empty name", FoodInput{Name: "  ", Calories: 100, Meal: model.MealLunch}},
		{"negative calories", FoodInput{Name: "Toast", Calories: -1, Meal: model.MealLunch}},
		{"calories above cap", FoodInput{Name: "Toast", Calories: 10001, Meal: model.MealLunch}},
		{"macro above cap", FoodInput{Name: "Toast", Calories: 100, ProteinG: 1001, Meal: model.MealLunch}},
		{"unknown meal", FoodInput{Name: "Toast", Calories: 100, Meal: "brunch"}},
		{"malformed date", FoodInput{Name: "Toast", Calories: 100, Meal: model.MealLunch, DateKey: "08/26/2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.AddFood(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "want validation error, got %v", err)
		})
	}

	assert.Zero(t, f.backend.WriteCount(), "rejected input must not reach the backend")
	assert.Zero(t, f.recorder.count(), "rejected input is not an activity")
	assert.Empty(t, f.engine.CachedDays(), "rejected input must not touch local state")
}

func TestAddFood_OnlineReconcilesToServerID(t *testing.T) {
	backend := &stubBackend{
		insert: func(_ string, rows []remote.Row) ([]remote.Row, error) {
			out := make([]remote.Row, len(rows))
			for i, row := range rows {
				echoed := remote.Row{"id": "42"}
				for k, v := range row {
					echoed[k] = v
				}
				out[i] = echoed
			}
			return out, nil
		},
	}
	monitor := connectivity.NewManual(true)
	clock := testutil.NewClock(time.Date(2026, 8, 26, 8, 30, 0, 0, time.UTC))
	queue := syncqueue.New(kv.NewMemory(), backend, monitor, syncqueue.WithClock(clock))
	rec := &recorderSpy{}
	engine := New(queue, backend, monitor, rec, WithClock(clock))
	ctx := context.Background()

	out, err := engine.AddFood(ctx, breakfastInput("Oatmeal", 300))

	require.NoError(t, err)
	assert.False(t, out.Deferred)
	assert.Equal(t, "42", out.Entry.ID)

	day := engine.Day("2026-08-26")
	require.Len(t, day.Meals[model.MealBreakfast], 1)
	assert.Equal(t, "42", day.Meals[model.MealBreakfast][0].ID)
	for _, e := range day.Entries() {
		assert.False(t, model.IsTempID(e.ID), "no temp ids may remain after reconciliation")
	}
	assert.Equal(t, 300, day.Totals.Calories)
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, queue.Len(ctx), "an online success enqueues nothing")
}

func TestAddFood_OnlineRejectionRollsBackEntirely(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.backend.FailInserts(errors.New("row rejected"))

	_, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))

	require.Error(t, err)
	day := f.engine.Day("2026-08-26")
	assert.Empty(t, day.Meals[model.MealBreakfast])
	assert.Equal(t, model.MacroTotals{}, day.Totals, "rollback restores totals")
	assert.Zero(t, f.queue.Len(ctx), "an online rejection is not retried via the queue")
	assert.Equal(t, 1, f.recorder.count(), "the local action happened even though sync failed")
}

func TestAddFood_OfflineQueuesAndEntryStands(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	out, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))

	require.NoError(t, err)
	assert.True(t, out.Deferred)
	assert.True(t, model.IsTempID(out.Entry.ID))

	day := f.engine.Day("2026-08-26")
	require.Len(t, day.Meals[model.MealBreakfast], 1)
	assert.Equal(t, out.Entry.ID, day.Meals[model.MealBreakfast][0].ID)
	assert.Equal(t, 300, day.Totals.Calories)

	ops, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, TableFood, ops[0].Table)
	assert.Equal(t, syncqueue.KindInsert, ops[0].Kind)
	assert.Equal(t, out.Entry.ID, ops[0].TempID)
	assert.Equal(t, "Oatmeal", ops[0].Payload["name"])
	assert.Zero(t, f.backend.WriteCount(), "offline adds must not touch the network")
}

func TestAddFood_PanickingBackendRollsBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.backend.PanicOnInsert(true)

	_, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))

	require.Error(t, err)
	assert.Empty(t, f.engine.Day("2026-08-26").Meals[model.MealBreakfast])
}

func TestAddFood_MissingServerIDRollsBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.backend.DropColumn("id")

	_, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))

	require.Error(t, err)
	assert.Empty(t, f.engine.Day("2026-08-26").Meals[model.MealBreakfast])
}

func TestAddFood_DefaultsDateToToday(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	in := breakfastInput("Oatmeal", 300)
	in.DateKey = ""
	out, err := f.engine.AddFood(ctx, in)

	require.NoError(t, err)
	assert.Equal(t, "2026-08-26", out.Entry.DateKey)
	assert.Len(t, f.engine.Day("2026-08-26").Meals[model.MealBreakfast], 1)
}

func TestAddWater_AccumulatesPerDay(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.AddWater(ctx, 250, "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 250, out.WaterML)

	out, err = f.engine.AddWater(ctx, 500, "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 750, out.WaterML)

	rows := f.backend.Rows(TableFood)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "Water", row["name"])
		assert.Equal(t, 0, row["calories"])
	}
	assert.Equal(t, 750, f.engine.Day("2026-08-26").WaterML)
	assert.Zero(t, f.engine.Day("2026-08-26").Totals.Calories, "water never counts as calories")
}

func TestAddWater_RejectsOutOfRange(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for _, ml := range []int{0, -10, 10001} {
		_, err := f.engine.AddWater(ctx, ml, "2026-08-26")
		require.Error(t, err, "ml=%d", ml)
		assert.True(t, IsValidationError(err))
	}
}

func TestAddWater_OnlineFailureRevertsTotal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.engine.AddWater(ctx, 250, "2026-08-26")
	require.NoError(t, err)

	f.backend.FailInserts(errors.New("rejected"))
	_, err = f.engine.AddWater(ctx, 500, "2026-08-26")

	require.Error(t, err)
	assert.Equal(t, 250, f.engine.Day("2026-08-26").WaterML)
}

func TestAddWater_OfflineDeferred(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	out, err := f.engine.AddWater(ctx, 250, "2026-08-26")

	require.NoError(t, err)
	assert.True(t, out.Deferred)
	assert.Equal(t, 250, f.engine.Day("2026-08-26").WaterML)
	assert.Equal(t, 1, f.queue.Len(ctx))
}

func TestRemoveFood_RemovesLocallyAndRemotely(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveFood(ctx, "2026-08-26", out.Entry.ID))

	day := f.engine.Day("2026-08-26")
	assert.Empty(t, day.Meals[model.MealBreakfast])
	assert.Equal(t, model.MacroTotals{}, day.Totals)

	calls := f.backend.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "delete", calls[1].Op)
	assert.Equal(t, remote.Row{"id": out.Entry.ID}, calls[1].Where)
}

func TestRemoveFood_UnknownEntry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	err := f.engine.RemoveFood(ctx, "2026-08-26", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)
	err = f.engine.RemoveFood(ctx, "2026-08-26", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveFood_RemoteFailureNeverRestores(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)

	f.backend.FailDeletes(errors.New("rejected"))
	err = f.engine.RemoveFood(ctx, "2026-08-26", out.Entry.ID)

	require.NoError(t, err, "a failed remote delete is not surfaced")
	assert.Empty(t, f.engine.Day("2026-08-26").Meals[model.MealBreakfast],
		"the entry must not reappear after the user removed it")
}

func TestRemoveFood_OfflineQueuesDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	out, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)
	require.NoError(t, f.engine.RemoveFood(ctx, "2026-08-26", out.Entry.ID))

	ops, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2, "insert then delete, in order")
	assert.Equal(t, syncqueue.KindInsert, ops[0].Kind)
	assert.Equal(t, syncqueue.KindDelete, ops[1].Kind)
	assert.Equal(t, remote.Row{"id": out.Entry.ID}, ops[1].Where)
}

func TestAddExercise_Online(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.AddExercise(ctx, ExerciseInput{
		Name:           "Running",
		DurationMin:    30,
		CaloriesBurned: 320,
		DateKey:        "2026-08-26",
	})

	require.NoError(t, err)
	assert.False(t, out.Deferred)
	assert.False(t, model.IsTempID(out.Entry.ID))

	day := f.engine.Day("2026-08-26")
	require.Len(t, day.Exercises, 1)
	assert.Equal(t, 320, day.CaloriesBurned)
}

func TestAddExercise_OnlineFailureRollsBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.backend.FailInserts(errors.New("rejected"))
	_, err := f.engine.AddExercise(ctx, ExerciseInput{
		Name: "Running", DurationMin: 30, CaloriesBurned: 320, DateKey: "2026-08-26",
	})

	require.Error(t, err)
	day := f.engine.Day("2026-08-26")
	assert.Empty(t, day.Exercises)
	assert.Zero(t, day.CaloriesBurned)
}

func TestAddExercise_OfflineDeferred(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	out, err := f.engine.AddExercise(ctx, ExerciseInput{
		Name: "Running", DurationMin: 30, CaloriesBurned: 320, DateKey: "2026-08-26",
	})

	require.NoError(t, err)
	assert.True(t, out.Deferred)
	assert.True(t, model.IsTempID(out.Entry.ID))

	ops, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, TableExercise, ops[0].Table)
	assert.Equal(t, out.Entry.ID, ops[0].TempID)
}

func TestRemoveExercise(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.engine.AddExercise(ctx, ExerciseInput{
		Name: "Running", DurationMin: 30, CaloriesBurned: 320, DateKey: "2026-08-26",
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveExercise(ctx, "2026-08-26", out.Entry.ID))
	day := f.engine.Day("2026-08-26")
	assert.Empty(t, day.Exercises)
	assert.Zero(t, day.CaloriesBurned)

	assert.ErrorIs(t, f.engine.RemoveExercise(ctx, "2026-08-26", out.Entry.ID), ErrNotFound)
}

func TestDayCache_EvictsOldestBeyondBound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for day := 1; day <= 16; day++ {
		in := breakfastInput("Oatmeal", 100)
		in.DateKey = fmt.Sprintf("2026-08-%02d", day)
		_, err := f.engine.AddFood(ctx, in)
		require.NoError(t, err)
	}

	cached := f.engine.CachedDays()
	require.Len(t, cached, MaxCachedDays)
	assert.Equal(t, "2026-08-03", cached[0], "the two oldest days were evicted")
	assert.Equal(t, "2026-08-16", cached[len(cached)-1])

	assert.Empty(t, f.engine.Day("2026-08-01").Entries(), "evicted day reads as empty")
	assert.Equal(t, 16, f.queue.Len(ctx), "eviction never touches the queue")
}

func TestDayCache_NeverEvictsJustTouchedDay(t *testing.T) {
	f := newFixture(t, false, WithMaxCachedDays(3))
	ctx := context.Background()

	for _, key := range []string{"2026-08-10", "2026-08-11", "2026-08-12"} {
		in := breakfastInput("Oatmeal", 100)
		in.DateKey = key
		_, err := f.engine.AddFood(ctx, in)
		require.NoError(t, err)
	}

	// Touch a day older than everything cached: it must survive its own
	// eviction pass even though it sorts first.
	in := breakfastInput("Oatmeal", 100)
	in.DateKey = "2026-08-01"
	_, err := f.engine.AddFood(ctx, in)
	require.NoError(t, err)

	cached := f.engine.CachedDays()
	assert.Contains(t, cached, "2026-08-01")
	assert.Len(t, cached, 3)
}

func TestSubscribe_NotifiesPerTransition(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	cancel := f.engine.Subscribe(func(dateKey string) {
		mu.Lock()
		seen = append(seen, dateKey)
		mu.Unlock()
	})

	_, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, "2026-08-26", seen[0])
	mu.Unlock()

	cancel()
	_, err = f.engine.AddWater(ctx, 250, "2026-08-26")
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, seen, 1, "cancelled subscriber receives nothing")
	mu.Unlock()
}

func TestTotals_AlwaysMatchRecompute(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out1, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)
	in := breakfastInput("Chicken", 450)
	in.Meal = model.MealDinner
	_, err = f.engine.AddFood(ctx, in)
	require.NoError(t, err)
	_, err = f.engine.AddExercise(ctx, ExerciseInput{
		Name: "Running", DurationMin: 30, CaloriesBurned: 320, DateKey: "2026-08-26",
	})
	require.NoError(t, err)
	require.NoError(t, f.engine.RemoveFood(ctx, "2026-08-26", out1.Entry.ID))

	day := f.engine.Day("2026-08-26")
	totals, burned := model.RecomputeTotals(day)
	assert.Equal(t, totals, day.Totals)
	assert.Equal(t, burned, day.CaloriesBurned)
}

func TestOfflineFlow_FlushReplaysQueuedWrites(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.engine.AddFood(ctx, breakfastInput("Oatmeal", 300))
	require.NoError(t, err)
	_, err = f.engine.AddWater(ctx, 250, "2026-08-26")
	require.NoError(t, err)

	f.monitor.SetOnline(true)
	res := f.queue.Flush(ctx)

	assert.Equal(t, syncqueue.Result{Flushed: 2}, res)
	assert.Len(t, f.backend.Rows(TableFood), 2)
	assert.Zero(t, f.queue.Len(ctx))
}
