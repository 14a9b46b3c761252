package logbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

func seedSourceDay(t *testing.T, f *fixture, dateKey string) []model.FoodEntry {
	t.Helper()
	ctx := context.Background()

	foods := []FoodInput{
		{Name: "Oatmeal", Calories: 300, ProteinG: 10, Meal: model.MealBreakfast, DateKey: dateKey},
		{Name: "Coffee", Calories: 5, Meal: model.MealBreakfast, DateKey: dateKey},
		{Name: "Chicken", Calories: 450, ProteinG: 40, Meal: model.MealDinner, DateKey: dateKey},
	}
	out := make([]model.FoodEntry, 0, len(foods))
	for _, in := range foods {
		res, err := f.engine.AddFood(ctx, in)
		require.NoError(t, err)
		out = append(out, res.Entry)
	}
	return out
}

func TestCopyMeal_ReconcilesByClientRef(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")

	out, err := f.engine.CopyMeal(ctx, "2026-08-25", "2026-08-26", model.MealBreakfast)

	require.NoError(t, err)
	assert.False(t, out.Deferred)
	assert.True(t, out.Reconciled)
	require.Len(t, out.Entries, 2, "only the picked meal is copied")
	for _, e := range out.Entries {
		assert.False(t, model.IsTempID(e.ID), "copied entry %q must carry a server id", e.Name)
		assert.Equal(t, "2026-08-26", e.DateKey)
	}

	day := f.engine.Day("2026-08-26")
	require.Len(t, day.Meals[model.MealBreakfast], 2)
	assert.Empty(t, day.Meals[model.MealDinner], "dinner was not part of the copied meal")
	assert.Equal(t, 305, day.Totals.Calories)

	// One batched insert, not one round trip per row.
	var inserts int
	for _, call := range f.backend.Calls() {
		if call.Op == "insert" && len(call.Rows) == 2 {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts, "copies ship as a single batch")
}

func TestCopyDay_CopiesEveryMealSlot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")

	out, err := f.engine.CopyDay(ctx, "2026-08-25", "2026-08-26")

	require.NoError(t, err)
	require.Len(t, out.Entries, 3)

	day := f.engine.Day("2026-08-26")
	assert.Len(t, day.Meals[model.MealBreakfast], 2)
	assert.Len(t, day.Meals[model.MealDinner], 1, "entries keep their meal slot")
	assert.Equal(t, 755, day.Totals.Calories)

	totals, _ := model.RecomputeTotals(day)
	assert.Equal(t, totals, day.Totals)
}

func TestCopyDay_PositionalFallbackWithoutClientRef(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")

	// The backend does not echo the correlation column; reconciliation
	// falls back to request order.
	f.backend.DropColumn("client_ref")

	out, err := f.engine.CopyDay(ctx, "2026-08-25", "2026-08-26")

	require.NoError(t, err)
	assert.True(t, out.Reconciled)
	for _, e := range out.Entries {
		assert.False(t, model.IsTempID(e.ID))
	}
	for _, e := range f.engine.Day("2026-08-26").Entries() {
		assert.False(t, model.IsTempID(e.ID))
	}
}

func TestCopy_OfflineQueuesPerEntryInOrder(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")
	before := f.queue.Len(ctx)

	out, err := f.engine.CopyDay(ctx, "2026-08-25", "2026-08-26")

	require.NoError(t, err)
	assert.True(t, out.Deferred)
	for _, e := range out.Entries {
		assert.True(t, model.IsTempID(e.ID), "offline copies keep their temp ids")
	}

	ops, err := f.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, before+3)
	queued := ops[before:]
	assert.Equal(t, "Oatmeal", queued[0].Payload["name"])
	assert.Equal(t, "Coffee", queued[1].Payload["name"])
	assert.Equal(t, "Chicken", queued[2].Payload["name"])
	for i, op := range queued {
		assert.Equal(t, syncqueue.KindInsert, op.Kind)
		assert.Equal(t, out.Entries[i].ID, op.TempID)
	}
}

func TestCopy_BatchFailureLeavesEntriesOptimistic(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")
	f.backend.FailInserts(errors.New("batch rejected"))

	out, err := f.engine.CopyDay(ctx, "2026-08-25", "2026-08-26")

	require.NoError(t, err, "a failed batch is not an error; a refresh reconciles later")
	assert.False(t, out.Reconciled)
	assert.False(t, out.Deferred)
	for _, e := range out.Entries {
		assert.True(t, model.IsTempID(e.ID))
	}

	day := f.engine.Day("2026-08-26")
	assert.Len(t, day.Entries(), 3, "optimistic copies stand after a batch failure")
}

func TestCopy_RejectsInvalidArguments(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	seedSourceDay(t, f, "2026-08-25")

	_, err := f.engine.CopyDay(ctx, "2026-08-25", "2026-08-25")
	require.Error(t, err)
	assert.True(t, IsValidationError(err), "same-day copy is rejected")

	_, err = f.engine.CopyDay(ctx, "not-a-date", "2026-08-26")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = f.engine.CopyMeal(ctx, "2026-08-25", "2026-08-26", "brunch")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = f.engine.CopyDay(ctx, "2026-08-24", "2026-08-26")
	require.Error(t, err, "copying an empty day is an error")
	assert.False(t, IsValidationError(err))
}
