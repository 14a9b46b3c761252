package logbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

// waterName is the discriminator for hydration rows stored in the food
// table: a zero-calorie row with this name is water intake, not food.
const waterName = "Water"

// FoodInput describes one food item to log. DateKey defaults to today.
type FoodInput struct {
	Name     string
	Calories int
	ProteinG float64
	CarbsG   float64
	FatG     float64
	Meal     model.MealType
	DateKey  string
}

func (in FoodInput) validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := validateRange("calories", in.Calories, 0, maxCalories); err != nil {
		return err
	}
	for _, m := range []struct {
		field string
		v     float64
	}{{"protein", in.ProteinG}, {"carbs", in.CarbsG}, {"fat", in.FatG}} {
		if err := validateMacro(m.field, m.v); err != nil {
			return err
		}
	}
	if err := validateMeal(in.Meal); err != nil {
		return err
	}
	return validateDateKey(in.DateKey)
}

// FoodOutcome reports how a food mutation landed. Deferred means the
// write was queued offline and the optimistic entry stands until the
// queue flushes; hosts surface it as a passive, auto-dismissing
// indicator rather than an error.
type FoodOutcome struct {
	Entry    model.FoodEntry
	Deferred bool
}

// AddFood logs one food item. The entry is applied to local state with
// a temp id before any network activity; online writes reconcile the
// temp id to the server id or roll the entry back on rejection,
// offline writes are queued with the entry left standing.
func (e *Engine) AddFood(ctx context.Context, in FoodInput) (FoodOutcome, error) {
	if err := in.validate(); err != nil {
		return FoodOutcome{}, err
	}

	dateKey := e.resolveDateKey(in.DateKey)
	entry := model.FoodEntry{
		ID:       e.ids.TempID(),
		Name:     strings.TrimSpace(in.Name),
		Calories: in.Calories,
		ProteinG: in.ProteinG,
		CarbsG:   in.CarbsG,
		FatG:     in.FatG,
		Meal:     in.Meal,
		DateKey:  dateKey,
		LoggedAt: e.clock.Now(),
	}

	e.mu.Lock()
	day := e.dayLocked(dateKey)
	day.Meals[entry.Meal] = append(day.Meals[entry.Meal], entry)
	day.Totals.Add(entry)
	e.evictLocked(dateKey)
	e.mu.Unlock()
	e.notify(dateKey)

	// The user's local action is real regardless of sync status.
	e.recorder.RecordActivity()

	if !e.checkOnline(ctx) {
		e.queue.Enqueue(ctx, syncqueue.Input{
			Table:   TableFood,
			Kind:    syncqueue.KindInsert,
			Payload: foodRow(entry),
			TempID:  entry.ID,
		})
		slog.Info("logbook: food logged offline, queued",
			"name", entry.Name, "date", dateKey)
		return FoodOutcome{Entry: entry, Deferred: true}, nil
	}

	rows, err := e.insert(ctx, TableFood, []remote.Row{foodRow(entry)})
	serverID := ""
	if err == nil {
		if len(rows) != 1 {
			err = fmt.Errorf("insert returned %d rows, want 1", len(rows))
		} else if serverID = remote.ID(rows[0]); serverID == "" {
			err = fmt.Errorf("insert returned no server id")
		}
	}
	if err != nil {
		// An online rejection means the write was attempted and
		// refused: roll the optimistic entry back entirely.
		e.rollbackFood(dateKey, entry.ID)
		return FoodOutcome{}, fmt.Errorf("log food: %w", err)
	}

	e.reconcileFood(dateKey, entry.ID, serverID)
	entry.ID = serverID
	return FoodOutcome{Entry: entry}, nil
}

// WaterOutcome reports how a water mutation landed.
type WaterOutcome struct {
	// WaterML is the day's running total after the addition.
	WaterML  int
	Deferred bool
}

// AddWater logs water intake in milliliters. Water is stored remotely
// as a zero-calorie discriminator row in the food table; locally it is
// a running aggregate on the day snapshot.
func (e *Engine) AddWater(ctx context.Context, ml int, dateKey string) (WaterOutcome, error) {
	if err := validateRange("water", ml, 1, maxWaterML); err != nil {
		return WaterOutcome{}, err
	}
	if err := validateDateKey(dateKey); err != nil {
		return WaterOutcome{}, err
	}

	dateKey = e.resolveDateKey(dateKey)
	loggedAt := e.clock.Now()

	e.mu.Lock()
	day := e.dayLocked(dateKey)
	day.WaterML += ml
	total := day.WaterML
	e.evictLocked(dateKey)
	e.mu.Unlock()
	e.notify(dateKey)

	e.recorder.RecordActivity()

	row := remote.Row{
		"name":      waterName,
		"calories":  0,
		"water_ml":  ml,
		"date_key":  dateKey,
		"logged_at": loggedAt.Format(timeLayout),
	}

	if !e.checkOnline(ctx) {
		e.queue.Enqueue(ctx, syncqueue.Input{
			Table:   TableFood,
			Kind:    syncqueue.KindInsert,
			Payload: row,
		})
		return WaterOutcome{WaterML: total, Deferred: true}, nil
	}

	if _, err := e.insert(ctx, TableFood, []remote.Row{row}); err != nil {
		e.mu.Lock()
		if day, ok := e.days[dateKey]; ok {
			day.WaterML -= ml
		}
		e.mu.Unlock()
		e.notify(dateKey)
		return WaterOutcome{}, fmt.Errorf("log water: %w", err)
	}
	return WaterOutcome{WaterML: total}, nil
}

// RemoveFood removes an entry from local state and issues (or queues)
// the remote delete. Removal is optimistic and is never rolled back: a
// stray remote row is a lesser harm than an item reappearing after the
// user deleted it, so a remote delete failure is logged only.
func (e *Engine) RemoveFood(ctx context.Context, dateKey, id string) error {
	e.mu.Lock()
	day, ok := e.days[dateKey]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	entry, ok := removeFoodLocked(day, id)
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	e.mu.Unlock()
	e.notify(dateKey)

	e.recorder.RecordActivity()

	// A temp id means the insert itself is still queued; the remote
	// row may not exist yet. The where-scoped delete is harmless
	// either way.
	where := remote.Row{"id": id}
	if !e.checkOnline(ctx) {
		e.queue.Enqueue(ctx, syncqueue.Input{
			Table: TableFood,
			Kind:  syncqueue.KindDelete,
			Where: where,
		})
		return nil
	}
	if err := e.delete(ctx, TableFood, where); err != nil {
		slog.Warn("logbook: remote delete failed, entry stays removed locally",
			"name", entry.Name, "id", id, "error", err)
	}
	return nil
}

// rollbackFood removes the temp-id entry entirely, returning local
// state to its pre-add shape.
func (e *Engine) rollbackFood(dateKey, tempID string) {
	e.mu.Lock()
	if day, ok := e.days[dateKey]; ok {
		removeFoodLocked(day, tempID)
	}
	e.mu.Unlock()
	e.notify(dateKey)
}

// reconcileFood swaps the temp id for the server id in place. The
// entry stays in its meal slot throughout; there is no transient
// absence between a remove and a re-add.
func (e *Engine) reconcileFood(dateKey, tempID, serverID string) {
	e.mu.Lock()
	if day, ok := e.days[dateKey]; ok {
		reconcileFoodLocked(day, tempID, serverID)
	}
	e.mu.Unlock()
	e.notify(dateKey)
}

// removeFoodLocked removes the entry with the given id from whichever
// meal slot holds it, keeping totals in the same transition.
func removeFoodLocked(day *model.DaySnapshot, id string) (model.FoodEntry, bool) {
	for meal, entries := range day.Meals {
		for i, entry := range entries {
			if entry.ID != id {
				continue
			}
			day.Meals[meal] = append(entries[:i:i], entries[i+1:]...)
			day.Totals.Subtract(entry)
			return entry, true
		}
	}
	return model.FoodEntry{}, false
}

// reconcileFoodLocked rewrites a temp id to the server id in place.
func reconcileFoodLocked(day *model.DaySnapshot, tempID, serverID string) bool {
	for meal, entries := range day.Meals {
		for i, entry := range entries {
			if entry.ID == tempID {
				day.Meals[meal][i].ID = serverID
				return true
			}
		}
	}
	return false
}

// timeLayout is the wire format for timestamps in remote rows.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// foodRow converts an entry to its remote row shape. The local id is
// never sent; the server assigns its own.
func foodRow(e model.FoodEntry) remote.Row {
	return remote.Row{
		"name":      e.Name,
		"calories":  e.Calories,
		"protein_g": e.ProteinG,
		"carbs_g":   e.CarbsG,
		"fat_g":     e.FatG,
		"meal":      string(e.Meal),
		"date_key":  e.DateKey,
		"logged_at": e.LoggedAt.Format(timeLayout),
	}
}
