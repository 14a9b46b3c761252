package logbook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

// clientRefKey is the correlation column attached to every row of a
// batch insert. Backends that echo it enable exact reconciliation;
// when it is not echoed, reconciliation falls back to positional
// correspondence, which assumes the backend preserves request order.
const clientRefKey = "client_ref"

// CopyOutcome reports how a batch copy landed.
type CopyOutcome struct {
	// Entries are the copied entries as currently known: reconciled
	// server ids on full success, temp ids otherwise.
	Entries []model.FoodEntry

	// Deferred means the copies were queued offline.
	Deferred bool

	// Reconciled is false when the batch insert failed and the
	// entries were left optimistic. A later LoadDay refresh replaces
	// them with authoritative rows.
	Reconciled bool
}

// CopyMeal copies every entry in one meal slot of fromKey onto toKey.
// All copies are applied optimistically first, then written as a
// single batched insert to minimize round trips.
func (e *Engine) CopyMeal(ctx context.Context, fromKey, toKey string, meal model.MealType) (CopyOutcome, error) {
	if err := validateMeal(meal); err != nil {
		return CopyOutcome{}, err
	}
	return e.copyEntries(ctx, fromKey, toKey, func(day *model.DaySnapshot) []model.FoodEntry {
		return append([]model.FoodEntry(nil), day.Meals[meal]...)
	})
}

// CopyDay copies every food entry of fromKey onto toKey, each keeping
// its meal slot.
func (e *Engine) CopyDay(ctx context.Context, fromKey, toKey string) (CopyOutcome, error) {
	return e.copyEntries(ctx, fromKey, toKey, func(day *model.DaySnapshot) []model.FoodEntry {
		return day.Entries()
	})
}

func (e *Engine) copyEntries(
	ctx context.Context,
	fromKey, toKey string,
	pick func(*model.DaySnapshot) []model.FoodEntry,
) (CopyOutcome, error) {
	for _, key := range []string{fromKey, toKey} {
		if !model.ValidDayKey(key) {
			return CopyOutcome{}, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
	}
	if fromKey == toKey {
		return CopyOutcome{}, &ValidationError{Field: "date", Message: "source and target day are the same"}
	}

	source := e.Day(fromKey)
	picked := pick(source)
	if len(picked) == 0 {
		return CopyOutcome{}, fmt.Errorf("copy: no entries on %s", fromKey)
	}

	// Build the full optimistic batch first: fresh temp ids, fresh
	// correlation refs, target day key.
	now := e.clock.Now()
	copies := make([]model.FoodEntry, len(picked))
	rows := make([]remote.Row, len(picked))
	refToTemp := make(map[string]string, len(picked))
	for i, src := range picked {
		c := src
		c.ID = e.ids.TempID()
		c.DateKey = toKey
		c.LoggedAt = now
		copies[i] = c

		ref := uuid.NewString()
		refToTemp[ref] = c.ID
		row := foodRow(c)
		row[clientRefKey] = ref
		rows[i] = row
	}

	// Apply all copies in one state transition.
	e.mu.Lock()
	day := e.dayLocked(toKey)
	for _, c := range copies {
		day.Meals[c.Meal] = append(day.Meals[c.Meal], c)
		day.Totals.Add(c)
	}
	e.evictLocked(toKey)
	e.mu.Unlock()
	e.notify(toKey)

	e.recorder.RecordActivity()

	if !e.checkOnline(ctx) {
		// Queued per row; FIFO flush preserves their order.
		for i, row := range rows {
			e.queue.Enqueue(ctx, syncqueue.Input{
				Table:   TableFood,
				Kind:    syncqueue.KindInsert,
				Payload: row,
				TempID:  copies[i].ID,
			})
		}
		return CopyOutcome{Entries: copies, Deferred: true}, nil
	}

	returned, err := e.insert(ctx, TableFood, rows)
	if err != nil {
		// Partial-success batches favor keeping user-visible data
		// over strict consistency: leave the entries optimistic and
		// let a later refresh reconcile.
		slog.Warn("logbook: batch insert failed, entries left unreconciled",
			"count", len(rows), "target", toKey, "error", err)
		return CopyOutcome{Entries: copies}, nil
	}

	reconciled := e.reconcileBatch(toKey, copies, returned, refToTemp)
	return CopyOutcome{Entries: reconciled, Reconciled: true}, nil
}

// reconcileBatch maps returned rows back to their optimistic entries,
// preferring the echoed client_ref correlation id and falling back to
// positional correspondence.
func (e *Engine) reconcileBatch(
	dateKey string,
	copies []model.FoodEntry,
	returned []remote.Row,
	refToTemp map[string]string,
) []model.FoodEntry {
	out := append([]model.FoodEntry(nil), copies...)

	e.mu.Lock()
	day, ok := e.days[dateKey]
	if ok {
		for i, row := range returned {
			serverID := remote.ID(row)
			if serverID == "" {
				continue
			}
			tempID := ""
			if ref, _ := row[clientRefKey].(string); ref != "" {
				tempID = refToTemp[ref]
			}
			if tempID == "" && i < len(copies) {
				tempID = copies[i].ID
			}
			if tempID == "" {
				continue
			}
			if reconcileFoodLocked(day, tempID, serverID) {
				for j := range out {
					if out[j].ID == tempID {
						out[j].ID = serverID
						break
					}
				}
			}
		}
	}
	e.mu.Unlock()
	e.notify(dateKey)
	return out
}
