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

// ExerciseInput describes one activity session to log.
type ExerciseInput struct {
	Name           string
	DurationMin    int
	CaloriesBurned int
	DateKey        string
}

func (in ExerciseInput) validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := validateRange("duration", in.DurationMin, 1, maxDurationMin); err != nil {
		return err
	}
	if err := validateRange("calories burned", in.CaloriesBurned, 0, maxBurnedCalories); err != nil {
		return err
	}
	return validateDateKey(in.DateKey)
}

// ExerciseOutcome reports how an exercise mutation landed.
type ExerciseOutcome struct {
	Entry    model.ExerciseEntry
	Deferred bool
}

// AddExercise logs one activity session with the same optimistic
// contract as AddFood.
func (e *Engine) AddExercise(ctx context.Context, in ExerciseInput) (ExerciseOutcome, error) {
	if err := in.validate(); err != nil {
		return ExerciseOutcome{}, err
	}

	dateKey := e.resolveDateKey(in.DateKey)
	entry := model.ExerciseEntry{
		ID:             e.ids.TempID(),
		Name:           strings.TrimSpace(in.Name),
		DurationMin:    in.DurationMin,
		CaloriesBurned: in.CaloriesBurned,
		DateKey:        dateKey,
		LoggedAt:       e.clock.Now(),
	}

	e.mu.Lock()
	day := e.dayLocked(dateKey)
	day.Exercises = append(day.Exercises, entry)
	day.CaloriesBurned += entry.CaloriesBurned
	e.evictLocked(dateKey)
	e.mu.Unlock()
	e.notify(dateKey)

	e.recorder.RecordActivity()

	if !e.checkOnline(ctx) {
		e.queue.Enqueue(ctx, syncqueue.Input{
			Table:   TableExercise,
			Kind:    syncqueue.KindInsert,
			Payload: exerciseRow(entry),
			TempID:  entry.ID,
		})
		slog.Info("logbook: exercise logged offline, queued",
			"name", entry.Name, "date", dateKey)
		return ExerciseOutcome{Entry: entry, Deferred: true}, nil
	}

	rows, err := e.insert(ctx, TableExercise, []remote.Row{exerciseRow(entry)})
	serverID := ""
	if err == nil {
		if len(rows) != 1 {
			err = fmt.Errorf("insert returned %d rows, want 1", len(rows))
		} else if serverID = remote.ID(rows[0]); serverID == "" {
			err = fmt.Errorf("insert returned no server id")
		}
	}
	if err != nil {
		e.mu.Lock()
		if day, ok := e.days[dateKey]; ok {
			removeExerciseLocked(day, entry.ID)
		}
		e.mu.Unlock()
		e.notify(dateKey)
		return ExerciseOutcome{}, fmt.Errorf("log exercise: %w", err)
	}

	e.mu.Lock()
	if day, ok := e.days[dateKey]; ok {
		for i := range day.Exercises {
			if day.Exercises[i].ID == entry.ID {
				day.Exercises[i].ID = serverID
				break
			}
		}
	}
	e.mu.Unlock()
	e.notify(dateKey)

	entry.ID = serverID
	return ExerciseOutcome{Entry: entry}, nil
}

// RemoveExercise mirrors RemoveFood's removal contract: optimistic,
// never rolled back, remote delete failures logged only.
func (e *Engine) RemoveExercise(ctx context.Context, dateKey, id string) error {
	e.mu.Lock()
	day, ok := e.days[dateKey]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	entry, ok := removeExerciseLocked(day, id)
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	e.mu.Unlock()
	e.notify(dateKey)

	e.recorder.RecordActivity()

	where := remote.Row{"id": id}
	if !e.checkOnline(ctx) {
		e.queue.Enqueue(ctx, syncqueue.Input{
			Table: TableExercise,
			Kind:  syncqueue.KindDelete,
			Where: where,
		})
		return nil
	}
	if err := e.delete(ctx, TableExercise, where); err != nil {
		slog.Warn("logbook: remote delete failed, entry stays removed locally",
			"name", entry.Name, "id", id, "error", err)
	}
	return nil
}

func removeExerciseLocked(day *model.DaySnapshot, id string) (model.ExerciseEntry, bool) {
	for i, entry := range day.Exercises {
		if entry.ID != id {
			continue
		}
		day.Exercises = append(day.Exercises[:i:i], day.Exercises[i+1:]...)
		day.CaloriesBurned -= entry.CaloriesBurned
		return entry, true
	}
	return model.ExerciseEntry{}, false
}

func exerciseRow(e model.ExerciseEntry) remote.Row {
	return remote.Row{
		"name":            e.Name,
		"duration_min":    e.DurationMin,
		"calories_burned": e.CaloriesBurned,
		"date_key":        e.DateKey,
		"logged_at":       e.LoggedAt.Format(timeLayout),
	}
}
