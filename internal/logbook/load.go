package logbook

import (
	"context"
	"fmt"
	"time"

	"github.com/fuelsync/fuelsync/internal/model"
	"github.com/fuelsync/fuelsync/internal/remote"
)

// LoadDay pulls a day's data fresh from the remote store, partitions
// food rows from hydration discriminator rows, and replaces that day's
// cached slice. Other cached days are untouched. Returns a copy of the
// rebuilt snapshot.
func (e *Engine) LoadDay(ctx context.Context, dateKey string) (*model.DaySnapshot, error) {
	if !model.ValidDayKey(dateKey) {
		return nil, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}

	filter := remote.Row{"date_key": dateKey}
	foodRows, err := e.sel(ctx, TableFood, filter)
	if err != nil {
		return nil, fmt.Errorf("load day %s: %w", dateKey, err)
	}
	exerciseRows, err := e.sel(ctx, TableExercise, filter)
	if err != nil {
		return nil, fmt.Errorf("load day %s: %w", dateKey, err)
	}

	day := model.NewDaySnapshot(dateKey)
	for _, row := range foodRows {
		if isWaterRow(row) {
			day.WaterML += intFrom(row["water_ml"])
			continue
		}
		entry := foodFromRow(row, dateKey)
		day.Meals[entry.Meal] = append(day.Meals[entry.Meal], entry)
		day.Totals.Add(entry)
	}
	for _, row := range exerciseRows {
		entry := exerciseFromRow(row, dateKey)
		day.Exercises = append(day.Exercises, entry)
		day.CaloriesBurned += entry.CaloriesBurned
	}

	e.mu.Lock()
	e.days[dateKey] = day
	e.evictLocked(dateKey)
	snapshot := day.Clone()
	e.mu.Unlock()
	e.notify(dateKey)

	return snapshot, nil
}

// isWaterRow recognizes the hydration discriminator: a zero-calorie
// row named "Water".
func isWaterRow(row remote.Row) bool {
	name, _ := row["name"].(string)
	return name == waterName && intFrom(row["calories"]) == 0
}

func foodFromRow(row remote.Row, dateKey string) model.FoodEntry {
	meal := model.MealType(stringFrom(row["meal"]))
	if !model.ValidMealType(meal) {
		meal = model.MealSnack
	}
	return model.FoodEntry{
		ID:       remote.ID(row),
		Name:     stringFrom(row["name"]),
		Calories: intFrom(row["calories"]),
		ProteinG: floatFrom(row["protein_g"]),
		CarbsG:   floatFrom(row["carbs_g"]),
		FatG:     floatFrom(row["fat_g"]),
		Meal:     meal,
		DateKey:  dateKey,
		LoggedAt: timeFrom(row["logged_at"]),
	}
}

func exerciseFromRow(row remote.Row, dateKey string) model.ExerciseEntry {
	return model.ExerciseEntry{
		ID:             remote.ID(row),
		Name:           stringFrom(row["name"]),
		DurationMin:    intFrom(row["duration_min"]),
		CaloriesBurned: intFrom(row["calories_burned"]),
		DateKey:        dateKey,
		LoggedAt:       timeFrom(row["logged_at"]),
	}
}

// Row values arrive via JSON, so numbers may be float64 even when the
// column is logically integral.

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func floatFrom(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func stringFrom(v any) string {
	s, _ := v.(string)
	return s
}

func timeFrom(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
